package dialogue

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// Role is an NPC's occupation, which sets their greeting.
type Role string

const (
	RolePoliceOfficer Role = "police_officer"
	RoleWitness       Role = "witness"
	RoleJournalist    Role = "journalist"
	RoleJanitor       Role = "janitor"
	RoleSecurityGuard Role = "security_guard"
	RoleCivilian      Role = "civilian"
	RoleDoctor        Role = "doctor"
	RoleInvestigator  Role = "investigator"
	RoleShopkeeper    Role = "shopkeeper"
	RoleHomeless      Role = "homeless_person"
)

// DefaultGreeting is used for roles without a greeting of their own.
const DefaultGreeting = "Hey there."

var greetings = map[Role]string{
	RolePoliceOfficer: "Hey, I'm with the police. Have you seen anything unusual lately?",
	RoleWitness:       "Oh god, I saw something... I'm terrified to say it out loud.",
	RoleJournalist:    "I'm investigating strange deaths in this city. What do you know?",
	RoleJanitor:       "Just cleanin' up... seen some weird stuff around here.",
	RoleSecurityGuard: "No one gets past me without ID.",
	RoleCivilian:      "Can I help you?",
	RoleDoctor:        "What brings you to the hospital?",
	RoleInvestigator:  "I'm on K'Thaal's case. Anything you can tell me?",
	RoleShopkeeper:    "Welcome to my shop. Looking for something?",
	RoleHomeless:      "You got a dollar? Or... you're one of them hunting things...",
}

// Greeting returns the opening line for role.
func Greeting(role Role) string {
	if g, ok := greetings[role]; ok {
		return g
	}
	return DefaultGreeting
}

// NPC identifies the other side of a conversation.
type NPC struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// CustomChoice is the conversation option that takes typed text.
const CustomChoice = "custom"

// EndChoice is the only option once a session reaches its length cap.
var EndChoice = Choice{ID: "end", Text: "End conversation", End: true}

var openingChoices = []Choice{
	{ID: "listen", Text: "Listen to what they have to say"},
	{ID: "question", Text: "Ask them about the murders"},
	{ID: "accuse", Text: "Accuse them of involvement"},
	{ID: "lie", Text: "Lie and gain their trust"},
	{ID: "intimidate", Text: "Intimidate them for information"},
	{ID: "seduce", Text: "Use charm to persuade them"},
	{ID: CustomChoice, Text: "Type custom response..."},
}

// Reply is an NPC's answer within a conversation.
type Reply struct {
	Text        string  `json:"text"`
	Emotion     string  `json:"emotion"`
	TrustChange float64 `json:"trustChange"`
	Suspicion   float64 `json:"suspicion"`
	Consequence string  `json:"consequence,omitempty"`
}

var presetReplies = map[string]Reply{
	"listen":     {Text: "Good, I'll tell you everything I know...", Emotion: "relieved", TrustChange: 0.2, Suspicion: -0.1},
	"question":   {Text: "What do you want to know? I'm scared...", Emotion: "nervous", TrustChange: -0.05, Suspicion: 0.1},
	"accuse":     {Text: "ME?! No way, I'm just as terrified as everyone else!", Emotion: "defensive", TrustChange: -0.3, Suspicion: 0.3, Consequence: "npc_refuses_to_help"},
	"lie":        {Text: "Oh, I believe you. That makes sense...", Emotion: "trusting", TrustChange: 0.1, Suspicion: -0.05},
	"intimidate": {Text: "...Fine, fine. Just don't hurt me.", Emotion: "frightened", TrustChange: -0.4, Suspicion: 0.5},
	"seduce":     {Text: "Oh... well, that's... I'll help you.", Emotion: "flustered", TrustChange: 0.25, Suspicion: -0.2},
}

// fallbackReply answers choices without a preset reply.
var fallbackReply = Reply{Text: "Hmm...", Emotion: "confused", Suspicion: 0.5}

// confusedReply answers custom text when no generated reply is available.
var confusedReply = Reply{Text: "...That's... interesting.", Emotion: "confused", Suspicion: 0.5}

func presetReply(choiceID string) Reply {
	if r, ok := presetReplies[choiceID]; ok {
		return r
	}
	return fallbackReply
}

// followUps picks the next options from how the NPC took the last reply.
func followUps(r Reply) []Choice {
	switch {
	case r.TrustChange > 0.1:
		return []Choice{
			{ID: "ask_for_help", Text: "Will you help me?"},
			{ID: "ask_for_location", Text: "Where did you last see the killer?"},
			{ID: "ask_for_evidence", Text: "Do you have any evidence?"},
			{ID: "end", Text: "Thank you. I have to go.", End: true},
		}
	case r.Suspicion > 0.6:
		return []Choice{
			{ID: "leave", Text: "I'm leaving.", End: true},
			{ID: "negotiate", Text: "Wait, let me explain..."},
		}
	default:
		return []Choice{
			{ID: "continue", Text: "Tell me more..."},
			{ID: "end", Text: "I have to go.", End: true},
		}
	}
}

// ReactionRequest is what a Reactor is told about a custom utterance.
type ReactionRequest struct {
	Speaker   string    `json:"speaker"`
	Role      Role      `json:"role,omitempty"`
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent,omitempty"`
	Alignment Alignment `json:"alignment"`
	History   []Line    `json:"history"`
}

// Reactor generates in-character replies. The reply text is expected to
// carry RESPONSE:, EMOTION:, TRUST_CHANGE: and SUSPICION: lines.
type Reactor interface {
	React(ctx context.Context, req ReactionRequest) (string, error)
}

// ParseGenerated reads the labeled fields of a generated reply. Each field
// is optional; an unparsable or non-finite TRUST_CHANGE is 0 and an
// unparsable or non-finite SUSPICION is 0.5.
func ParseGenerated(content string) Reply {
	r := Reply{Emotion: "neutral", Suspicion: 0.5}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "RESPONSE:"):
			r.Text = strings.TrimSpace(strings.TrimPrefix(line, "RESPONSE:"))
		case strings.HasPrefix(line, "EMOTION:"):
			r.Emotion = strings.TrimSpace(strings.TrimPrefix(line, "EMOTION:"))
		case strings.HasPrefix(line, "TRUST_CHANGE:"):
			r.TrustChange = parseFinite(strings.TrimPrefix(line, "TRUST_CHANGE:"), 0)
		case strings.HasPrefix(line, "SUSPICION:"):
			r.Suspicion = parseFinite(strings.TrimPrefix(line, "SUSPICION:"), 0.5)
		}
	}
	return r
}

// parseFinite parses s as a float, falling back to def for anything that is
// not a finite number. ParseFloat accepts "NaN" and "Inf".
func parseFinite(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}
