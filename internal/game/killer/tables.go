// Package killer runs the killer's side of an encounter: the countdown
// pursuit, threat escalation, decisions and reactions to the player.
package killer

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// State is the encounter state.
type State string

const (
	StateIdle          State = "IDLE"
	StateHuntingPlayer State = "HUNTING_PLAYER"
	StateNegotiating   State = "NEGOTIATING"
	StateCombat        State = "COMBAT"
	StateEnded         State = "ENDED"
)

// Emotion is the killer's emotional state.
type Emotion string

const (
	EmotionPredatory Emotion = "PREDATORY"
	EmotionCurious   Emotion = "CURIOUS"
	EmotionSatisfied Emotion = "SATISFIED"
)

// Action is a player response to the killer.
type Action string

const (
	ActionHide       Action = "HIDE"
	ActionAttack     Action = "ATTACK"
	ActionFlee       Action = "FLEE"
	ActionNegotiate  Action = "NEGOTIATE"
	ActionJoin       Action = "JOIN"
	ActionPsychology Action = "PSYCHOLOGY"
)

// Actions lists the full action vocabulary.
var Actions = []Action{ActionHide, ActionAttack, ActionFlee, ActionNegotiate, ActionJoin, ActionPsychology}

// Fate is the outcome of an encounter whose countdown ran out.
type Fate string

const (
	FateEscapedSafely        Fate = "ESCAPED_SAFELY"
	FateNegotiationSuccess   Fate = "NEGOTIATION_SUCCESS"
	FateWoundedKillerEscaped Fate = "WOUNDED_KILLER_ESCAPED"
	FateCapturedOrKilled     Fate = "CAPTURED_OR_KILLED"
	FateUnknown              Fate = "UNKNOWN_FATE"
)

// DecisionType is the kind of move the killer makes.
type DecisionType string

const (
	DecisionChase       DecisionType = "CHASE"
	DecisionPsychAttack DecisionType = "PSYCH_ATTACK"
	DecisionStalk       DecisionType = "STALK"
	DecisionNegotiate   DecisionType = "NEGOTIATE"
)

// Phase is an escalation phase of the hunt.
type Phase string

const (
	PhaseNone             Phase = "NONE"
	PhaseAggressiveSearch Phase = "AGGRESSIVE_SEARCH"
	PhaseClosingIn        Phase = "CLOSING_IN"
	PhaseFinalMoments     Phase = "FINAL_MOMENTS"
)

// Severity is the scale of a government response.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists every government response severity.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

var (
	// ErrAlreadyEngaged is returned by InitiateEngagement while an encounter runs.
	ErrAlreadyEngaged = errors.New("killer is already engaged")
	// ErrUnknownSeverity is returned for severities outside Severities.
	ErrUnknownSeverity = errors.New("unknown government response severity")
)

// OpeningLine is the killer's first words of every encounter.
const OpeningLine = `"Found you... let's play a game." *eyes glow with otherworldly hunger*`

// strategy is one row of the weighted decision table.
type strategy struct {
	Name     string
	Weight   float64
	Decision Decision
}

var strategies = []strategy{
	{Name: "Direct Pursuit", Weight: 0.4, Decision: Decision{
		Type:    DecisionChase,
		Message: `"Your heartbeat gives you away, little creature..."`,
		Speed:   2.0,
	}},
	{Name: "Psychological Warfare", Weight: 0.3, Decision: Decision{
		Type:    DecisionPsychAttack,
		Message: `Whispers echo through your mind: "Join me... or die..."`,
		Effect:  "confusion",
	}},
	{Name: "Strategic Hunting", Weight: 0.2, Decision: Decision{
		Type:       DecisionStalk,
		Message:    "The shadows deepen around you...",
		Visibility: 0.4,
	}},
	{Name: "Negotiation / Temptation", Weight: 0.1, Decision: Decision{
		Type:      DecisionNegotiate,
		Message:   `"Why fight? Join me instead. Power. Eternal life. All you desire."`,
		OfferJoin: true,
	}},
}

// escalation is one countdown threshold.
type escalation struct {
	At         int
	Phase      Phase
	Name       string
	Message    string
	Visibility float64
	Speed      float64
}

// escalations are ordered by descending threshold.
var escalations = []escalation{
	{At: 180, Phase: PhaseAggressiveSearch, Name: "aggressive_search",
		Message: "The shadows seem to breathe... *you hear screams in the distance*", Visibility: 0.6, Speed: 1.5},
	{At: 60, Phase: PhaseClosingIn, Name: "closing_in",
		Message: "You hear footsteps echoing closer... *wet breathing sounds*", Visibility: 0.8, Speed: 2.0},
	{At: 10, Phase: PhaseFinalMoments, Name: "final_moments",
		Message: `"I CAN SMELL YOUR FEAR, LITTLE PREY. TIME'S UP."`, Visibility: 1.0, Speed: 2.5},
}

// threatDelta adjusts the killer's traits in response to a player action.
type threatDelta struct {
	Threat  int
	Adapt   int
	Emotion Emotion
}

var threatTable = map[Action]threatDelta{
	ActionHide:       {Threat: -15, Adapt: 5},
	ActionAttack:     {Threat: 30, Adapt: 10},
	ActionFlee:       {Threat: 5},
	ActionNegotiate:  {Threat: -20, Emotion: EmotionCurious},
	ActionJoin:       {Threat: -50, Emotion: EmotionSatisfied},
	ActionPsychology: {Threat: -25, Adapt: 15},
}

// transitions maps a player action to the encounter state it leads to.
var transitions = map[Action]State{
	ActionHide:       StateHuntingPlayer,
	ActionAttack:     StateCombat,
	ActionFlee:       StateHuntingPlayer,
	ActionNegotiate:  StateNegotiating,
	ActionJoin:       StateEnded,
	ActionPsychology: StateNegotiating,
}

// reactionTemplate is the killer's fixed response to an action. Difficulty
// is filled in from the threat level when WithDifficulty is set.
type reactionTemplate struct {
	Message         string
	Result          string
	DamageToPlayer  int
	KillerSpeed     float64
	PsychologyCheck bool
	WithDifficulty  bool
	Ending          string
}

var reactionTable = map[Action]reactionTemplate{
	ActionHide: {
		Message: `"Where did you go...? The hunt is more interesting when you resist."`,
		Result:  "temporary_safety",
	},
	ActionAttack: {
		Message:        `"YOU DARE?! How delicious... a prey with fangs."`,
		Result:         "combat_engaged",
		DamageToPlayer: 15,
	},
	ActionFlee: {
		Message:     `"Run little prey... make this interesting..."`,
		Result:      "chase_initiated",
		KillerSpeed: 1.8,
	},
	ActionNegotiate: {
		Message:         `"Talking? How... civilized. I might spare you."`,
		Result:          "negotiation_started",
		PsychologyCheck: true,
	},
	ActionJoin: {
		Message: `"YES! FINALLY! We are one now. The hunt begins anew..."`,
		Result:  "player_corrupted",
		Ending:  "JOINED_KILLER",
	},
	ActionPsychology: {
		Message:         `"Psychology? How quaint. I've had 10,000 years to master MY mind."`,
		Result:          "mental_battle",
		PsychologyCheck: true,
		WithDifficulty:  true,
	},
}

// GovernmentResponse is the authorities' reaction to the killings.
type GovernmentResponse struct {
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	PlayerCelebrity int      `json:"playerCelebrity"`
	HunterDanger    float64  `json:"hunterDanger"`
}

var governmentTable = map[Severity]GovernmentResponse{
	SeverityLow: {
		Severity:        SeverityLow,
		Message:         "Police begin investigating strange disappearances...",
		PlayerCelebrity: 1,
		HunterDanger:    0.5,
	},
	SeverityMedium: {
		Severity:        SeverityMedium,
		Message:         "FBI arrives. Roadblocks set up. No explanation for deaths.",
		PlayerCelebrity: 3,
		HunterDanger:    1.5,
	},
	SeverityHigh: {
		Severity:        SeverityHigh,
		Message:         `Military lockdown. Martial law. "Something non-human is here."`,
		PlayerCelebrity: 5,
		HunterDanger:    3.0,
	},
}

// Ending is an alien-planet outcome.
type Ending struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Twist   string `json:"twist"`
}

var (
	corruptedEnding = Ending{
		Type:    "CORRUPTED_ENDING",
		Message: "You ascend through the portal. Your humanity fades. You hunger for blood.",
		Twist:   "Humanity was always the appetizer. Now the real feast begins...",
	}
	escapedEnding = Ending{
		Type:    "ESCAPED_ENDING",
		Message: "The portal closes behind you. The killer is trapped here. You are safe... or are you?",
		Twist:   "But his influence remains... forever etched into your mind...",
	}
)

// validateTables checks that every dispatch table covers its full key set.
// All problems are reported together.
func validateTables() error {
	var errs []string
	for _, a := range Actions {
		if _, ok := threatTable[a]; !ok {
			errs = append(errs, fmt.Sprintf("action %s has no threat delta", a))
		}
		if _, ok := reactionTable[a]; !ok {
			errs = append(errs, fmt.Sprintf("action %s has no reaction", a))
		}
		if _, ok := transitions[a]; !ok {
			errs = append(errs, fmt.Sprintf("action %s has no state transition", a))
		}
	}
	for _, s := range Severities {
		if _, ok := governmentTable[s]; !ok {
			errs = append(errs, fmt.Sprintf("severity %s has no government response", s))
		}
	}
	var total float64
	for _, s := range strategies {
		if s.Weight <= 0 {
			errs = append(errs, fmt.Sprintf("strategy %q must have positive weight", s.Name))
		}
		total += s.Weight
	}
	if math.Abs(total-1) > 1e-9 {
		errs = append(errs, fmt.Sprintf("strategy weights must sum to 1, got %v", total))
	}
	for i := 1; i < len(escalations); i++ {
		if escalations[i].At >= escalations[i-1].At {
			errs = append(errs, "escalation thresholds must be strictly descending")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("killer tables invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
