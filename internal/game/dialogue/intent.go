package dialogue

import (
	"fmt"
	"regexp"
	"strings"
)

// Intent is what a free-text utterance is trying to do.
type Intent string

const (
	IntentThreat     Intent = "THREAT"
	IntentFlee       Intent = "FLEE"
	IntentNegotiate  Intent = "NEGOTIATE"
	IntentSubmit     Intent = "SUBMIT"
	IntentPsychology Intent = "PSYCHOLOGY"
	IntentQuestion   Intent = "QUESTION"
	IntentUnknown    Intent = "UNKNOWN"
)

// Intents lists every intent, UNKNOWN last.
var Intents = []Intent{IntentThreat, IntentFlee, IntentNegotiate, IntentSubmit, IntentPsychology, IntentQuestion, IntentUnknown}

// Sentiment is the emotional color of an utterance.
type Sentiment string

const (
	SentimentAggressive Sentiment = "AGGRESSIVE"
	SentimentFearful    Sentiment = "FEARFUL"
	SentimentPositive   Sentiment = "POSITIVE"
	SentimentNegative   Sentiment = "NEGATIVE"
	SentimentNeutral    Sentiment = "NEUTRAL"
)

type intentGroup struct {
	intent   Intent
	shift    Alignment
	patterns []*regexp.Regexp
}

// intentGroups is checked in order; the first group with a matching pattern wins.
var intentGroups = []intentGroup{
	{IntentThreat, Hero, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(fight|attack|kill|destroy|eliminate|stop you)\b`),
		regexp.MustCompile(`(?i)\b(i'll crush|i'll end|prepare to die)\b`),
	}},
	{IntentFlee, Neutral, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(run|escape|flee|hide|get away)\b`),
		regexp.MustCompile(`(?i)\b(i'm outta here|goodbye|see you later)\b`),
	}},
	{IntentNegotiate, Neutral, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(negotiate|deal|compromise|agreement|bargain)\b`),
		regexp.MustCompile(`(?i)\b(what if|could we|perhaps|maybe we could)\b`),
	}},
	{IntentSubmit, Villain, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(yes|okay|i'll join|i accept|i'm yours)\b`),
		regexp.MustCompile(`(?i)\b(teach me|make me like you|i want power)\b`),
	}},
	{IntentPsychology, Neutral, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(you're not|you can't|why do you|what drives you)\b`),
		regexp.MustCompile(`(?i)\b(something hurt you|you're lonely|you're afraid)\b`),
	}},
	{IntentQuestion, Neutral, []*regexp.Regexp{
		regexp.MustCompile(`\?$`),
		regexp.MustCompile(`(?i)\b(why|how|what|who|when|where)\b`),
	}},
}

type sentimentRule struct {
	sentiment Sentiment
	pattern   *regexp.Regexp
}

var sentimentRules = []sentimentRule{
	{SentimentAggressive, regexp.MustCompile(`(?i)\b(kill|destroy|attack|fight|crush|eliminate)\b`)},
	{SentimentFearful, regexp.MustCompile(`(?i)\b(scared|afraid|help|please|mercy|forgive)\b`)},
	{SentimentPositive, regexp.MustCompile(`(?i)\b(good|yes|okay|fine|love|beautiful|thank you)\b`)},
	{SentimentNegative, regexp.MustCompile(`(?i)\b(bad|no|never|hate|ugly|disgusting|awful)\b`)},
}

// ClassifyIntent returns the intent of text and the alignment it shifts
// toward. A trailing question mark turns an unmatched utterance into a
// QUESTION but never overrides an earlier match.
func ClassifyIntent(text string) (Intent, Alignment) {
	trimmed := strings.TrimSpace(text)
	for _, g := range intentGroups {
		for _, p := range g.patterns {
			if p.MatchString(trimmed) {
				return g.intent, g.shift
			}
		}
	}
	if strings.HasSuffix(trimmed, "?") {
		return IntentQuestion, Neutral
	}
	return IntentUnknown, Neutral
}

// ClassifySentiment returns the first matching sentiment, or NEUTRAL.
func ClassifySentiment(text string) Sentiment {
	for _, r := range sentimentRules {
		if r.pattern.MatchString(text) {
			return r.sentiment
		}
	}
	return SentimentNeutral
}

// CalculateAlignment walks current one step toward shift. A HERO or VILLAIN
// shift saturates at the end of the scale; any other shift changes nothing.
func CalculateAlignment(current, shift Alignment) Alignment {
	idx := -1
	for i, a := range Alignments {
		if a == current {
			idx = i
		}
	}
	if idx < 0 {
		return current
	}
	switch {
	case shift == Hero && idx > 0:
		return Alignments[idx-1]
	case shift == Villain && idx < len(Alignments)-1:
		return Alignments[idx+1]
	}
	return current
}

// FreeTextReaction is the killer's fixed answer to a classified utterance.
type FreeTextReaction struct {
	Response     string  `json:"response"`
	Consequence  string  `json:"consequence"`
	Relationship float64 `json:"relationship"`
}

var intentReactions = map[Intent]FreeTextReaction{
	IntentThreat: {
		Response:     `"You threaten me? How amusing. Your fists will break on my flesh, and I will drink your fear."`,
		Consequence:  "COMBAT",
		Relationship: -30,
	},
	IntentFlee: {
		Response:     `"Run, little prey! The hunt is more enjoyable when you resist! *laughs*"`,
		Consequence:  "CHASE",
		Relationship: -10,
	},
	IntentNegotiate: {
		Response:     `"Interesting. Few prey attempt reason. Speak. What would you propose?"`,
		Consequence:  "NEGOTIATION",
		Relationship: 10,
	},
	IntentSubmit: {
		Response:     `"YES! YES! You understand! We shall become legends together!"`,
		Consequence:  "CORRUPTION",
		Relationship: 40,
	},
	IntentPsychology: {
		Response:     `"Psychology? You think you can understand what I am? I've lived 10,000 years!"`,
		Consequence:  "MENTAL_BATTLE",
		Relationship: 5,
	},
	IntentQuestion: {
		Response:     `"Questions? An intelligent prey. I appreciate that. Ask, and maybe I will answer."`,
		Consequence:  "DIALOGUE",
		Relationship: 5,
	},
	IntentUnknown: {
		Response:     `"What are you babbling about? Speak clearly, little thing."`,
		Consequence:  "CONFUSION",
		Relationship: -5,
	},
}

func validateIntentTables() error {
	var errs []string
	grouped := make(map[Intent]bool, len(intentGroups))
	for _, g := range intentGroups {
		grouped[g.intent] = true
	}
	for _, in := range Intents {
		if _, ok := intentReactions[in]; !ok {
			errs = append(errs, fmt.Sprintf("intent %s has no reaction", in))
		}
		if in != IntentUnknown && !grouped[in] {
			errs = append(errs, fmt.Sprintf("intent %s has no pattern group", in))
		}
	}
	for _, c := range openingChoices {
		if _, ok := presetReplies[c.ID]; !ok && c.ID != CustomChoice {
			errs = append(errs, fmt.Sprintf("conversation choice %s has no reply", c.ID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("dialogue tables invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
