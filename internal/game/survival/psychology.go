package survival

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

// PsychTactic is a psychological approach the player can try on the killer.
type PsychTactic string

const (
	Temptation   PsychTactic = "temptation"
	Intimidation PsychTactic = "intimidation"
	Reasoning    PsychTactic = "reasoning"
	Flattery     PsychTactic = "flattery"
)

// PsychTactics lists every tactic in presentation order.
var PsychTactics = []PsychTactic{Temptation, Intimidation, Reasoning, Flattery}

const (
	// MaxPsychChance caps the success chance of any tactic.
	MaxPsychChance = 0.95
	// PsychSkillGain is added to the psychology skill on success.
	PsychSkillGain = 0.1
	// EscapeWindowSeconds is the window a successful tactic opens.
	EscapeWindowSeconds = 30
	// PsychFailStress is the stress gained on failure.
	PsychFailStress = 20
)

// psychRule computes a tactic's chance as
// Base + psychology*SkillMultiplier + (100-stress)*CalmFactor.
type psychRule struct {
	Base            float64
	SkillMultiplier float64
	CalmFactor      float64
}

var psychRules = map[PsychTactic]psychRule{
	Temptation:   {Base: 0.3, SkillMultiplier: 0.03, CalmFactor: 0.001},
	Intimidation: {Base: 0.2, SkillMultiplier: 0.02},
	Reasoning:    {Base: 0.25, SkillMultiplier: 0.04, CalmFactor: 0.0015},
	Flattery:     {Base: 0.35, SkillMultiplier: 0.035, CalmFactor: 0.001},
}

func validatePsychRules(rules map[PsychTactic]psychRule) error {
	var errs []string
	for _, t := range PsychTactics {
		rule, ok := rules[t]
		if !ok {
			errs = append(errs, fmt.Sprintf("tactic %q has no rule", t))
			continue
		}
		if rule.Base < 0 || rule.Base > 1 {
			errs = append(errs, fmt.Sprintf("tactic %q: base chance must be in [0,1], got %v", t, rule.Base))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("survival: psychology rules invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// chance returns the capped success chance for the given skill and stress.
func (p psychRule) chance(psychology float64, stress int) float64 {
	c := p.Base + psychology*p.SkillMultiplier + float64(100-stress)*p.CalmFactor
	return min(MaxPsychChance, c)
}

// PsychologyResult reports a psychology attempt.
type PsychologyResult struct {
	Tactic         PsychTactic `json:"tactic"`
	Success        bool        `json:"success"`
	Chance         float64     `json:"chance"`
	EscapeWindow   int         `json:"escapeWindow,omitempty"`
	Result         string      `json:"result,omitempty"`
	StressIncrease int         `json:"stressIncrease,omitempty"`
	Consequence    string      `json:"consequence,omitempty"`
}

// ExecutePsychologyTactic attempts tactic with a single draw. message is
// the player's words and only feeds the log.
//
// Postcondition: success raises psychology by PsychSkillGain; failure raises
// stress by PsychFailStress (cap MaxStress).
func (r *Resolver) ExecutePsychologyTactic(tactic PsychTactic, message string) (PsychologyResult, error) {
	rule, ok := r.psych[tactic]
	if !ok {
		return PsychologyResult{}, fmt.Errorf("%w: %q", ErrUnknownTactic, tactic)
	}
	r.mu.Lock()
	if r.player.Dead {
		r.mu.Unlock()
		return PsychologyResult{}, ErrPlayerDead
	}
	chance := rule.chance(r.player.Skills[location.Psychology], r.player.Stress)
	res := PsychologyResult{Tactic: tactic, Chance: chance}
	res.Success, _ = r.roller.Chance("psychology_"+string(tactic), chance)
	if res.Success {
		r.player.Skills[location.Psychology] += PsychSkillGain
		res.EscapeWindow = EscapeWindowSeconds
		res.Result = "Killer distracted or intrigued"
	} else {
		r.player.addStress(PsychFailStress)
		res.StressIncrease = PsychFailStress
		res.Consequence = "Killer is ANGRY"
	}
	stress := r.player.Stress
	r.mu.Unlock()

	r.logger.Info("psychology tactic",
		zap.String("tactic", string(tactic)),
		zap.String("message", message),
		zap.Float64("chance", chance),
		zap.Bool("success", res.Success),
	)
	if res.Success {
		r.bus.Publish(event.PsychologySuccessPayload{
			Tactic:              string(tactic),
			Chance:              chance,
			EscapeWindowSeconds: EscapeWindowSeconds,
		})
	} else {
		r.bus.Publish(event.PsychologyFailedPayload{Tactic: string(tactic), Chance: chance, StressLevel: stress})
	}
	return res, nil
}

// TacticProfile describes one psychological approach for presentation.
type TacticProfile struct {
	Description   string  `json:"description"`
	SuccessChance float64 `json:"successChance"`
	RiskLevel     string  `json:"riskLevel"`
	Consequence   string  `json:"consequence"`
}

// Analysis is the fixed psychological read of the killer.
type Analysis struct {
	KillerType      string                        `json:"killerType"`
	Motivations     []string                      `json:"motivations"`
	Vulnerabilities []string                      `json:"vulnerabilities"`
	Strengths       []string                      `json:"strengths"`
	Tactics         map[PsychTactic]TacticProfile `json:"tactics"`
}

// AnalyzeKillerPsychology returns the killer's psychological profile. It has
// no side effects.
func (r *Resolver) AnalyzeKillerPsychology() Analysis {
	return Analysis{
		KillerType: "PREDATORY_ALIEN",
		Motivations: []string{
			"Sustenance through human blood",
			"Extended existence on Earth",
			"Thrill of the hunt",
			"Possible loneliness after 10,000 years",
		},
		Vulnerabilities: []string{
			"Appeals to connection/companionship",
			"Challenges to predatory dominance",
			"Intellectual engagement (rare prey)",
			"Possibility of corruption/alliance",
		},
		Strengths: []string{
			"Superhuman physical abilities",
			"Ancient intelligence and cunning",
			"Lack of human moral constraints",
			"Knowledge of multiple kill methods",
		},
		Tactics: map[PsychTactic]TacticProfile{
			Temptation: {
				Description:   "Offer to join him, learn from him, serve him",
				SuccessChance: 0.3,
				RiskLevel:     "VERY_HIGH",
				Consequence:   "Possible corruption into villain ending",
			},
			Intimidation: {
				Description:   "Challenge his status, question his power",
				SuccessChance: 0.2,
				RiskLevel:     "EXTREME",
				Consequence:   "Immediate combat engagement",
			},
			Reasoning: {
				Description:   "Appeal to logic, negotiate terms, propose mutual benefit",
				SuccessChance: 0.25,
				RiskLevel:     "HIGH",
				Consequence:   "Time to escape or hide",
			},
			Flattery: {
				Description:   "Praise his intelligence, age, power, immortality",
				SuccessChance: 0.35,
				RiskLevel:     "MEDIUM",
				Consequence:   "Distraction, possible escape window",
			},
		},
	}
}
