package killer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

// Reaction is the killer's answer to a player action.
type Reaction struct {
	Action            Action  `json:"action"`
	Message           string  `json:"message"`
	Result            string  `json:"result"`
	RelationshipDelta float64 `json:"relationshipDelta"`
	DamageToPlayer    int     `json:"damageToPlayer,omitempty"`
	KillerSpeed       float64 `json:"killerSpeed,omitempty"`
	PsychologyCheck   bool    `json:"psychologyCheck,omitempty"`
	Difficulty        int     `json:"difficulty,omitempty"`
	Ending            string  `json:"ending,omitempty"`
}

// UpdateThreatAssessment applies the threat table entry for a. Unknown
// actions change nothing and report false.
//
// Postcondition: threat level in [MinThreat, MaxThreat]; adaptability in [0, 1].
func (e *Engine) UpdateThreatAssessment(a Action) bool {
	d, ok := threatTable[a]
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &e.traits
	t.ThreatLevel = max(MinThreat, min(MaxThreat, t.ThreatLevel+d.Threat))
	if d.Adapt != 0 {
		t.Adaptability = max(0, min(1, t.Adaptability+float64(d.Adapt)/100))
	}
	if d.Emotion != "" {
		t.Emotion = d.Emotion
	}
	e.logger.Debug("threat assessment updated",
		zap.String("action", string(a)),
		zap.Int("threat_level", t.ThreatLevel),
		zap.Float64("adaptability", t.Adaptability),
		zap.String("emotion", string(t.Emotion)),
	)
	return true
}

// ReactToPlayerResponse returns and publishes the killer's fixed reaction to
// a. Unknown actions get the FLEE reaction.
func (e *Engine) ReactToPlayerResponse(a Action) Reaction {
	tmpl, ok := reactionTable[a]
	if !ok {
		a = ActionFlee
		tmpl = reactionTable[ActionFlee]
	}
	r := Reaction{
		Action:          a,
		Message:         tmpl.Message,
		Result:          tmpl.Result,
		DamageToPlayer:  tmpl.DamageToPlayer,
		KillerSpeed:     tmpl.KillerSpeed,
		PsychologyCheck: tmpl.PsychologyCheck,
		Ending:          tmpl.Ending,
	}
	if tmpl.WithDifficulty {
		e.mu.Lock()
		r.Difficulty = e.traits.ThreatLevel
		e.mu.Unlock()
	}
	e.bus.Publish(event.KillerReactionPayload{
		Action:            string(r.Action),
		Message:           r.Message,
		MechanicalResult:  r.Result,
		RelationshipDelta: r.RelationshipDelta,
		DamageToPlayer:    r.DamageToPlayer,
		KillerSpeed:       r.KillerSpeed,
		PsychologyCheck:   r.PsychologyCheck,
		Difficulty:        r.Difficulty,
		Ending:            r.Ending,
	})
	return r
}

// PlayerResponds records a player action in the behavior profile, updates
// the threat assessment, moves the encounter state and reacts. JOIN ends the
// encounter and stops the countdown.
func (e *Engine) PlayerResponds(a Action, text string) Reaction {
	e.mu.Lock()
	e.profile.Reactions = append(e.profile.Reactions, PlayerReaction{Action: a, Text: text, Timestamp: e.sched.Now()})
	e.profile.FirstEncounter = false
	e.mu.Unlock()

	e.logger.Info("player responds", zap.String("action", string(a)))
	e.UpdateThreatAssessment(a)

	e.mu.Lock()
	if next, ok := transitions[a]; ok && e.enc.Active {
		e.enc.State = next
		if next == StateEnded {
			e.stopLocked()
		}
	}
	e.mu.Unlock()

	return e.ReactToPlayerResponse(a)
}

// RecordChoice adds a dialogue choice to the behavior profile.
func (e *Engine) RecordChoice(choiceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profile.Choices = append(e.profile.Choices, choiceID)
}

// EncounterRecord summarises a finished encounter for LearnFromEncounter.
type EncounterRecord struct {
	EncounterID string `json:"encounterId"`
	Outcome     string `json:"outcome"`
}

// LearnFromEncounter buffers r. Every LearnEvery buffered encounters the
// killer sharpens (adaptability +0.05, hunter instinct +0.03, both capped at
// 1) and the buffer clears. It reports whether learning happened.
func (e *Engine) LearnFromEncounter(r EncounterRecord) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append(e.recent, r)
	if len(e.recent) < LearnEvery {
		return false
	}
	e.traits.Adaptability = min(1, e.traits.Adaptability+0.05)
	e.traits.HunterInstinct = min(1, e.traits.HunterInstinct+0.03)
	e.recent = nil
	e.logger.Info("killer learned from encounters",
		zap.Float64("adaptability", e.traits.Adaptability),
		zap.Float64("hunter_instinct", e.traits.HunterInstinct),
	)
	return true
}

// LocationShift describes the killer's new hunting ground.
type LocationShift struct {
	Location   location.ID `json:"location"`
	Atmosphere string      `json:"atmosphere"`
	Difficulty int         `json:"difficulty"`
}

// MoveToLocation relocates the killer. Unknown locations are accepted and
// described with the catalog fallbacks.
func (e *Engine) MoveToLocation(id location.ID) LocationShift {
	e.mu.Lock()
	e.traits.Location = id
	e.mu.Unlock()
	shift := LocationShift{
		Location:   id,
		Atmosphere: e.catalog.Atmosphere(id),
		Difficulty: e.catalog.Difficulty(id),
	}
	e.logger.Info("killer moved", zap.String("location", string(id)), zap.Int("difficulty", shift.Difficulty))
	return shift
}

// TriggerGovernmentResponse publishes the authorities' response at sev. An
// empty severity means SeverityMedium.
func (e *Engine) TriggerGovernmentResponse(sev Severity) (GovernmentResponse, error) {
	if sev == "" {
		sev = SeverityMedium
	}
	resp, ok := governmentTable[sev]
	if !ok {
		return GovernmentResponse{}, fmt.Errorf("%w: %q", ErrUnknownSeverity, sev)
	}
	e.logger.Info("government response triggered", zap.String("severity", string(sev)))
	e.bus.Publish(event.GovernmentResponsePayload{
		Severity:        string(resp.Severity),
		Message:         resp.Message,
		PlayerCelebrity: resp.PlayerCelebrity,
		HunterDanger:    resp.HunterDanger,
	})
	return resp, nil
}

// ReachAlienPlanet resolves the portal ending.
func (e *Engine) ReachAlienPlanet(joined bool) Ending {
	end := escapedEnding
	if joined {
		end = corruptedEnding
	}
	e.logger.Info("alien planet reached", zap.Bool("joined", joined))
	e.bus.Publish(event.EndingReachedPayload{Type: end.Type, Message: end.Message, Twist: end.Twist})
	return end
}

// Status is the presentation snapshot of the killer.
type Status struct {
	Name             string      `json:"name"`
	State            State       `json:"state"`
	ThreatLevel      int         `json:"threatLevel"`
	Location         location.ID `json:"location"`
	CountdownActive  bool        `json:"countdownActive"`
	CountdownSeconds int         `json:"countdownSeconds"`
	LearningEnabled  bool        `json:"learningEnabled"`
	EmotionalState   Emotion     `json:"emotionalState"`
	Phase            Phase       `json:"escalationPhase"`
}

// Status returns the killer's presentation snapshot. LearningEnabled reports
// whether a Reasoner is configured.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Name:             e.traits.Name,
		State:            e.enc.State,
		ThreatLevel:      e.traits.ThreatLevel,
		Location:         e.traits.Location,
		CountdownActive:  e.enc.Active,
		CountdownSeconds: e.enc.CountdownSeconds,
		LearningEnabled:  e.reasoner != nil,
		EmotionalState:   e.traits.Emotion,
		Phase:            e.enc.Phase,
	}
}
