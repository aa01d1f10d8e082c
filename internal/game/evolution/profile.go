// Package evolution turns recorded encounter history into lasting growth of
// the killer: learned counters, evolution levels, unlocked abilities and a
// difficulty multiplier.
package evolution

import (
	"time"

	"github.com/cory-johannsen/destiny/internal/game/tactic"
)

// Behavior is the killer's current overall disposition.
type Behavior string

const (
	BehaviorHunting  Behavior = "HUNTING"
	BehaviorFeeding  Behavior = "FEEDING"
	BehaviorLearning Behavior = "LEARNING"
)

// Stat bounds.
const (
	MinStat = 0
	MaxStat = 100
)

const (
	// DefaultLearningRate is the learning rate of a fresh killer.
	DefaultLearningRate = 0.75
	// MaxLearningRate caps learning rate growth.
	MaxLearningRate = 0.95
	// EvolveEvery is the encounter period between evolutions.
	EvolveEvery = 3
	// MaxDifficulty caps CalculateDifficulty.
	MaxDifficulty = 3.0
)

// LearningEvent records one observed player tactic.
type LearningEvent struct {
	ID              string            `json:"id"`
	Tactic          tactic.ID         `json:"tactic"`
	PlayerSucceeded bool              `json:"playerSucceeded"`
	Timestamp       time.Time         `json:"timestamp"`
	Context         map[string]string `json:"context,omitempty"`
}

// AdaptedBehavior records a counter the killer adopted. Trials counts the
// later encounters in which the player tried the countered tactic again;
// EffectivenessRealized is the share of those the player did not escape.
type AdaptedBehavior struct {
	CounteredTactic       tactic.ID      `json:"counteredTactic"`
	SelectedCounter       tactic.Counter `json:"selectedCounter"`
	ImplementedAt         time.Time      `json:"implementedAt"`
	Trials                int            `json:"trials"`
	EffectivenessRealized float64        `json:"effectivenessRealized"`
	EvolutionLevel        int            `json:"evolutionLevel"`
}

// Profile is the killer's persistent identity, stats and learning history.
//
// Invariant: core stats stay in [MinStat, MaxStat]; session counters and
// EvolutionLevel never decrease; LearningEvents and AdaptedBehaviors are
// append-only (an adapted behavior's trial statistics still change);
// KnownPlayerTricks holds each tactic at most once.
type Profile struct {
	Name      string `json:"name"`
	Species   string `json:"species"`
	Homeworld string `json:"homeworld"`
	Age       int    `json:"age"`

	Intelligence          int `json:"intelligence"`
	Adaptability          int `json:"adaptability"`
	PsychologyResistance  int `json:"psychologyResistance"`
	EmotionalIntelligence int `json:"emotionalIntelligence"`
	Aggressiveness        int `json:"aggressiveness"`

	EncountersThisSession int `json:"encountersThisSession"`
	PlayersKilled         int `json:"playersKilled"`
	PlayersEscaped        int `json:"playersEscaped"`
	PlayersJoined         int `json:"playersJoined"`

	EvolutionLevel    int               `json:"evolutionLevel"`
	LearningRate      float64           `json:"learningRate"`
	LearningEvents    []LearningEvent   `json:"learningEvents"`
	AdaptedBehaviors  []AdaptedBehavior `json:"adaptedBehaviors"`
	KnownPlayerTricks []tactic.ID       `json:"knownPlayerTricks"`
	UnlockedAbilities []tactic.Ability  `json:"unlockedAbilities"`

	CurrentBehavior Behavior `json:"currentBehavior"`
	TargetSelection string   `json:"targetSelection"`
	HuntingStrategy string   `json:"huntingStrategy"`
}

// DefaultProfile returns a fresh K'Thaal.
func DefaultProfile() Profile {
	return Profile{
		Name:                  "K'Thaal",
		Species:               "Xexxari",
		Homeworld:             "Xex-Prime",
		Age:                   10000,
		Intelligence:          92,
		Adaptability:          88,
		PsychologyResistance:  65,
		EmotionalIntelligence: 45,
		Aggressiveness:        75,
		EvolutionLevel:        1,
		LearningRate:          DefaultLearningRate,
		CurrentBehavior:       BehaviorHunting,
		TargetSelection:       "RANDOM",
		HuntingStrategy:       "METHODICAL",
	}
}

// clone returns a deep copy so callers cannot mutate tracker state.
func (p Profile) clone() Profile {
	out := p
	out.LearningEvents = append([]LearningEvent(nil), p.LearningEvents...)
	out.AdaptedBehaviors = append([]AdaptedBehavior(nil), p.AdaptedBehaviors...)
	out.KnownPlayerTricks = append([]tactic.ID(nil), p.KnownPlayerTricks...)
	out.UnlockedAbilities = append([]tactic.Ability(nil), p.UnlockedAbilities...)
	return out
}

func (p Profile) knows(id tactic.ID) bool {
	for _, t := range p.KnownPlayerTricks {
		if t == id {
			return true
		}
	}
	return false
}

func clampStat(v int) int {
	if v < MinStat {
		return MinStat
	}
	if v > MaxStat {
		return MaxStat
	}
	return v
}

// Difficulty computes the difficulty multiplier for a level and adapted
// behavior count.
//
// Postcondition: result in [1.0, MaxDifficulty] for level >= 0 and adapted >= 0;
// non-decreasing in both arguments.
func Difficulty(level, adapted int) float64 {
	d := 1.0 + float64(level)*0.15 + float64(adapted)*0.05
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}
