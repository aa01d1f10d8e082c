// Package state coordinates the playthrough: player and world state,
// government awareness, game phase, statistics and save slots.
package state

import (
	"github.com/cory-johannsen/destiny/internal/game/dialogue"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

// Phase is the stage of the playthrough.
type Phase string

const (
	PhaseMenu     Phase = "MENU"
	PhaseMainGame Phase = "MAIN_GAME"
	PhaseEnding   Phase = "ENDING"
)

// Difficulty is the chosen game difficulty.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "EASY"
	DifficultyNormal    Difficulty = "NORMAL"
	DifficultyHard      Difficulty = "HARD"
	DifficultyNightmare Difficulty = "NIGHTMARE"
)

// Difficulties lists every difficulty.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyNightmare}

const (
	// DefaultPlayerName is used until the player names themselves.
	DefaultPlayerName = "Unknown"
	// MaxHealth is the player's full health.
	MaxHealth = 100
	// DefaultStress is the player's starting stress.
	DefaultStress = 50
	// CorruptionThreshold raises CORRUPTION_THRESHOLD_REACHED when crossed upward.
	CorruptionThreshold = 50
	// MaxCorruption and MaxAwareness cap their scores.
	MaxCorruption = 100
	MaxAwareness  = 100
	// MilitaryAwareness is the awareness at which the military is involved.
	MilitaryAwareness = 90
)

// Position is a point in the world.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player is the coordinator's record of the player.
type Player struct {
	Name            string                     `json:"name"`
	Health          int                        `json:"health"`
	MaxHealth       int                        `json:"maxHealth"`
	Injuries        int                        `json:"injuries"`
	Stress          int                        `json:"stress"`
	HideLevel       int                        `json:"hideLevel"`
	Alignment       dialogue.Alignment         `json:"alignment"`
	CorruptionLevel int                        `json:"corruptionLevel"`
	Skills          map[location.Skill]float64 `json:"skills"`
	Inventory       []string                   `json:"inventory"`
	Location        location.ID                `json:"location"`
	Position        Position                   `json:"position"`
	Kills           int                        `json:"kills"`
	JoinedKiller    bool                       `json:"joinedKiller"`
}

// DefaultPlayer returns the player at the start of a playthrough.
func DefaultPlayer() Player {
	return Player{
		Name:      DefaultPlayerName,
		Health:    MaxHealth,
		MaxHealth: MaxHealth,
		Stress:    DefaultStress,
		Alignment: dialogue.Neutral,
		Skills: map[location.Skill]float64{
			location.Stealth:    5,
			location.Combat:     3,
			location.Psychology: 6,
			location.Endurance:  4,
		},
		Inventory: []string{},
		Location:  location.StartingLocation,
	}
}

func (p Player) clone() Player {
	c := p
	c.Skills = make(map[location.Skill]float64, len(p.Skills))
	for k, v := range p.Skills {
		c.Skills[k] = v
	}
	c.Inventory = append([]string{}, p.Inventory...)
	return c
}

// WantedLevel maps government awareness to a wanted level and whether the
// military is involved.
func WantedLevel(awareness int) (level int, military bool) {
	switch {
	case awareness >= MilitaryAwareness:
		return 4, true
	case awareness >= 75:
		return 3, false
	case awareness >= 50:
		return 2, false
	case awareness >= 25:
		return 1, false
	}
	return 0, false
}
