// Package tactic holds the static catalog of player tactics the killer learns
// to counter, the abilities it unlocks by evolution level, and the
// psychological tactics it uses on the player.
package tactic

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ID identifies a player tactic.
type ID string

const (
	PsychologyManipulation ID = "psychology_manipulation"
	HidingInCrowds         ID = "hiding_in_crowds"
	TrapSetting            ID = "trap_setting"
	DirectCombat           ID = "direct_combat"
	ExplorationAvoidance   ID = "exploration_avoidance"

	// UnknownEscape is recorded when an escape has no attributed tactic.
	// It is deliberately absent from the catalog.
	UnknownEscape ID = "UNKNOWN_ESCAPE"
)

// ErrUnknownTactic is returned when an ID is not in the catalog.
var ErrUnknownTactic = errors.New("unknown tactic")

// Counter is one way the killer can neutralise a player tactic.
type Counter struct {
	Name           string  `yaml:"name"`
	Description    string  `yaml:"description"`
	Effectiveness  float64 `yaml:"effectiveness"`
	Implementation string  `yaml:"implementation"`
}

// Tactic is a catalog entry with its counters in catalog order.
type Tactic struct {
	ID          ID        `yaml:"id"`
	Description string    `yaml:"description"`
	Counters    []Counter `yaml:"counters"`
}

// BestCounter returns the counter with the strictly highest effectiveness.
// On a tie the first listed counter wins.
//
// Postcondition: ok is false only when the tactic has no counters.
func (t *Tactic) BestCounter() (best Counter, ok bool) {
	for i, c := range t.Counters {
		if i == 0 || c.Effectiveness > best.Effectiveness {
			best = c
			ok = true
		}
	}
	return best, ok
}

// Ability is a killer power unlocked at exactly one evolution level.
type Ability struct {
	Name        string `yaml:"name"`
	UnlockAt    int    `yaml:"unlock_at"`
	Description string `yaml:"description"`
	Cooldown    int    `yaml:"cooldown,omitempty"`
	Range       int    `yaml:"range,omitempty"`
	Duration    int    `yaml:"duration,omitempty"`
	Rate        int    `yaml:"rate,omitempty"`
	PerSecond   bool   `yaml:"per_second,omitempty"`
}

// Psychological is a manipulation the killer can attempt on the player.
type Psychological struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Difficulty  string  `yaml:"difficulty"`
	SuccessRate float64 `yaml:"success_rate"`
}

// Catalog is the full tactic catalog.
//
// Invariant: after Validate, tactic IDs and ability names are unique.
type Catalog struct {
	Tactics       []*Tactic        `yaml:"tactics"`
	Abilities     []*Ability       `yaml:"abilities"`
	Psychological []*Psychological `yaml:"psychological"`

	byID map[ID]*Tactic
}

// Validate checks every entry and builds the lookup index.
//
// Postcondition: nil return guarantees non-empty unique IDs, at least one
// counter per tactic, effectiveness and success rates in [0, 1], and
// unlock levels >= 1. All violations are reported together.
func (c *Catalog) Validate() error {
	var errs []string
	byID := make(map[ID]*Tactic, len(c.Tactics))
	for i, t := range c.Tactics {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("tactics[%d]: id must not be empty", i))
			continue
		}
		if _, dup := byID[t.ID]; dup {
			errs = append(errs, fmt.Sprintf("tactics[%d]: duplicate id %q", i, t.ID))
		}
		if len(t.Counters) == 0 {
			errs = append(errs, fmt.Sprintf("tactic %q: must have at least one counter", t.ID))
		}
		for j, ctr := range t.Counters {
			if ctr.Name == "" {
				errs = append(errs, fmt.Sprintf("tactic %q counters[%d]: name must not be empty", t.ID, j))
			}
			if ctr.Effectiveness < 0 || ctr.Effectiveness > 1 {
				errs = append(errs, fmt.Sprintf("tactic %q counter %q: effectiveness must be in [0,1], got %v", t.ID, ctr.Name, ctr.Effectiveness))
			}
		}
		byID[t.ID] = t
	}

	names := make(map[string]struct{}, len(c.Abilities))
	for i, a := range c.Abilities {
		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("abilities[%d]: name must not be empty", i))
			continue
		}
		if _, dup := names[a.Name]; dup {
			errs = append(errs, fmt.Sprintf("abilities[%d]: duplicate name %q", i, a.Name))
		}
		names[a.Name] = struct{}{}
		if a.UnlockAt < 1 {
			errs = append(errs, fmt.Sprintf("ability %q: unlock_at must be >= 1, got %d", a.Name, a.UnlockAt))
		}
	}

	for i, p := range c.Psychological {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("psychological[%d]: name must not be empty", i))
		}
		if p.SuccessRate < 0 || p.SuccessRate > 1 {
			errs = append(errs, fmt.Sprintf("psychological %q: success_rate must be in [0,1], got %v", p.Name, p.SuccessRate))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("tactic catalog validation failed: %s", strings.Join(errs, "; "))
	}
	c.byID = byID
	return nil
}

// Lookup returns the tactic with the given ID.
//
// Precondition: Validate must have succeeded.
func (c *Catalog) Lookup(id ID) (*Tactic, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// AbilitiesAt returns the abilities whose UnlockAt equals level exactly, in
// catalog order.
func (c *Catalog) AbilitiesAt(level int) []Ability {
	var out []Ability
	for _, a := range c.Abilities {
		if a.UnlockAt == level {
			out = append(out, *a)
		}
	}
	return out
}

// Load parses and validates a catalog from YAML.
//
// Postcondition: Returns a validated Catalog or an error.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing tactic catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

//go:embed catalog.yaml
var defaultCatalog []byte

// LoadDefault returns the embedded catalog.
func LoadDefault() (*Catalog, error) {
	return Load(defaultCatalog)
}

// MustLoadDefault returns the embedded catalog and panics if it is invalid.
func MustLoadDefault() *Catalog {
	c, err := LoadDefault()
	if err != nil {
		panic("tactic: embedded catalog is invalid: " + err.Error())
	}
	return c
}
