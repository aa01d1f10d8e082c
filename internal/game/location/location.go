// Package location holds the static catalog of places, the per-area survival
// tables (hiding spots, weapons, escape routes) and the generator that
// populates a location afresh on every visit.
package location

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/destiny/internal/game/dice"
)

// ID identifies a location.
type ID string

// StartingLocation is where every playthrough begins.
const StartingLocation ID = "SUBWAY_STATION_A"

// Area selects the survival tables that apply to a location.
type Area string

const (
	AreaSubway          Area = "SUBWAY"
	AreaResidentialHome Area = "RESIDENTIAL_HOME"
	AreaStreet          Area = "STREET"
)

// FallbackArea supplies hiding spots for areas without their own table.
const FallbackArea = AreaStreet

// UnknownAtmosphere describes a location the catalog does not know.
const UnknownAtmosphere = "Unknown location..."

// DefaultDifficulty applies to locations with no explicit difficulty.
const DefaultDifficulty = 5

// Skill names a player skill used by hiding spot requirements.
type Skill string

const (
	Stealth    Skill = "stealth"
	Combat     Skill = "combat"
	Psychology Skill = "psychology"
	Endurance  Skill = "endurance"
)

// Skills lists every skill in canonical check order.
var Skills = []Skill{Stealth, Combat, Psychology, Endurance}

var (
	// ErrUnknownLocation is returned for IDs absent from the catalog.
	ErrUnknownLocation = errors.New("unknown location")
)

// HazardTemplate describes a hazard that may injure the player.
type HazardTemplate struct {
	Type      string `yaml:"type"`
	Damage    string `yaml:"damage"`
	WarningMS int    `yaml:"warning_ms,omitempty"`
	Avoidable bool   `yaml:"avoidable"`
}

// Location is a static catalog entry.
type Location struct {
	ID                 ID               `yaml:"id"`
	Name               string           `yaml:"name"`
	Area               Area             `yaml:"area"`
	Type               string           `yaml:"type"`
	Atmosphere         string           `yaml:"atmosphere,omitempty"`
	Description        string           `yaml:"description"`
	Difficulty         int              `yaml:"difficulty,omitempty"`
	Size               string           `yaml:"size"`
	RiskLevel          string           `yaml:"risk_level"`
	HideSpotCount      int              `yaml:"hide_spot_count"`
	NPCDensity         string           `yaml:"npc_density"`
	SoundAmplification float64          `yaml:"sound_amplification"`
	Darkness           float64          `yaml:"darkness,omitempty"`
	Wildlife           bool             `yaml:"wildlife,omitempty"`
	Floors             int              `yaml:"floors,omitempty"`
	HideSpotTypes      []string         `yaml:"hide_spot_types"`
	Hazards            []HazardTemplate `yaml:"hazards,omitempty"`
	Neighbors          []ID             `yaml:"neighbors,omitempty"`
}

// HidingSpot is a place in an area the player may try to hide.
type HidingSpot struct {
	ID             string        `yaml:"id" json:"id"`
	Name           string        `yaml:"name" json:"name"`
	HidingPower    int           `yaml:"hiding_power" json:"hidingPower"`
	Description    string        `yaml:"description" json:"description"`
	Duration       int           `yaml:"duration" json:"duration"`
	DiscoverChance float64       `yaml:"discover_chance" json:"discoverChance"`
	Requirements   map[Skill]int `yaml:"requirements" json:"requirements"`
}

// Weapon is an improvised or real weapon found in an area. Ammo of zero
// means the weapon does not consume ammunition.
type Weapon struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Damage      float64 `yaml:"damage" json:"damage"`
	Accuracy    float64 `yaml:"accuracy" json:"accuracy"`
	BreakChance float64 `yaml:"break_chance" json:"breakChance"`
	Ammo        int     `yaml:"ammo,omitempty" json:"ammo,omitempty"`
	Description string  `yaml:"description" json:"description"`
}

// EscapeRoute is a way out of an area.
type EscapeRoute struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Difficulty   int    `yaml:"difficulty" json:"difficulty"`
	Distance     int    `yaml:"distance" json:"distance"`
	Time         int    `yaml:"time" json:"time"`
	DangerRating string `yaml:"danger_rating" json:"dangerRating"`
	Description  string `yaml:"description" json:"description"`
}

// AreaTables are the survival tables for one area.
type AreaTables struct {
	HidingSpots  []HidingSpot  `yaml:"hiding_spots"`
	Weapons      []Weapon      `yaml:"weapons"`
	EscapeRoutes []EscapeRoute `yaml:"escape_routes"`
}

// SpotType describes a generated hide spot kind.
type SpotType struct {
	Name          string  `yaml:"name"`
	Effectiveness float64 `yaml:"effectiveness"`
	SoundProof    bool    `yaml:"sound_proof,omitempty"`
	HealthDamage  int     `yaml:"health_damage,omitempty"`
}

// ItemKind is a category of loose item generated in a location.
type ItemKind struct {
	Type                   string   `yaml:"type"`
	Subtypes               []string `yaml:"subtypes"`
	UsefulAgainstKiller    bool     `yaml:"useful_against_killer,omitempty"`
	UsefulForInvestigation bool     `yaml:"useful_for_investigation,omitempty"`
	HelpfulForEscape       bool     `yaml:"helpful_for_escape,omitempty"`
}

// Population holds the tables used to generate NPCs and items.
type Population struct {
	Roles      []string   `yaml:"roles"`
	FirstNames []string   `yaml:"first_names"`
	LastNames  []string   `yaml:"last_names"`
	Knowledge  []string   `yaml:"knowledge"`
	Items      []ItemKind `yaml:"items"`
}

// Catalog is the complete location catalog.
type Catalog struct {
	Locations   []*Location                 `yaml:"locations"`
	TypeHazards map[string][]HazardTemplate `yaml:"type_hazards"`
	Areas       map[Area]*AreaTables        `yaml:"areas"`
	SpotTypes   map[string]SpotType         `yaml:"spot_types"`
	Population  Population                  `yaml:"population"`

	byID map[ID]*Location
}

var validAreas = map[Area]bool{AreaSubway: true, AreaResidentialHome: true, AreaStreet: true}

var validSkills = map[Skill]bool{Stealth: true, Combat: true, Psychology: true, Endurance: true}

var validDensities = map[string]bool{"none": true, "very_low": true, "low": true, "medium": true, "high": true}

// Validate checks cross references and builds the lookup index.
//
// Postcondition: nil return guarantees unique location IDs, known areas,
// spot types, skills and densities, parsable hazard dice, and a table for
// FallbackArea. All violations are reported together.
func (c *Catalog) Validate() error {
	var errs []string
	byID := make(map[ID]*Location, len(c.Locations))
	for i, l := range c.Locations {
		if l.ID == "" {
			errs = append(errs, fmt.Sprintf("locations[%d]: id must not be empty", i))
			continue
		}
		if _, dup := byID[l.ID]; dup {
			errs = append(errs, fmt.Sprintf("locations[%d]: duplicate id %q", i, l.ID))
		}
		byID[l.ID] = l
		if !validAreas[l.Area] {
			errs = append(errs, fmt.Sprintf("location %q: unknown area %q", l.ID, l.Area))
		}
		if !validDensities[l.NPCDensity] {
			errs = append(errs, fmt.Sprintf("location %q: unknown npc_density %q", l.ID, l.NPCDensity))
		}
		if l.HideSpotCount < 0 {
			errs = append(errs, fmt.Sprintf("location %q: hide_spot_count must be >= 0", l.ID))
		}
		for _, st := range l.HideSpotTypes {
			if _, ok := c.SpotTypes[st]; !ok {
				errs = append(errs, fmt.Sprintf("location %q: unknown hide spot type %q", l.ID, st))
			}
		}
		for _, h := range l.Hazards {
			if _, err := dice.Parse(h.Damage); err != nil {
				errs = append(errs, fmt.Sprintf("location %q hazard %q: %v", l.ID, h.Type, err))
			}
		}
	}
	for i, l := range c.Locations {
		for _, n := range l.Neighbors {
			if _, ok := byID[n]; !ok {
				errs = append(errs, fmt.Sprintf("locations[%d]: neighbor %q is not a location", i, n))
			}
		}
	}

	for typ, hs := range c.TypeHazards {
		for _, h := range hs {
			if _, err := dice.Parse(h.Damage); err != nil {
				errs = append(errs, fmt.Sprintf("type_hazards %q hazard %q: %v", typ, h.Type, err))
			}
		}
	}

	if _, ok := c.SpotTypes["generic_spot"]; !ok {
		errs = append(errs, "spot_types: generic_spot must be defined")
	}
	if c.Areas[FallbackArea] == nil {
		errs = append(errs, fmt.Sprintf("areas: fallback area %q must be defined", FallbackArea))
	}
	for area, t := range c.Areas {
		if !validAreas[area] {
			errs = append(errs, fmt.Sprintf("areas: unknown area %q", area))
			continue
		}
		ids := make(map[string]bool)
		for _, s := range t.HidingSpots {
			if ids[s.ID] {
				errs = append(errs, fmt.Sprintf("area %q: duplicate hiding spot %q", area, s.ID))
			}
			ids[s.ID] = true
			if s.Duration <= 0 {
				errs = append(errs, fmt.Sprintf("area %q spot %q: duration must be > 0", area, s.ID))
			}
			for sk := range s.Requirements {
				if !validSkills[sk] {
					errs = append(errs, fmt.Sprintf("area %q spot %q: unknown skill %q", area, s.ID, sk))
				}
			}
		}
		for _, w := range t.Weapons {
			if w.Accuracy < 0 || w.Accuracy > 1 || w.BreakChance < 0 || w.BreakChance > 1 {
				errs = append(errs, fmt.Sprintf("area %q weapon %q: accuracy and break_chance must be in [0,1]", area, w.ID))
			}
		}
	}

	p := c.Population
	if len(p.Roles) == 0 || len(p.FirstNames) == 0 || len(p.LastNames) == 0 || len(p.Knowledge) == 0 || len(p.Items) == 0 {
		errs = append(errs, "population: roles, names, knowledge and items must all be non-empty")
	}
	for _, k := range p.Items {
		if len(k.Subtypes) == 0 {
			errs = append(errs, fmt.Sprintf("population item %q: subtypes must not be empty", k.Type))
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("location catalog validation failed: %s", strings.Join(errs, "; "))
	}
	c.byID = byID
	return nil
}

// Lookup returns the location with the given ID.
func (c *Catalog) Lookup(id ID) (*Location, bool) {
	l, ok := c.byID[id]
	return l, ok
}

// AreaOf returns the area for id, or FallbackArea for unknown locations.
func (c *Catalog) AreaOf(id ID) Area {
	if l, ok := c.byID[id]; ok {
		return l.Area
	}
	return FallbackArea
}

// Atmosphere returns the flavor line for id.
//
// Postcondition: unknown IDs yield UnknownAtmosphere; known locations without
// an atmosphere line fall back to their description.
func (c *Catalog) Atmosphere(id ID) string {
	l, ok := c.byID[id]
	if !ok {
		return UnknownAtmosphere
	}
	if l.Atmosphere != "" {
		return l.Atmosphere
	}
	return l.Description
}

// Difficulty returns the difficulty rating for id.
func (c *Catalog) Difficulty(id ID) int {
	if l, ok := c.byID[id]; ok && l.Difficulty > 0 {
		return l.Difficulty
	}
	return DefaultDifficulty
}

// HidingSpots returns the hiding spots for area, using FallbackArea's table
// when the area has none.
func (c *Catalog) HidingSpots(area Area) []HidingSpot {
	if t := c.Areas[area]; t != nil && len(t.HidingSpots) > 0 {
		return append([]HidingSpot(nil), t.HidingSpots...)
	}
	return append([]HidingSpot(nil), c.Areas[FallbackArea].HidingSpots...)
}

// Weapons returns the weapons for area; empty when none are defined.
func (c *Catalog) Weapons(area Area) []Weapon {
	if t := c.Areas[area]; t != nil {
		return append([]Weapon(nil), t.Weapons...)
	}
	return nil
}

// EscapeRoutes returns the escape routes for area; empty when none are defined.
func (c *Catalog) EscapeRoutes(area Area) []EscapeRoute {
	if t := c.Areas[area]; t != nil {
		return append([]EscapeRoute(nil), t.EscapeRoutes...)
	}
	return nil
}

// Load parses and validates a catalog from YAML.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing location catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

//go:embed locations.yaml
var defaultCatalog []byte

// LoadDefault returns the embedded catalog.
func LoadDefault() (*Catalog, error) {
	return Load(defaultCatalog)
}

// MustLoadDefault returns the embedded catalog and panics if it is invalid.
func MustLoadDefault() *Catalog {
	c, err := LoadDefault()
	if err != nil {
		panic("location: embedded catalog is invalid: " + err.Error())
	}
	return c
}
