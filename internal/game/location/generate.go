package location

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/destiny/internal/game/dice"
)

// Position is a point inside a location.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GeneratedSpot is a hide spot placed during a visit.
type GeneratedSpot struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Effectiveness   float64 `json:"effectiveness"`
	SoundProof      bool    `json:"soundProof"`
	RiskOfDiscovery float64 `json:"riskOfDiscovery"`
	HealthDamage    int     `json:"healthDamage"`
	PlayerVisible   bool    `json:"playerVisible"`
}

// AwarenessReduction is how much hiding here dulls the killer's awareness.
func (s GeneratedSpot) AwarenessReduction() float64 {
	if s.SoundProof {
		return 0.7
	}
	return 0.4
}

// Visibility is how visible the player remains while hiding here.
func (s GeneratedSpot) Visibility() float64 {
	if s.PlayerVisible {
		return 0.3
	}
	return 0.05
}

// NPC is a bystander generated for a visit.
type NPC struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Attitude  string   `json:"attitude"`
	Knowledge []string `json:"knowledge"`
	Health    int      `json:"health"`
	Position  Position `json:"position"`
	CanHelp   bool     `json:"canHelp"`
	CanBeLied bool     `json:"canBeLied"`
}

// Item is a loose object generated for a visit.
type Item struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Type                   string   `json:"type"`
	Subtype                string   `json:"subtype"`
	Position               Position `json:"position"`
	Value                  float64  `json:"value"`
	UsefulAgainstKiller    bool     `json:"usefulAgainstKiller,omitempty"`
	UsefulForInvestigation bool     `json:"usefulForInvestigation,omitempty"`
	HelpfulForEscape       bool     `json:"helpfulForEscape,omitempty"`
}

// Hazard is an environmental danger active during a visit.
type Hazard struct {
	Type      string          `json:"type"`
	Damage    dice.Expression `json:"-"`
	DamageRaw string          `json:"damage"`
	Warning   time.Duration   `json:"warning"`
	Avoidable bool            `json:"avoidable"`
}

// Instance is one visit's worth of generated content.
type Instance struct {
	LocationID  ID              `json:"locationId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Area        Area            `json:"area"`
	HideSpots   []GeneratedSpot `json:"hideSpots"`
	NPCs        []NPC           `json:"npcs"`
	Items       []Item          `json:"items"`
	Hazards     []Hazard        `json:"hazards"`
}

// Spot returns the generated spot with the given ID.
func (in *Instance) Spot(id string) (GeneratedSpot, bool) {
	for _, s := range in.HideSpots {
		if s.ID == id {
			return s, true
		}
	}
	return GeneratedSpot{}, false
}

// NPCByID returns the generated NPC with the given ID.
func (in *Instance) NPCByID(id string) (NPC, bool) {
	for _, n := range in.NPCs {
		if n.ID == id {
			return n, true
		}
	}
	return NPC{}, false
}

// Generator produces a fresh Instance on every visit.
type Generator struct {
	catalog *Catalog
	src     dice.Source
}

// NewGenerator creates a Generator drawing from src.
//
// Precondition: catalog must be validated; src must be non-nil.
func NewGenerator(catalog *Catalog, src dice.Source) *Generator {
	return &Generator{catalog: catalog, src: src}
}

// Generate populates the location id. Every call regenerates from scratch.
//
// Postcondition: returns ErrUnknownLocation for IDs not in the catalog;
// otherwise len(HideSpots) == HideSpotCount and 3 <= len(Items) <= 7.
func (g *Generator) Generate(id ID) (*Instance, error) {
	loc, ok := g.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, id)
	}
	in := &Instance{
		LocationID:  loc.ID,
		Name:        loc.Name,
		Description: loc.Description,
		Area:        loc.Area,
	}
	in.NPCs = g.npcs(loc)
	in.Items = g.items(loc)
	in.Hazards = g.hazards(loc)
	in.HideSpots = g.spots(loc)
	return in, nil
}

func (g *Generator) spots(loc *Location) []GeneratedSpot {
	types := loc.HideSpotTypes
	if len(types) == 0 {
		types = []string{"generic_spot"}
	}
	out := make([]GeneratedSpot, 0, loc.HideSpotCount)
	for i := 0; i < loc.HideSpotCount; i++ {
		typ := types[g.src.Intn(len(types))]
		st := g.catalog.SpotTypes[typ]
		out = append(out, GeneratedSpot{
			ID:              fmt.Sprintf("hidespot_%s_%d", loc.ID, i),
			Name:            st.Name,
			Type:            typ,
			Effectiveness:   st.Effectiveness,
			SoundProof:      st.SoundProof,
			RiskOfDiscovery: g.src.Float64() * 0.5,
			HealthDamage:    st.HealthDamage,
			PlayerVisible:   g.src.Float64() > 0.3,
		})
	}
	return out
}

// npcCount maps a density to a head count.
func (g *Generator) npcCount(density string) int {
	switch density {
	case "none":
		return 0
	case "very_low":
		return 1
	case "low":
		return g.src.Intn(2) + 2
	case "medium":
		return g.src.Intn(2) + 4
	case "high":
		return g.src.Intn(3) + 6
	default:
		return 2
	}
}

func (g *Generator) npcs(loc *Location) []NPC {
	p := g.catalog.Population
	n := g.npcCount(loc.NPCDensity)
	out := make([]NPC, 0, n)
	for i := 0; i < n; i++ {
		name := p.FirstNames[g.src.Intn(len(p.FirstNames))] + " " + p.LastNames[g.src.Intn(len(p.LastNames))]
		role := p.Roles[g.src.Intn(len(p.Roles))]
		attitude := "neutral"
		if g.src.Float64() > 0.5 {
			attitude = "suspicious"
		}
		k := g.src.Intn(3) + 1
		if k > len(p.Knowledge) {
			k = len(p.Knowledge)
		}
		out = append(out, NPC{
			ID:        fmt.Sprintf("npc_%s_%d", loc.ID, i),
			Name:      name,
			Role:      role,
			Attitude:  attitude,
			Knowledge: append([]string(nil), p.Knowledge[:k]...),
			Health:    100,
			Position:  g.position(),
			CanHelp:   g.src.Float64() > 0.4,
			CanBeLied: g.src.Float64() > 0.3,
		})
	}
	return out
}

func (g *Generator) items(loc *Location) []Item {
	kinds := g.catalog.Population.Items
	n := g.src.Intn(5) + 3
	out := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		kind := kinds[g.src.Intn(len(kinds))]
		sub := kind.Subtypes[g.src.Intn(len(kind.Subtypes))]
		out = append(out, Item{
			ID:                     fmt.Sprintf("item_%s_%d", loc.ID, i),
			Name:                   sub,
			Type:                   kind.Type,
			Subtype:                sub,
			Position:               g.position(),
			Value:                  g.src.Float64() * 100,
			UsefulAgainstKiller:    kind.UsefulAgainstKiller,
			UsefulForInvestigation: kind.UsefulForInvestigation,
			HelpfulForEscape:       kind.HelpfulForEscape,
		})
	}
	return out
}

func (g *Generator) hazards(loc *Location) []Hazard {
	var out []Hazard
	for _, h := range g.catalog.TypeHazards[loc.Type] {
		out = append(out, g.hazard(h))
	}
	for _, h := range loc.Hazards {
		out = append(out, g.hazard(h))
	}
	return out
}

func (g *Generator) hazard(h HazardTemplate) Hazard {
	warning := time.Duration(h.WarningMS) * time.Millisecond
	if h.WarningMS == 0 {
		warning = time.Duration(3000+g.src.Float64()*10000) * time.Millisecond
	}
	return Hazard{
		Type:      h.Type,
		Damage:    dice.MustParse(h.Damage),
		DamageRaw: h.Damage,
		Warning:   warning,
		Avoidable: h.Avoidable,
	}
}

func (g *Generator) position() Position {
	return Position{
		X: g.src.Float64()*100 - 50,
		Y: g.src.Float64() * 20,
		Z: g.src.Float64()*100 - 50,
	}
}
