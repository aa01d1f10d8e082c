package gameserver

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/killer"
	"github.com/cory-johannsen/destiny/internal/game/location"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/game/survival"
)

// MaxHazardAvoidance caps the chance to dodge a hazard on arrival.
const MaxHazardAvoidance = 0.95

// HazardOutcome reports one hazard met on arrival.
type HazardOutcome struct {
	Type    string                 `json:"type"`
	Avoided bool                   `json:"avoided"`
	Damage  *survival.DamageResult `json:"damage,omitempty"`
}

// TravelResult is returned by Travel.
type TravelResult struct {
	Visit   *location.Instance   `json:"visit"`
	Killer  killer.LocationShift `json:"killer"`
	Hazards []HazardOutcome      `json:"hazards,omitempty"`
	Exits   []location.ID        `json:"exits,omitempty"`
}

// WorldHandler handles movement between locations and the generated content
// of the current visit.
type WorldHandler struct {
	catalog   *location.Catalog
	generator *location.Generator
	roller    *dice.Roller
	state     *state.Coordinator
	survival  *survival.Resolver
	killer    *killer.Engine
	logger    *zap.Logger

	mu    sync.Mutex
	visit *location.Instance
}

// NewWorldHandler creates a WorldHandler with the given dependencies.
//
// Precondition: all arguments must be non-nil; catalog must be validated.
func NewWorldHandler(catalog *location.Catalog, roller *dice.Roller, coord *state.Coordinator, surv *survival.Resolver, eng *killer.Engine, logger *zap.Logger) *WorldHandler {
	return &WorldHandler{
		catalog:   catalog,
		generator: location.NewGenerator(catalog, roller.Source()),
		roller:    roller,
		state:     coord,
		survival:  surv,
		killer:    eng,
		logger:    logger,
	}
}

// Arrive regenerates the player's current location without moving the
// killer or rolling hazards. Used on start and load.
func (h *WorldHandler) Arrive() (*location.Instance, error) {
	id := h.state.Player().Location
	in, err := h.generator.Generate(id)
	if err != nil {
		return nil, err
	}
	h.survival.SetLocation(id)
	h.mu.Lock()
	h.visit = in
	h.mu.Unlock()
	return in, nil
}

// Travel moves the player to id. The location is regenerated, the killer
// follows and each hazard of the visit is dodged with one draw against the
// player's endurance or applied.
//
// Precondition: the player is alive.
// Postcondition: returns location.ErrUnknownLocation for IDs outside the
// catalog without any change.
func (h *WorldHandler) Travel(id location.ID) (TravelResult, error) {
	if h.survival.Status().Dead {
		return TravelResult{}, survival.ErrPlayerDead
	}
	in, err := h.generator.Generate(id)
	if err != nil {
		return TravelResult{}, err
	}
	h.survival.SetLocation(id)
	h.state.ChangeLocation(id)
	h.mu.Lock()
	h.visit = in
	h.mu.Unlock()

	res := TravelResult{Visit: in, Killer: h.killer.MoveToLocation(id)}
	if loc, ok := h.catalog.Lookup(id); ok {
		res.Exits = append(res.Exits, loc.Neighbors...)
	}
	endurance := h.survival.Status().Skills[location.Endurance]
	avoid := math.Min(MaxHazardAvoidance, 0.5+endurance/10)
	for _, hz := range in.Hazards {
		out := HazardOutcome{Type: hz.Type}
		if hz.Avoidable {
			out.Avoided, _ = h.roller.Chance("hazard_"+hz.Type, avoid)
		}
		if !out.Avoided {
			dmg := h.survival.ApplyHazard(hz)
			out.Damage = &dmg
		}
		res.Hazards = append(res.Hazards, out)
	}
	h.logger.Info("player travelled",
		zap.String("location", string(id)),
		zap.Int("hazards", len(res.Hazards)),
	)
	return res, nil
}

// Visit returns the current visit, or nil before the first arrival.
func (h *WorldHandler) Visit() *location.Instance {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visit
}

// NPC looks up a bystander of the current visit.
func (h *WorldHandler) NPC(id string) (location.NPC, error) {
	in := h.Visit()
	if in == nil {
		return location.NPC{}, fmt.Errorf("%w: no location visited", ErrNotPlaying)
	}
	n, ok := in.NPCByID(id)
	if !ok {
		return location.NPC{}, fmt.Errorf("%w: %q", ErrUnknownNPC, id)
	}
	return n, nil
}

// Clear forgets the current visit.
func (h *WorldHandler) Clear() {
	h.mu.Lock()
	h.visit = nil
	h.mu.Unlock()
}
