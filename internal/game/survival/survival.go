// Package survival resolves the player's survival actions (hiding, fighting,
// talking and running) against the location tables and the player's skills.
//
// The Resolver is the single owner of the player's survival state.
package survival

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/clock"
	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

const (
	// DefaultStress is the stress level of a fresh player.
	DefaultStress = 50
	// MaxStress is the stress ceiling.
	MaxStress = 100
	// FatalInjuries is the injury count at which the player dies.
	FatalInjuries = 3
	// InjuryDamage is the damage per injury point, rounded up.
	InjuryDamage = 20
)

var (
	ErrUnknownSpot   = errors.New("hiding spot not found")
	ErrAlreadyHiding = errors.New("player is already hiding")
	ErrUnknownWeapon = errors.New("weapon not found")
	ErrOutOfAmmo     = errors.New("weapon is out of ammunition")
	ErrUnknownTactic = errors.New("unknown psychology tactic")
	ErrUnknownRoute  = errors.New("escape route not found")
	ErrPlayerDead    = errors.New("player is dead")
)

// RequirementError reports the first unmet skill requirement of a hiding spot.
type RequirementError struct {
	Skill location.Skill
	Have  float64
	Need  int
}

func (e *RequirementError) Error() string {
	return fmt.Sprintf("Not skilled enough. Need %s: %d", e.Skill, e.Need)
}

// DefaultSkills returns the starting skill set.
func DefaultSkills() map[location.Skill]float64 {
	return map[location.Skill]float64{
		location.Stealth:    5,
		location.Combat:     3,
		location.Psychology: 6,
		location.Endurance:  4,
	}
}

// PlayerState is the survival side of the player.
type PlayerState struct {
	Location      location.ID                `json:"location"`
	Stress        int                        `json:"stressLevel"`
	HideLevel     int                        `json:"hideLevel"`
	Injuries      int                        `json:"injuries"`
	Skills        map[location.Skill]float64 `json:"skills"`
	Inventory     []string                   `json:"inventory"`
	TimeHidden    int                        `json:"timeHidden"`
	CombatActions int                        `json:"combatActions"`
	Dead          bool                       `json:"dead"`
}

func newPlayerState(loc location.ID) PlayerState {
	return PlayerState{
		Location: loc,
		Stress:   DefaultStress,
		Skills:   DefaultSkills(),
	}
}

func (p PlayerState) clone() PlayerState {
	out := p
	out.Skills = make(map[location.Skill]float64, len(p.Skills))
	for k, v := range p.Skills {
		out.Skills[k] = v
	}
	out.Inventory = append([]string(nil), p.Inventory...)
	return out
}

func (p *PlayerState) addStress(n int) {
	p.Stress = max(0, min(MaxStress, p.Stress+n))
}

// heldWeapon is a found weapon with its remaining rounds.
type heldWeapon struct {
	location.Weapon
	rounds int
}

func (w heldWeapon) limited() bool { return w.Ammo > 0 }

// hiding is the active hiding attempt. gen identifies it so ticks from a
// cancelled attempt are ignored.
type hiding struct {
	gen    int
	spot   location.HidingSpot
	ticker clock.Ticker
}

// Resolver resolves survival actions for one player.
type Resolver struct {
	catalog *location.Catalog
	roller  *dice.Roller
	sched   clock.Scheduler
	bus     event.Publisher
	logger  *zap.Logger
	psych   map[PsychTactic]psychRule
	tick    time.Duration
	active  func() bool

	mu      sync.Mutex
	player  PlayerState
	spots   []location.HidingSpot
	weapons []heldWeapon
	hiding  *hiding
	gen     int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocation sets the starting location.
func WithLocation(id location.ID) Option {
	return func(r *Resolver) { r.player.Location = id }
}

// WithHidingTick sets the wall time of one hiding tick. A non-positive d
// keeps HidingTick.
func WithHidingTick(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.tick = d
		}
	}
}

// WithEncounterActive sets the predicate consulted before each discovery
// draw. While it reports false a hidden player cannot be found. Without it
// discovery is always possible.
func WithEncounterActive(fn func() bool) Option {
	return func(r *Resolver) { r.active = fn }
}

// NewResolver creates a Resolver for a fresh player.
//
// Precondition: catalog must be validated; roller, sched, bus and logger must be non-nil.
// Postcondition: returns an error when the psychology tactic table does not
// cover every PsychTactic or the catalog lacks fallback hiding spots.
func NewResolver(catalog *location.Catalog, roller *dice.Roller, sched clock.Scheduler, bus event.Publisher, logger *zap.Logger, opts ...Option) (*Resolver, error) {
	if err := validatePsychRules(psychRules); err != nil {
		return nil, err
	}
	if len(catalog.HidingSpots(location.FallbackArea)) == 0 {
		return nil, fmt.Errorf("survival: catalog has no hiding spots for fallback area %s", location.FallbackArea)
	}
	r := &Resolver{
		catalog: catalog,
		roller:  roller,
		sched:   sched,
		bus:     bus,
		logger:  logger,
		psych:   psychRules,
		tick:    HidingTick,
		player:  newPlayerState(location.StartingLocation),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// areaFor resolves a location ID or a bare area name to an area.
func (r *Resolver) areaFor(id location.ID) location.Area {
	if _, ok := r.catalog.Lookup(id); ok {
		return r.catalog.AreaOf(id)
	}
	switch a := location.Area(id); a {
	case location.AreaSubway, location.AreaResidentialHome, location.AreaStreet:
		return a
	}
	return location.FallbackArea
}

// SetLocation moves the player. An active hiding attempt ends.
func (r *Resolver) SetLocation(id location.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endHidingLocked()
	r.player.Location = id
	r.spots = nil
}

// Status is a snapshot of the player's survival state.
type Status struct {
	PlayerState
	Weapons []WeaponStatus `json:"weapons"`
	Hiding  string         `json:"hidingSpot,omitempty"`
}

// WeaponStatus is a held weapon as reported by Status.
type WeaponStatus struct {
	location.Weapon
	Rounds int `json:"rounds,omitempty"`
}

// Status returns a copy of the player's survival state.
func (r *Resolver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{PlayerState: r.player.clone()}
	for _, w := range r.weapons {
		s.Weapons = append(s.Weapons, WeaponStatus{Weapon: w.Weapon, Rounds: w.rounds})
	}
	if r.hiding != nil {
		s.Hiding = r.hiding.spot.ID
	}
	return s
}

// Restore replaces the survival state, ending any hiding attempt.
func (r *Resolver) Restore(p PlayerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endHidingLocked()
	r.player = p.clone()
	if r.player.Skills == nil {
		r.player.Skills = DefaultSkills()
	}
	r.spots = nil
	r.weapons = nil
}

// Reset returns the player to a fresh state at the starting location.
func (r *Resolver) Reset() {
	r.Restore(newPlayerState(location.StartingLocation))
}

// TakeDamage converts damage into injuries. PLAYER_DEAD is published once,
// on the call that brings injuries to FatalInjuries.
//
// Postcondition: injuries grow by ceil(amount/InjuryDamage); non-positive
// amounts change nothing.
func (r *Resolver) TakeDamage(amount float64) DamageResult {
	return r.takeDamage(amount, "")
}

// DamageResult reports the effect of damage on the player.
type DamageResult struct {
	Damage   float64 `json:"damage"`
	Injuries int     `json:"injuries"`
	Dead     bool    `json:"dead"`
}

func (r *Resolver) takeDamage(amount float64, cause string) DamageResult {
	r.mu.Lock()
	if amount > 0 {
		r.player.Injuries += int(math.Ceil(amount / InjuryDamage))
	}
	died := false
	if r.player.Injuries >= FatalInjuries && !r.player.Dead {
		r.player.Dead = true
		died = true
		r.endHidingLocked()
	}
	res := DamageResult{Damage: amount, Injuries: r.player.Injuries, Dead: r.player.Dead}
	r.mu.Unlock()

	r.logger.Info("player took damage",
		zap.Float64("damage", amount),
		zap.Int("injuries", res.Injuries),
	)
	if died {
		r.logger.Info("player is dead", zap.String("cause", cause))
		r.bus.Publish(event.PlayerDeadPayload{Injuries: res.Injuries, Cause: cause})
	}
	return res
}

// ApplyHazard rolls a hazard's damage and applies it.
func (r *Resolver) ApplyHazard(h location.Hazard) DamageResult {
	roll := dice.Roll(h.Damage, r.roller.Source())
	r.logger.Debug("hazard damage",
		zap.String("hazard", h.Type),
		zap.String("expression", roll.Expression),
		zap.Int("total", roll.Total()),
	)
	return r.takeDamage(float64(roll.Total()), h.Type)
}
