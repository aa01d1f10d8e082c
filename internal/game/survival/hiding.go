package survival

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

const (
	// HidingTick is the cadence of the hiding stress and discovery checks.
	HidingTick = time.Second
	// HidingCalm is the stress relief on entering a hiding spot.
	HidingCalm = 10
	// HidingStressEvery is the number of ticks per point of hiding stress.
	HidingStressEvery = 10
)

// HidingResult reports a successful hiding attempt.
type HidingResult struct {
	Spot        string `json:"spot"`
	HidingPower int    `json:"hidingPower"`
	Duration    int    `json:"duration"`
	StressLevel int    `json:"stressLevel"`
}

// SearchHidingSpots lists the hiding spots of loc and remembers them as the
// candidates for ExecuteHiding. loc may be a location ID or an area name;
// anything else falls back to the street table.
//
// Postcondition: the result is never empty for a validated catalog.
func (r *Resolver) SearchHidingSpots(loc location.ID) []location.HidingSpot {
	spots := r.catalog.HidingSpots(r.areaFor(loc))
	r.mu.Lock()
	r.spots = spots
	r.mu.Unlock()
	r.logger.Debug("hiding spots found",
		zap.String("location", string(loc)),
		zap.Int("count", len(spots)),
	)
	return append([]location.HidingSpot(nil), spots...)
}

// ExecuteHiding hides the player in a spot returned by the last search.
// Requirements are checked in canonical skill order; the first unmet one is
// reported as a *RequirementError.
//
// Precondition: SearchHidingSpots has been called for the current location.
// Postcondition: on success hideLevel equals the spot's hiding power, stress
// has dropped by HidingCalm (floor 0) and a periodic hiding check is running.
func (r *Resolver) ExecuteHiding(spotID string) (HidingResult, error) {
	r.mu.Lock()
	if r.player.Dead {
		r.mu.Unlock()
		return HidingResult{}, ErrPlayerDead
	}
	if r.hiding != nil {
		r.mu.Unlock()
		return HidingResult{}, ErrAlreadyHiding
	}
	var spot location.HidingSpot
	found := false
	for _, s := range r.spots {
		if s.ID == spotID {
			spot, found = s, true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return HidingResult{}, fmt.Errorf("%w: %q", ErrUnknownSpot, spotID)
	}
	for _, skill := range location.Skills {
		need, ok := spot.Requirements[skill]
		if !ok {
			continue
		}
		if have := r.player.Skills[skill]; have < float64(need) {
			r.mu.Unlock()
			r.logger.Info("hiding rejected",
				zap.String("spot", spot.ID),
				zap.String("skill", string(skill)),
				zap.Float64("have", have),
				zap.Int("need", need),
			)
			return HidingResult{}, &RequirementError{Skill: skill, Have: have, Need: need}
		}
	}

	r.player.HideLevel = spot.HidingPower
	r.player.addStress(-HidingCalm)
	r.player.TimeHidden = 0
	r.gen++
	h := &hiding{gen: r.gen, spot: spot}
	r.hiding = h
	h.ticker = r.sched.Every(r.tick, func() { r.hidingTick(h.gen) })
	res := HidingResult{
		Spot:        spot.Name,
		HidingPower: spot.HidingPower,
		Duration:    spot.Duration,
		StressLevel: r.player.Stress,
	}
	r.mu.Unlock()

	r.logger.Info("player hiding", zap.String("spot", spot.ID), zap.Int("hide_level", res.HidingPower))
	r.bus.Publish(event.PlayerHidingPayload{
		SpotName:    spot.Name,
		HidingPower: res.HidingPower,
		StressLevel: res.StressLevel,
	})
	return res, nil
}

// hidingTick advances an active hiding attempt by one tick. Ticks from an
// attempt that has since ended are ignored. The discovery draw only happens
// while an encounter is active.
func (r *Resolver) hidingTick(gen int) {
	hunted := r.active == nil || r.active()
	r.mu.Lock()
	h := r.hiding
	if h == nil || h.gen != gen {
		r.mu.Unlock()
		return
	}
	r.player.TimeHidden++
	if r.player.TimeHidden%HidingStressEvery == 0 {
		r.player.addStress(1)
	}
	if !hunted {
		r.mu.Unlock()
		return
	}
	p := h.spot.DiscoverChance / float64(h.spot.Duration)
	if found, _ := r.roller.Chance("hiding_discovery", p); !found {
		r.mu.Unlock()
		return
	}
	r.endHidingLocked()
	r.player.HideLevel = 0
	r.player.Stress = MaxStress
	r.mu.Unlock()

	r.logger.Info("hiding spot discovered", zap.String("spot", h.spot.ID))
	r.bus.Publish(event.HidingDiscoveredPayload{
		SpotName:     h.spot.Name,
		KillerNearby: true,
		StressLevel:  MaxStress,
	})
}

// EndHiding stops the active hiding attempt, if any, and reports whether one
// was running. The hide level is left as is.
func (r *Resolver) EndHiding() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endHidingLocked()
}

// endHidingLocked requires r.mu.
func (r *Resolver) endHidingLocked() bool {
	if r.hiding == nil {
		return false
	}
	r.hiding.ticker.Stop()
	r.hiding = nil
	return true
}

// HidingIntensity reports how well hidden the player is, in [0, 1]. It is 0
// when no hiding attempt is running. Otherwise it starts at the spot's power
// and settles towards 1 over the spot's duration.
func (r *Resolver) HidingIntensity() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hiding == nil {
		return 0
	}
	base := min(1, float64(r.hiding.spot.HidingPower)/100)
	settled := min(1, float64(r.player.TimeHidden)/float64(r.hiding.spot.Duration))
	return base + (1-base)*settled
}

// Hiding reports whether a hiding attempt is active.
func (r *Resolver) Hiding() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hiding != nil
}
