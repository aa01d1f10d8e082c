package survival

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

// SafeDistance is reported after a successful escape.
const SafeDistance = 500

// A failed escape still covers route distance / PartialEscapeDivisor before
// the killer closes in.
const PartialEscapeDivisor = 2

// EscapeResult reports an escape attempt.
type EscapeResult struct {
	Route         string  `json:"route"`
	Success       bool    `json:"success"`
	Chance        float64 `json:"chance"`
	SafeDistance  int     `json:"safeDistance,omitempty"`
	GroundCovered int     `json:"groundCovered,omitempty"`
	CaughtBy      string  `json:"caughtBy,omitempty"`
}

// FindEscapeRoute lists the escape routes of loc; empty when none are defined.
func (r *Resolver) FindEscapeRoute(loc location.ID) []location.EscapeRoute {
	return r.catalog.EscapeRoutes(r.areaFor(loc))
}

// EscapeChance is 0.5 + endurance/10 - stress/100. It is not clamped; values
// outside [0, 1] simply always or never succeed.
func EscapeChance(endurance float64, stress int) float64 {
	return 0.5 + endurance/10 - float64(stress)/100
}

// AttemptEscape tries to flee along one of the current location's routes
// with a single draw. A successful escape ends any hiding attempt; a failed
// one still reports the ground covered before the killer caught up.
func (r *Resolver) AttemptEscape(routeID string) (EscapeResult, error) {
	r.mu.Lock()
	if r.player.Dead {
		r.mu.Unlock()
		return EscapeResult{}, ErrPlayerDead
	}
	var route location.EscapeRoute
	found := false
	for _, rt := range r.catalog.EscapeRoutes(r.areaFor(r.player.Location)) {
		if rt.ID == routeID {
			route, found = rt, true
			break
		}
	}
	if !found {
		r.mu.Unlock()
		return EscapeResult{}, fmt.Errorf("%w: %q", ErrUnknownRoute, routeID)
	}
	chance := EscapeChance(r.player.Skills[location.Endurance], r.player.Stress)
	res := EscapeResult{Route: route.Name, Chance: chance}
	res.Success, _ = r.roller.Chance("escape", chance)
	if res.Success {
		res.SafeDistance = SafeDistance
		r.endHidingLocked()
	} else {
		res.CaughtBy = "Killer is closing in!"
		res.GroundCovered = route.Distance / PartialEscapeDivisor
	}
	r.mu.Unlock()

	r.logger.Info("escape attempt",
		zap.String("route", route.ID),
		zap.Float64("chance", chance),
		zap.Bool("success", res.Success),
	)
	if res.Success {
		r.bus.Publish(event.EscapeSuccessPayload{Route: route.Name, SafeDistance: SafeDistance})
	} else {
		r.bus.Publish(event.EscapeFailedPayload{Route: route.Name, Chance: chance, Message: res.CaughtBy})
	}
	return res, nil
}
