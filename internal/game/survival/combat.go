package survival

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
)

const (
	// CriticalFraction of accuracy below which a hit is critical.
	CriticalFraction = 0.3
	// CriticalMultiplier scales the damage of a critical hit.
	CriticalMultiplier = 1.5
	// MissStress is the stress gained on a miss.
	MissStress = 15
)

// AttackResult reports one attack.
type AttackResult struct {
	Weapon         string  `json:"weapon"`
	Hit            bool    `json:"hit"`
	Critical       bool    `json:"critical"`
	Damage         float64 `json:"damage"`
	Broken         bool    `json:"broken"`
	StressIncrease int     `json:"stressIncrease,omitempty"`
	RoundsLeft     int     `json:"roundsLeft,omitempty"`
}

// FindWeapons lists the weapons of loc and puts them in the player's hands,
// replacing any weapons held before. Areas without weapons yield an empty list.
func (r *Resolver) FindWeapons(loc location.ID) []location.Weapon {
	weapons := r.catalog.Weapons(r.areaFor(loc))
	held := make([]heldWeapon, 0, len(weapons))
	for _, w := range weapons {
		held = append(held, heldWeapon{Weapon: w, rounds: w.Ammo})
	}
	r.mu.Lock()
	r.weapons = held
	r.mu.Unlock()
	r.logger.Debug("weapons found",
		zap.String("location", string(loc)),
		zap.Int("count", len(weapons)),
	)
	return weapons
}

// AttackKiller attacks with a held weapon. The hit draw decides hit and
// critical; a second, independent draw decides whether the weapon breaks,
// whether or not it hit.
//
// Postcondition: on a miss stress has risen by MissStress (cap MaxStress);
// a broken weapon is no longer held; an ammunition-limited weapon has one
// round fewer.
func (r *Resolver) AttackKiller(weaponID string) (AttackResult, error) {
	r.mu.Lock()
	if r.player.Dead {
		r.mu.Unlock()
		return AttackResult{}, ErrPlayerDead
	}
	idx := -1
	for i, w := range r.weapons {
		if w.ID == weaponID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return AttackResult{}, fmt.Errorf("%w: %q", ErrUnknownWeapon, weaponID)
	}
	w := &r.weapons[idx]
	if w.limited() {
		if w.rounds <= 0 {
			r.mu.Unlock()
			return AttackResult{}, fmt.Errorf("%w: %s", ErrOutOfAmmo, w.Name)
		}
		w.rounds--
	}

	res := AttackResult{Weapon: w.Name, RoundsLeft: w.rounds}
	hit, draw := r.roller.Chance("attack_hit", w.Accuracy)
	res.Hit = hit
	if hit {
		res.Critical = draw < w.Accuracy*CriticalFraction
		res.Damage = w.Damage
		if res.Critical {
			res.Damage *= CriticalMultiplier
		}
		r.player.CombatActions++
	} else {
		r.player.addStress(MissStress)
		res.StressIncrease = MissStress
	}
	res.Broken, _ = r.roller.Chance("weapon_break", w.BreakChance)
	if res.Broken {
		r.weapons = append(r.weapons[:idx:idx], r.weapons[idx+1:]...)
	}
	stress := r.player.Stress
	r.mu.Unlock()

	if hit {
		r.logger.Info("attack hit",
			zap.String("weapon", res.Weapon),
			zap.Float64("damage", res.Damage),
			zap.Bool("critical", res.Critical),
		)
		r.bus.Publish(event.AttackHitPayload{Weapon: res.Weapon, Damage: res.Damage, Critical: res.Critical})
	} else {
		r.logger.Info("attack missed", zap.String("weapon", res.Weapon))
		r.bus.Publish(event.AttackMissPayload{Weapon: res.Weapon, StressLevel: stress})
	}
	if res.Broken {
		r.logger.Info("weapon broke", zap.String("weapon", res.Weapon))
		r.bus.Publish(event.WeaponBrokenPayload{Weapon: res.Weapon})
	}
	return res, nil
}
