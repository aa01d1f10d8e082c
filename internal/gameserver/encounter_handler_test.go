package gameserver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/destiny/internal/game/clock"
	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/killer"
	"github.com/cory-johannsen/destiny/internal/game/survival"
	"github.com/cory-johannsen/destiny/internal/gameserver"
	"github.com/cory-johannsen/destiny/internal/storage/memory"
)

// switchSource returns a fixed value that the test can change mid-game.
type switchSource struct {
	mu sync.Mutex
	v  float64
}

func (s *switchSource) set(v float64) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

func (s *switchSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

func (s *switchSource) Intn(n int) int { return min(n-1, int(s.Float64()*float64(n))) }

// recorder keeps every published event; the bus history is bounded and
// timer ticks would push older events out.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) count(n event.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := 0
	for _, e := range r.events {
		if e.Name == n {
			c++
		}
	}
	return c
}

// fates lists the fate of every expired countdown in order.
func (r *recorder) fates() []killer.Fate {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []killer.Fate
	for _, e := range r.events {
		if p, ok := e.Payload.(event.TimerExpiredPayload); ok {
			out = append(out, killer.Fate(p.FateMessage))
		}
	}
	return out
}

// newScriptedGame returns a started game whose dice always read from src.
func newScriptedGame(t *testing.T, src dice.Source) (*gameserver.Game, *clock.Virtual, *recorder) {
	t.Helper()
	v := clock.NewVirtual(epoch)
	g, err := gameserver.NewGame(testConfig(), memory.NewSaveStore(), zaptest.NewLogger(t),
		gameserver.WithScheduler(v), gameserver.WithSource(src))
	require.NoError(t, err)
	t.Cleanup(g.Close)
	rec := &recorder{}
	g.Bus().SubscribeAll(func(e event.Event) {
		rec.mu.Lock()
		rec.events = append(rec.events, e)
		rec.mu.Unlock()
	})
	start(t, g)
	return g, v, rec
}

func hideIn(t *testing.T, g *gameserver.Game, spot string) {
	t.Helper()
	act(t, g, gameserver.Action{Type: gameserver.ActionHide})
	act(t, g, gameserver.Action{Type: gameserver.ActionHide, Target: spot})
}

// expire runs the clock past the longest possible countdown.
func expire(v *clock.Virtual) {
	v.Advance(time.Duration(killer.BaseCountdown+killer.CountdownJitter+1) * time.Second)
}

func TestHide_NoDiscoveryWithoutEncounter(t *testing.T) {
	g, v, rec := newScriptedGame(t, dice.NewSequence(0.0))
	hideIn(t, g, "subway_bench")

	v.Advance(2 * time.Second)
	s := g.Status().Survival
	assert.Zero(t, rec.count(event.HidingDiscovered))
	assert.Equal(t, "subway_bench", s.Hiding)
	assert.NotEqual(t, survival.MaxStress, s.Stress)

	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	v.Advance(time.Second)
	assert.Equal(t, 1, rec.count(event.HidingDiscovered))
	assert.Empty(t, g.Status().Survival.Hiding)
}

func TestRespond_NeedsEncounter(t *testing.T) {
	g, _ := newTestGame(t)
	start(t, g)
	before := g.Status().Game.Player

	_, err := g.Act(context.Background(), gameserver.Action{Type: gameserver.ActionRespond, Target: "join", Text: "take me"})
	assert.ErrorIs(t, err, gameserver.ErrNoEncounter)
	after := g.Status().Game.Player
	assert.False(t, after.JoinedKiller)
	assert.Equal(t, before.CorruptionLevel, after.CorruptionLevel)
	assert.Zero(t, g.Status().Evolution.HuntsThisSession)
}

func TestRespond_AfterExpiryNeedsEncounter(t *testing.T) {
	g, v := newTestGame(t)
	start(t, g)
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	expire(v)

	_, err := g.Act(context.Background(), gameserver.Action{Type: gameserver.ActionRespond, Target: "join"})
	assert.ErrorIs(t, err, gameserver.ErrNoEncounter)
	assert.False(t, g.Status().Game.Player.JoinedKiller)
}

func TestLoadThenEnd_DoesNotCloseFinishedEncounterAgain(t *testing.T) {
	g, v := newTestGame(t)
	start(t, g)
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	expire(v)
	require.Equal(t, 1, g.Status().Evolution.HuntsThisSession)

	act(t, g, gameserver.Action{Type: gameserver.ActionSave, Slot: 0})
	act(t, g, gameserver.Action{Type: gameserver.ActionLoad, Slot: 0})
	act(t, g, gameserver.Action{Type: gameserver.ActionEnd})

	s := g.Status()
	assert.Equal(t, 1, s.Evolution.HuntsThisSession)
	assert.Equal(t, gameserver.AwarenessPerEncounter, s.Game.GovernmentAwareness)
}

func TestLoad_StopsRunningEncounterWithoutCredit(t *testing.T) {
	g, v := newTestGame(t)
	start(t, g)
	act(t, g, gameserver.Action{Type: gameserver.ActionSave, Slot: 2})
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	act(t, g, gameserver.Action{Type: gameserver.ActionLoad, Slot: 2})
	assert.False(t, g.Status().Killer.CountdownActive)

	expire(v)
	act(t, g, gameserver.Action{Type: gameserver.ActionEnd})
	assert.Zero(t, g.Status().Evolution.HuntsThisSession)
}

func TestEnd_ClosesRunningEncounterAsEscape(t *testing.T) {
	g, _ := newTestGame(t)
	start(t, g)
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	act(t, g, gameserver.Action{Type: gameserver.ActionEnd})
	assert.Equal(t, 1, g.Status().Evolution.HuntsThisSession)
	assert.False(t, g.Status().Killer.CountdownActive)
}

func TestFate_EscapedSafely(t *testing.T) {
	g, v, rec := newScriptedGame(t, dice.NewSequence(0.99))
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})

	out := act(t, g, gameserver.Action{Type: gameserver.ActionEscape, Target: "tunnel_escape"})
	esc, ok := out.Data.(gameserver.EscapeResult)
	require.True(t, ok)
	require.False(t, esc.Escape.Success)
	assert.Equal(t, 250, esc.Escape.GroundCovered)

	hideIn(t, g, "subway_locker")
	expire(v)
	assert.Equal(t, []killer.Fate{killer.FateEscapedSafely}, rec.fates())
	assert.False(t, g.Status().Survival.Dead)
}

func TestFate_NegotiationSuccess(t *testing.T) {
	g, v, rec := newScriptedGame(t, dice.NewSequence(0.0))
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	out := act(t, g, gameserver.Action{Type: gameserver.ActionPsychology, Target: "reasoning", Text: "nobody has to die"})
	psych, ok := out.Data.(gameserver.PsychologyResult)
	require.True(t, ok)
	require.True(t, psych.Attempt.Success)
	act(t, g, gameserver.Action{Type: gameserver.ActionRespond, Target: "negotiate", Text: "let's talk"})

	expire(v)
	assert.Equal(t, []killer.Fate{killer.FateNegotiationSuccess}, rec.fates())
	assert.False(t, g.Status().Survival.Dead)
}

func TestFate_WoundedKillerEscaped(t *testing.T) {
	g, v, rec := newScriptedGame(t, dice.NewSequence(0.0))
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	out := act(t, g, gameserver.Action{Type: gameserver.ActionAttack})
	list, ok := out.Data.(gameserver.AttackResult)
	require.True(t, ok)
	require.NotEmpty(t, list.Weapons)

	out = act(t, g, gameserver.Action{Type: gameserver.ActionAttack, Target: list.Weapons[0].ID})
	hit, ok := out.Data.(gameserver.AttackResult)
	require.True(t, ok)
	require.True(t, hit.Attack.Hit)

	expire(v)
	assert.Equal(t, []killer.Fate{killer.FateWoundedKillerEscaped}, rec.fates())
	assert.False(t, g.Status().Survival.Dead)
}

func TestFate_CapturedOrKilled(t *testing.T) {
	g, v, rec := newScriptedGame(t, dice.NewSequence(0.99))
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	expire(v)
	assert.Equal(t, []killer.Fate{killer.FateCapturedOrKilled}, rec.fates())
	assert.True(t, g.Status().Survival.Dead)
}

func TestFate_DiscoveredHidingDoesNotCount(t *testing.T) {
	src := &switchSource{v: 0.99}
	g, v, rec := newScriptedGame(t, src)
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	act(t, g, gameserver.Action{Type: gameserver.ActionEscape, Target: "tunnel_escape"})
	hideIn(t, g, "subway_locker")

	src.set(0.0)
	v.Advance(time.Second)
	require.Equal(t, 1, rec.count(event.HidingDiscovered))

	expire(v)
	assert.Equal(t, []killer.Fate{killer.FateCapturedOrKilled}, rec.fates())
}

func TestRace_DiscoveryThenExpiry(t *testing.T) {
	src := &switchSource{v: 0.99}
	g, v, rec := newScriptedGame(t, src)
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	hideIn(t, g, "subway_locker")

	src.set(0.0)
	v.Advance(time.Second)
	assert.Equal(t, 1, rec.count(event.HidingDiscovered))
	assert.True(t, g.Status().Killer.CountdownActive, "discovery leaves the countdown running")

	expire(v)
	assert.Equal(t, 1, rec.count(event.HidingDiscovered))
	assert.Equal(t, 1, rec.count(event.TimerExpired))
	assert.Equal(t, 1, g.Status().Evolution.HuntsThisSession)
}

func TestRace_ExpiryThenDiscovery(t *testing.T) {
	src := &switchSource{v: 0.99}
	g, v, rec := newScriptedGame(t, src)
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	hideIn(t, g, "subway_locker")

	expire(v)
	require.Equal(t, 1, rec.count(event.TimerExpired))

	src.set(0.0)
	v.Advance(10 * time.Second)
	assert.Zero(t, rec.count(event.HidingDiscovered))
	assert.Equal(t, 1, g.Status().Evolution.HuntsThisSession)
	assert.Equal(t, gameserver.AwarenessPerEncounter, g.Status().Game.GovernmentAwareness)
}

func TestEscape_SuccessClosesEncounter(t *testing.T) {
	g, _, _ := newScriptedGame(t, dice.NewSequence(0.0))
	act(t, g, gameserver.Action{Type: gameserver.ActionEngage})
	out := act(t, g, gameserver.Action{Type: gameserver.ActionEscape, Target: "tunnel_escape"})
	esc, ok := out.Data.(gameserver.EscapeResult)
	require.True(t, ok)
	require.True(t, esc.Escape.Success)
	require.NotNil(t, esc.Summary)
	assert.Equal(t, 1, g.Status().Evolution.HuntsThisSession)
	assert.False(t, g.Status().Killer.CountdownActive)
}
