package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/destiny/internal/game/event"
)

func TestBus_DeliversOnlyMatchingName(t *testing.T) {
	bus := event.NewBus(zaptest.NewLogger(t))
	var ticks, all int
	bus.Subscribe(event.TimerTick, func(event.Event) { ticks++ })
	bus.SubscribeAll(func(event.Event) { all++ })

	bus.Publish(event.TimerTickPayload{SecondsRemaining: 10})
	bus.Publish(event.PlayerDeadPayload{Injuries: 3})

	assert.Equal(t, 1, ticks)
	assert.Equal(t, 2, all)
}

func TestBus_PublishStampsNameAndID(t *testing.T) {
	at := time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC)
	bus := event.NewBus(zap.NewNop(), event.WithClock(func() time.Time { return at }))
	a := bus.Publish(event.GamePausePayload{})
	b := bus.Publish(event.GameResumePayload{})

	assert.Equal(t, event.GamePause, a.Name)
	assert.Equal(t, at, a.Timestamp)
	assert.Equal(t, -1, a.ID.Compare(b.ID), "ids must be monotonic")
}

func TestBus_HandlersRunInSubscriptionOrder(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(event.GameStart, func(event.Event) { order = append(order, i) })
	}
	bus.Publish(event.GameStartPayload{})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var n int
	unsub := bus.Subscribe(event.GameSaved, func(event.Event) { n++ })
	bus.Publish(event.GameSavedPayload{Slot: 0})
	unsub()
	unsub()
	bus.Publish(event.GameSavedPayload{Slot: 1})
	assert.Equal(t, 1, n)
}

func TestBus_PanickingHandlerIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := event.NewBus(zap.New(core))
	var after bool
	bus.Subscribe(event.PlayerDead, func(event.Event) { panic("boom") })
	bus.Subscribe(event.PlayerDead, func(event.Event) { after = true })

	require.NotPanics(t, func() { bus.Publish(event.PlayerDeadPayload{Injuries: 3}) })
	assert.True(t, after)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "event handler panicked", logs.All()[0].Message)
}

func TestBus_NestedPublishIsDepthFirst(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var order []event.Name
	bus.SubscribeAll(func(ev event.Event) { order = append(order, ev.Name) })
	bus.Subscribe(event.TimerExpired, func(event.Event) {
		bus.Publish(event.GameEndingPayload{EndingType: "CAPTURED"})
	})
	bus.Publish(event.TimerExpiredPayload{FinalState: "ENDED"})
	assert.Equal(t, []event.Name{event.TimerExpired, event.GameEnding}, order)
}

func TestBus_HistoryIsBounded(t *testing.T) {
	bus := event.NewBus(zap.NewNop(), event.WithHistory(3))
	for i := 5; i > 0; i-- {
		bus.Publish(event.TimerTickPayload{SecondsRemaining: i})
	}
	h := bus.History()
	require.Len(t, h, 3)
	assert.Equal(t, 3, h[0].Payload.(event.TimerTickPayload).SecondsRemaining)
	assert.Equal(t, 1, h[2].Payload.(event.TimerTickPayload).SecondsRemaining)
}

func TestBus_ChannelFiltersAndDropsWhenFull(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	ch, cancel := bus.Channel(1, event.AttackHit)
	bus.Publish(event.AttackMissPayload{Weapon: "crowbar"})
	bus.Publish(event.AttackHitPayload{Weapon: "crowbar", Damage: 25})
	bus.Publish(event.AttackHitPayload{Weapon: "crowbar", Damage: 30})

	ev := <-ch
	assert.Equal(t, 25.0, ev.Payload.(event.AttackHitPayload).Damage)
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() { bus.Publish(event.AttackHitPayload{}) })
}

func TestEvent_Fields(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	ev := bus.Publish(event.TimerTickPayload{SecondsRemaining: 125, MinutesRemaining: 2})
	f, err := ev.Fields()
	require.NoError(t, err)
	assert.Equal(t, "TIMER_TICK", f["name"])
	payload, ok := f["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 125.0, payload["secondsRemaining"])
	assert.Equal(t, ev.ID.String(), f["id"])
}

func TestProperty_Bus_EveryMatchingHandlerRunsOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bus := event.NewBus(zap.NewNop(), event.WithHistory(0))
		n := rapid.IntRange(0, 20).Draw(rt, "handlers")
		counts := make([]int, n)
		for i := range counts {
			i := i
			bus.Subscribe(event.KillerAction, func(event.Event) { counts[i]++ })
		}
		pubs := rapid.IntRange(0, 10).Draw(rt, "publishes")
		for j := 0; j < pubs; j++ {
			bus.Publish(event.KillerActionPayload{Type: "CHASE"})
		}
		for i := range counts {
			assert.Equal(rt, pubs, counts[i])
		}
		assert.Empty(rt, bus.History())
	})
}
