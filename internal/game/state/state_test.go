package state_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/destiny/internal/game/dialogue"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/location"
	"github.com/cory-johannsen/destiny/internal/game/state"
	"github.com/cory-johannsen/destiny/internal/storage/memory"
)

type fixture struct {
	c      *state.Coordinator
	bus    *event.Bus
	store  *memory.SaveStore
	logs   *observer.ObservedLogs
	events []event.Event
}

func (f *fixture) named(n event.Name) []event.Event {
	var out []event.Event
	for _, e := range f.events {
		if e.Name == n {
			out = append(out, e)
		}
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	f := &fixture{bus: event.NewBus(logger), store: memory.NewSaveStore(), logs: logs}
	f.bus.SubscribeAll(func(e event.Event) { f.events = append(f.events, e) })
	f.c = state.NewCoordinator(f.bus, f.store, logger, state.WithClock(func() time.Time { return time.Unix(1000, 0).UTC() }))
	t.Cleanup(f.c.Close)
	return f
}

func TestNewCoordinator_Defaults(t *testing.T) {
	f := newFixture(t)
	s := f.c.Snapshot()
	assert.Equal(t, state.PhaseMenu, s.Phase)
	assert.Equal(t, state.DifficultyNormal, s.Difficulty)
	assert.Equal(t, 1, s.Playthrough)
	assert.Equal(t, state.DefaultPlayerName, s.Player.Name)
	assert.Equal(t, 100, s.Player.Health)
	assert.Equal(t, 50, s.Player.Stress)
	assert.Equal(t, dialogue.Neutral, s.Player.Alignment)
	assert.Equal(t, location.StartingLocation, s.Player.Location)
	assert.Equal(t, 6.0, s.Player.Skills[location.Psychology])
}

func TestStartGame(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.StartGame("", "Alex"))
	s := f.c.Snapshot()
	assert.Equal(t, state.PhaseMainGame, s.Phase)
	assert.Equal(t, state.DifficultyNormal, s.Difficulty)
	assert.Equal(t, "Alex", s.Player.Name)

	starts := f.named(event.GameStart)
	require.Len(t, starts, 1)
	assert.Equal(t, event.GameStartPayload{Difficulty: "NORMAL", PlayerName: "Alex", Playthrough: 1}, starts[0].Payload)
}

func TestStartGame_UnknownDifficulty(t *testing.T) {
	f := newFixture(t)
	err := f.c.StartGame("IMPOSSIBLE", "")
	assert.ErrorIs(t, err, state.ErrUnknownDifficulty)
	assert.Equal(t, state.PhaseMenu, f.c.Snapshot().Phase)
	assert.Empty(t, f.named(event.GameStart))
}

func TestPauseResume_PlayTime(t *testing.T) {
	f := newFixture(t)
	f.c.AddPlayTime(time.Minute)
	assert.Equal(t, 0, f.c.Snapshot().Stats.TimePlayed, "menu time is not counted")

	require.NoError(t, f.c.StartGame(state.DifficultyHard, ""))
	f.c.AddPlayTime(90 * time.Second)
	f.c.Pause()
	f.c.AddPlayTime(time.Hour)
	assert.True(t, f.c.Snapshot().Paused)
	f.c.Resume()
	f.c.AddPlayTime(30 * time.Second)

	assert.Equal(t, 120, f.c.Snapshot().Stats.TimePlayed)
	assert.Len(t, f.named(event.GamePause), 1)
	assert.Len(t, f.named(event.GameResume), 1)
}

func TestUpdatePlayer_AlignmentAndCorruption(t *testing.T) {
	f := newFixture(t)
	p := f.c.UpdatePlayer(func(p *state.Player) {
		p.Alignment = dialogue.Villain
		p.CorruptionLevel = 49
	})
	assert.Equal(t, dialogue.Villain, p.Alignment)
	require.Len(t, f.named(event.AlignmentChange), 1)
	assert.Equal(t, event.AlignmentChangePayload{OldAlignment: "NEUTRAL", NewAlignment: "VILLAIN"}, f.named(event.AlignmentChange)[0].Payload)
	assert.Empty(t, f.named(event.CorruptionThresholdReached))

	f.c.UpdatePlayer(func(p *state.Player) { p.CorruptionLevel += 200 })
	assert.Equal(t, 100, f.c.Player().CorruptionLevel, "clamped")
	require.Len(t, f.named(event.CorruptionThresholdReached), 1)
	assert.Equal(t, event.CorruptionThresholdReachedPayload{CorruptionLevel: 100}, f.named(event.CorruptionThresholdReached)[0].Payload)

	f.c.UpdatePlayer(func(p *state.Player) { p.CorruptionLevel = 60 })
	assert.Len(t, f.named(event.CorruptionThresholdReached), 1, "already above the threshold")
	assert.Len(t, f.named(event.AlignmentChange), 1, "alignment unchanged")
}

func TestPlayer_ReturnsCopy(t *testing.T) {
	f := newFixture(t)
	p := f.c.Player()
	p.Skills[location.Stealth] = 99
	p.Inventory = append(p.Inventory, "knife")
	assert.Equal(t, 5.0, f.c.Player().Skills[location.Stealth])
	assert.Empty(t, f.c.Player().Inventory)
}

func TestWantedLevel_Thresholds(t *testing.T) {
	cases := []struct {
		awareness int
		level     int
		military  bool
	}{
		{0, 0, false}, {24, 0, false}, {25, 1, false}, {49, 1, false}, {50, 2, false},
		{74, 2, false}, {75, 3, false}, {89, 3, false}, {90, 4, true}, {100, 4, true},
	}
	for _, tc := range cases {
		level, military := state.WantedLevel(tc.awareness)
		assert.Equal(t, tc.level, level, "awareness %d", tc.awareness)
		assert.Equal(t, tc.military, military, "awareness %d", tc.awareness)
	}
}

func TestUpdateGovernmentAwareness(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 30, f.c.UpdateGovernmentAwareness(30))
	assert.Equal(t, 100, f.c.UpdateGovernmentAwareness(500))
	s := f.c.Snapshot()
	assert.Equal(t, 4, s.WantedLevel)
	assert.True(t, s.MilitaryInvolved)

	assert.Equal(t, 0, f.c.UpdateGovernmentAwareness(-1000))
	changes := f.named(event.GovernmentAwarenessChange)
	require.Len(t, changes, 3)
	assert.Equal(t, event.GovernmentAwarenessChangePayload{Awareness: 30, WantedLevel: 1}, changes[0].Payload)
	assert.Equal(t, event.GovernmentAwarenessChangePayload{Awareness: 0}, changes[2].Payload)
}

func TestUpdateGovernmentAwareness_StaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		logger := zap.NewNop()
		c := state.NewCoordinator(event.NewBus(logger), memory.NewSaveStore(), logger)
		defer c.Close()
		for _, amount := range rapid.SliceOf(rapid.IntRange(-200, 200)).Draw(rt, "amounts") {
			got := c.UpdateGovernmentAwareness(amount)
			if got < 0 || got > state.MaxAwareness {
				rt.Fatalf("awareness %d out of range", got)
			}
			level, military := state.WantedLevel(got)
			s := c.Snapshot()
			if s.WantedLevel != level || s.MilitaryInvolved != military {
				rt.Fatalf("wanted %d/%v does not match awareness %d", s.WantedLevel, s.MilitaryInvolved, got)
			}
		}
	})
}

func TestChangeLocation_VisitCount(t *testing.T) {
	f := newFixture(t)
	f.c.ChangeLocation("ABANDONED_HOSPITAL")
	f.c.ChangeLocation("SUBWAY_STATION_A")
	f.c.ChangeLocation("ABANDONED_HOSPITAL")

	changes := f.named(event.LocationChange)
	require.Len(t, changes, 3)
	assert.Equal(t, event.LocationChangePayload{From: "SUBWAY_STATION_A", To: "ABANDONED_HOSPITAL", VisitCount: 1}, changes[0].Payload)
	assert.Equal(t, event.LocationChangePayload{From: "SUBWAY_STATION_A", To: "ABANDONED_HOSPITAL", VisitCount: 2}, changes[2].Payload)
	assert.Equal(t, []string{"ABANDONED_HOSPITAL", "SUBWAY_STATION_A"}, f.c.Snapshot().VisitedLocations)
}

func TestNPCRelationships(t *testing.T) {
	f := newFixture(t)
	f.c.RegisterNPC("janitor_1")
	f.c.RegisterNPC("janitor_1")
	assert.Equal(t, 0.0, f.c.Snapshot().NPCRelationships["janitor_1"])

	assert.Equal(t, 0.25, f.c.UpdateNPCRelationship("janitor_1", 0.25))
	assert.Equal(t, -0.25, f.c.UpdateNPCRelationship("janitor_1", -0.5))
	changes := f.named(event.NPCRelationshipChange)
	require.Len(t, changes, 2)
	assert.Equal(t, event.NPCRelationshipChangePayload{NPCID: "janitor_1", Amount: -0.5, NewValue: -0.25}, changes[1].Payload)
}

func TestEncounterKiller_Counts(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 1, f.c.EncounterKiller("HUNTING_PLAYER"))
	assert.Equal(t, 2, f.c.EncounterKiller("STALKING"))
	enc := f.named(event.KillerEncounter)
	require.Len(t, enc, 2)
	assert.Equal(t, event.KillerEncounterPayload{EncounterNumber: 2, KillerState: "STALKING", Location: "SUBWAY_STATION_A"}, enc[1].Payload)
}

func TestTriggerEnding(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.StartGame(state.DifficultyEasy, ""))
	f.c.UpdatePlayer(func(p *state.Player) { p.CorruptionLevel = 20 })
	f.c.TriggerEnding("JOINED_KILLER")

	s := f.c.Snapshot()
	assert.Equal(t, state.PhaseEnding, s.Phase)
	assert.Equal(t, "JOINED_KILLER", s.EndingType)
	endings := f.named(event.GameEnding)
	require.Len(t, endings, 1)
	p := endings[0].Payload.(event.GameEndingPayload)
	assert.Equal(t, "JOINED_KILLER", p.EndingType)
	assert.Equal(t, "NEUTRAL", p.Alignment)
	assert.Equal(t, 20, p.CorruptionLevel)
}

func TestStatCounters_FollowBus(t *testing.T) {
	f := newFixture(t)
	f.bus.Publish(event.EscapeSuccessPayload{})
	f.bus.Publish(event.EscapeSuccessPayload{})
	f.bus.Publish(event.PlayerDeadPayload{})
	f.bus.Publish(event.DialogueReactionPayload{})
	f.bus.Publish(event.TimerExpiredPayload{})
	f.bus.Publish(event.TimerTickPayload{})

	st := f.c.Snapshot().Stats
	assert.Equal(t, 2, st.EscapeCount)
	assert.Equal(t, 1, st.DeathCount)
	assert.Equal(t, 1, st.ChoicesMade)
	assert.Equal(t, 1, st.EncountersCompleted)

	f.c.Close()
	f.bus.Publish(event.PlayerDeadPayload{})
	assert.Equal(t, 1, f.c.Snapshot().Stats.DeathCount, "unsubscribed")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.c.StartGame(state.DifficultyNormal, "Alex"))
	f.c.UpdatePlayer(func(p *state.Player) {
		p.CorruptionLevel = 35
		p.Alignment = dialogue.Hero
		p.Inventory = append(p.Inventory, "crowbar")
	})
	f.c.ChangeLocation("ABANDONED_HOSPITAL")
	f.c.UpdateGovernmentAwareness(55)
	f.c.UpdateNPCRelationship("guard", 0.5)
	f.c.EncounterKiller("HUNTING_PLAYER")
	f.c.AddPlayTime(2*time.Hour + 10*time.Minute)
	require.NoError(t, f.c.Save(ctx, 1))
	want := f.c.Snapshot()

	f.c.UpdatePlayer(func(p *state.Player) { p.CorruptionLevel = 90 })
	f.c.ChangeLocation("SUBWAY_STATION_A")
	f.c.UpdateGovernmentAwareness(-55)

	require.True(t, f.c.Load(ctx, 1))
	got := f.c.Snapshot()
	assert.Equal(t, want.Player, got.Player)
	assert.Equal(t, want.Stats, got.Stats)
	assert.Equal(t, 55, got.GovernmentAwareness)
	assert.Equal(t, 2, got.WantedLevel)
	assert.Equal(t, 1, got.KillerEncounters)
	assert.Equal(t, want.VisitedLocations, got.VisitedLocations)
	assert.Equal(t, want.NPCRelationships, got.NPCRelationships)
	assert.Equal(t, state.PhaseMainGame, got.Phase)
	assert.Equal(t, 1, got.Playthrough)

	require.Len(t, f.named(event.GameSaved), 1)
	assert.Equal(t, event.GameSavedPayload{Slot: 1}, f.named(event.GameSaved)[0].Payload)
	assert.Equal(t, event.GameLoadedPayload{Slot: 1}, f.named(event.GameLoaded)[0].Payload)

	info, ok := f.c.SaveInfo(ctx, 1)
	require.True(t, ok)
	assert.True(t, info.Timestamp.Equal(time.Unix(1000, 0)))
	info.Timestamp = time.Time{}
	assert.Equal(t, state.SaveInfo{
		Slot:            1,
		Playthrough:     1,
		PlayerAlignment: "HERO",
		TimePlayed:      "2h",
		Location:        "ABANDONED_HOSPITAL",
		CorruptionLevel: 35,
	}, info)
}

func TestLoad_EmptySlotLeavesState(t *testing.T) {
	f := newFixture(t)
	f.c.UpdateGovernmentAwareness(40)
	before := f.c.Snapshot()

	assert.False(t, f.c.Load(context.Background(), 2))
	assert.Equal(t, before, f.c.Snapshot())
	assert.Empty(t, f.named(event.GameLoaded))
	assert.Equal(t, 1, f.logs.FilterMessage("load failed").Len())
}

func TestLoad_TamperedSaveRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.c.StartGame("", "Alex"))
	require.NoError(t, f.c.Save(ctx, 0))

	raw, err := f.store.Get(ctx, 0)
	require.NoError(t, err)
	tampered := bytes.Replace(raw, []byte(`"name":"Alex"`), []byte(`"name":"Eve!"`), 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, f.store.Put(ctx, 0, tampered))

	f.c.UpdatePlayer(func(p *state.Player) { p.Name = "Changed" })
	assert.False(t, f.c.Load(ctx, 0))
	assert.Equal(t, "Changed", f.c.Player().Name)
	_, ok := f.c.SaveInfo(ctx, 0)
	assert.False(t, ok)

	_, err = state.Decode(tampered)
	assert.ErrorIs(t, err, state.ErrCorruptSave)
	_, err = state.Decode([]byte("not json"))
	assert.ErrorIs(t, err, state.ErrCorruptSave)
}

func TestSave_InvalidSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, slot := range []int{-1, state.SlotCount} {
		assert.ErrorIs(t, f.c.Save(ctx, slot), state.ErrInvalidSlot)
		assert.False(t, f.c.Load(ctx, slot))
		assert.ErrorIs(t, f.c.DeleteSave(ctx, slot), state.ErrInvalidSlot)
		_, ok := f.c.SaveInfo(ctx, slot)
		assert.False(t, ok)
	}
	assert.Empty(t, f.named(event.GameSaved))
}

func TestDeleteSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.c.Save(ctx, 2))
	_, ok := f.c.SaveInfo(ctx, 2)
	require.True(t, ok)
	require.NoError(t, f.c.DeleteSave(ctx, 2))
	_, ok = f.c.SaveInfo(ctx, 2)
	assert.False(t, ok)
}

func TestResetGame(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.c.StartGame(state.DifficultyNightmare, "Alex"))
	f.c.UpdateGovernmentAwareness(95)
	f.c.ChangeLocation("ABANDONED_HOSPITAL")
	f.c.EncounterKiller("HUNTING_PLAYER")
	f.c.UpdateNPCRelationship("guard", 1)
	f.bus.Publish(event.PlayerDeadPayload{})
	f.c.TriggerEnding("DEATH")

	f.c.ResetGame()
	s := f.c.Snapshot()
	assert.Equal(t, 2, s.Playthrough)
	assert.Equal(t, state.PhaseMenu, s.Phase)
	assert.Equal(t, state.DefaultPlayer(), s.Player)
	assert.Equal(t, event.Stats{}, s.Stats)
	assert.Zero(t, s.GovernmentAwareness)
	assert.Zero(t, s.WantedLevel)
	assert.False(t, s.MilitaryInvolved)
	assert.Zero(t, s.KillerEncounters)
	assert.Empty(t, s.VisitedLocations)
	assert.Empty(t, s.EndingType)
	assert.Equal(t, 1.0, s.NPCRelationships["guard"])

	resets := f.named(event.GameReset)
	require.Len(t, resets, 1)
	assert.Equal(t, event.GameResetPayload{Playthrough: 2}, resets[0].Payload)
}
