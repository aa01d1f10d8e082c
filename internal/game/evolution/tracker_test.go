package evolution_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/destiny/internal/game/dice"
	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/game/evolution"
	"github.com/cory-johannsen/destiny/internal/game/tactic"
)

var fixedNow = time.Date(2025, 10, 31, 23, 0, 0, 0, time.UTC)

func newTracker(logger *zap.Logger, src dice.Source, bus event.Publisher) *evolution.Tracker {
	return evolution.NewTracker(
		tactic.MustLoadDefault(),
		dice.NewRoller(src, logger),
		bus,
		logger,
		evolution.WithClock(func() time.Time { return fixedNow }),
	)
}

func TestDefaultProfile(t *testing.T) {
	p := evolution.DefaultProfile()
	assert.Equal(t, "K'Thaal", p.Name)
	assert.Equal(t, 92, p.Intelligence)
	assert.Equal(t, 1, p.EvolutionLevel)
	assert.Equal(t, 0.75, p.LearningRate)
	assert.Equal(t, evolution.BehaviorHunting, p.CurrentBehavior)
}

func TestRecordPlayerTactic_SuccessLearnsAndCounters(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	ev := tr.RecordPlayerTactic(tactic.HidingInCrowds, true, map[string]string{"location": "DOWNTOWN_NIGHTCLUB"})
	assert.True(t, strings.HasPrefix(ev.ID, "LEARN-"))
	assert.Equal(t, fixedNow, ev.Timestamp)

	p := tr.Profile()
	require.Len(t, p.LearningEvents, 1)
	assert.Equal(t, []tactic.ID{tactic.HidingInCrowds}, p.KnownPlayerTricks)
	require.Len(t, p.AdaptedBehaviors, 1)
	assert.Equal(t, "Thermal Imaging", p.AdaptedBehaviors[0].SelectedCounter.Name)
	assert.Equal(t, 1, p.AdaptedBehaviors[0].EvolutionLevel)
}

func TestRecordPlayerTactic_FailureOnlyLogs(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	tr.RecordPlayerTactic(tactic.DirectCombat, false, nil)
	p := tr.Profile()
	assert.Len(t, p.LearningEvents, 1)
	assert.Empty(t, p.KnownPlayerTricks)
	assert.Empty(t, p.AdaptedBehaviors)
}

func TestRecordPlayerTactic_DeduplicatesTricks(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	tr.RecordPlayerTactic(tactic.TrapSetting, true, nil)
	tr.RecordPlayerTactic(tactic.TrapSetting, true, nil)
	p := tr.Profile()
	assert.Len(t, p.LearningEvents, 2)
	assert.Equal(t, []tactic.ID{tactic.TrapSetting}, p.KnownPlayerTricks)
	assert.Len(t, p.AdaptedBehaviors, 2)
}

func TestGenerateCounterTactic_UnknownIsNoop(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	_, ok := tr.GenerateCounterTactic("bribery")
	assert.False(t, ok)
	assert.Empty(t, tr.Profile().AdaptedBehaviors)
}

func TestGenerateCounterTactic_PicksHighest(t *testing.T) {
	want := map[tactic.ID]string{
		tactic.PsychologyManipulation: "Emotional Isolation",
		tactic.HidingInCrowds:         "Thermal Imaging",
		tactic.TrapSetting:            "Indirect Approach",
		tactic.DirectCombat:           "Strength Advantage",
		tactic.ExplorationAvoidance:   "Speed Hunting",
	}
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	for id, name := range want {
		ab, ok := tr.GenerateCounterTactic(id)
		require.True(t, ok)
		assert.Equal(t, name, ab.SelectedCounter.Name, string(id))
	}
}

func TestEvolveKiller_OnlyOnMultiplesOfThree(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var evolved []event.KillerEvolvedPayload
	bus.Subscribe(event.KillerEvolved, func(e event.Event) {
		evolved = append(evolved, e.Payload.(event.KillerEvolvedPayload))
	})
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), bus)

	assert.False(t, tr.EvolveKiller(), "no encounters yet")
	for i := 1; i <= 2; i++ {
		s := tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerKilled})
		assert.False(t, s.Evolved)
	}
	s := tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerKilled})
	assert.True(t, s.Evolved)
	assert.Equal(t, 2, s.EvolutionLevel)
	assert.False(t, tr.EvolveKiller(), "same encounter count must not evolve twice")

	p := tr.Profile()
	assert.Equal(t, 2, p.EvolutionLevel)
	assert.Equal(t, 94, p.Intelligence)
	assert.Equal(t, 90, p.Adaptability)
	assert.Equal(t, 76, p.Aggressiveness)
	assert.Equal(t, 67, p.PsychologyResistance)
	assert.InDelta(t, 0.80, p.LearningRate, 1e-9)

	require.Len(t, evolved, 1)
	assert.Equal(t, 2, evolved[0].Level)
}

func TestEvolveKiller_ClampsStatsAndLearningRate(t *testing.T) {
	start := evolution.DefaultProfile()
	start.Intelligence = 99
	start.LearningRate = 0.93
	start.EncountersThisSession = 2
	tr := evolution.NewTracker(tactic.MustLoadDefault(), dice.NewRoller(dice.NewSeededSource(1), zap.NewNop()),
		event.Discard, zap.NewNop(), evolution.WithProfile(start))

	tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerJoined})
	p := tr.Profile()
	assert.Equal(t, 100, p.Intelligence)
	assert.Equal(t, 0.95, p.LearningRate)
	assert.Equal(t, 1, p.PlayersJoined)
}

func TestEvolveKiller_UnlocksAbilitiesAtExactLevel(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	var unlocked []string
	bus.Subscribe(event.AbilityUnlocked, func(e event.Event) {
		unlocked = append(unlocked, e.Payload.(event.AbilityUnlockedPayload).Ability)
	})
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), bus)
	levels := map[int][]string{}
	for i := 0; i < 24; i++ {
		s := tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerDefeated})
		if s.Evolved {
			levels[s.EvolutionLevel] = append([]string(nil), unlocked...)
		}
	}
	assert.Equal(t, 9, tr.Profile().EvolutionLevel)
	assert.Empty(t, levels[2])
	assert.Equal(t, []string{"Thermal Vision"}, levels[3])
	assert.Equal(t, []string{"Thermal Vision", "Phase Shift"}, levels[5])
	assert.Equal(t, []string{"Thermal Vision", "Phase Shift", "Psychic Scream", "Regeneration"}, levels[8])
	assert.Len(t, tr.Profile().UnlockedAbilities, 4)
}

func TestProcessEncounterResult_EscapeRecordsTactic(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	s := tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerEscaped, EscapeTactic: tactic.TrapSetting})
	assert.Equal(t, 1, s.PlayersEscaped)
	assert.Equal(t, 1, s.KnownTactics)

	s = tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerEscaped})
	assert.Equal(t, 2, s.KnownTactics)
	p := tr.Profile()
	assert.Equal(t, []tactic.ID{tactic.TrapSetting, tactic.UnknownEscape}, p.KnownPlayerTricks)
	assert.Len(t, p.AdaptedBehaviors, 1, "unknown escapes have no counters")
}

func TestProcessEncounterResult_GradesEarlierCounters(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	tr.RecordPlayerTactic(tactic.HidingInCrowds, true, nil)
	tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerKilled})
	p := tr.Profile()
	require.Len(t, p.AdaptedBehaviors, 1)
	assert.Zero(t, p.AdaptedBehaviors[0].Trials, "adopted during the encounter it came from")

	tr.RecordPlayerTactic(tactic.HidingInCrowds, false, nil)
	tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerKilled})
	ab := tr.Profile().AdaptedBehaviors[0]
	assert.Equal(t, 1, ab.Trials)
	assert.InDelta(t, 1.0, ab.EffectivenessRealized, 1e-9)

	tr.RecordPlayerTactic(tactic.HidingInCrowds, false, nil)
	tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerEscaped, EscapeTactic: tactic.HidingInCrowds})
	ab = tr.Profile().AdaptedBehaviors[0]
	assert.Equal(t, 2, ab.Trials)
	assert.InDelta(t, 0.5, ab.EffectivenessRealized, 1e-9)

	tr.RecordPlayerTactic(tactic.DirectCombat, false, nil)
	tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerKilled})
	assert.Equal(t, 2, tr.Profile().AdaptedBehaviors[0].Trials, "countered tactic not tried")
}

func TestCalculateDifficulty(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	assert.InDelta(t, 1.15, tr.CalculateDifficulty(), 1e-9)
	tr.GenerateCounterTactic(tactic.DirectCombat)
	assert.InDelta(t, 1.20, tr.CalculateDifficulty(), 1e-9)
	assert.Equal(t, evolution.MaxDifficulty, evolution.Difficulty(50, 50))
}

func TestProperty_Difficulty_BoundedAndMonotone(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		level := rapid.IntRange(0, 40).Draw(rt, "level")
		adapted := rapid.IntRange(0, 100).Draw(rt, "adapted")
		d := evolution.Difficulty(level, adapted)
		assert.GreaterOrEqual(rt, d, 1.0)
		assert.LessOrEqual(rt, d, evolution.MaxDifficulty)
		assert.GreaterOrEqual(rt, evolution.Difficulty(level+1, adapted), d)
		assert.GreaterOrEqual(rt, evolution.Difficulty(level, adapted+1), d)
	})
}

func TestProperty_EncounterHistory_Invariants(t *testing.T) {
	outcomes := []evolution.Outcome{evolution.PlayerKilled, evolution.PlayerEscaped, evolution.PlayerJoined, evolution.PlayerDefeated}
	tactics := []tactic.ID{tactic.PsychologyManipulation, tactic.HidingInCrowds, tactic.TrapSetting, tactic.DirectCombat, tactic.ExplorationAvoidance, ""}
	rapid.Check(t, func(rt *rapid.T) {
		tr := newTracker(zap.NewNop(), dice.NewSeededSource(1), event.Discard)
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		prevLevel := 1
		for i := 0; i < n; i++ {
			tr.ProcessEncounterResult(evolution.Result{
				Outcome:      rapid.SampledFrom(outcomes).Draw(rt, "outcome"),
				EscapeTactic: rapid.SampledFrom(tactics).Draw(rt, "tactic"),
			})
			p := tr.Profile()
			assert.GreaterOrEqual(rt, p.EvolutionLevel, prevLevel)
			prevLevel = p.EvolutionLevel
			for _, s := range []int{p.Intelligence, p.Adaptability, p.Aggressiveness, p.PsychologyResistance} {
				assert.GreaterOrEqual(rt, s, evolution.MinStat)
				assert.LessOrEqual(rt, s, evolution.MaxStat)
			}
			seen := map[tactic.ID]bool{}
			for _, id := range p.KnownPlayerTricks {
				assert.False(rt, seen[id], "duplicate trick %s", id)
				seen[id] = true
			}
		}
		assert.Equal(rt, 1+n/evolution.EvolveEvery, tr.Profile().EvolutionLevel)
	})
}

func TestSelectPsychologicalTactic_Weighted(t *testing.T) {
	// Weights: 0.65, 0.55, 0.8, 0.7, 0.9 (total 3.6).
	cases := []struct {
		draw float64
		want string
	}{
		{0.0, "Gaslighting"},
		{0.2, "Trust Building"},
		{0.5, "Fear Escalation"},
		{0.7, "Temptation"},
		{0.99, "Isolation"},
	}
	for _, tc := range cases {
		tr := newTracker(zaptest.NewLogger(t), dice.NewSequence(tc.draw), event.Discard)
		p, ok := tr.SelectPsychologicalTactic()
		require.True(t, ok)
		assert.Equal(t, tc.want, p.Name, "draw %v", tc.draw)
	}
}

func TestBehaviorReport(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	tr.RecordPlayerTactic(tactic.DirectCombat, true, nil)
	tr.RecordPlayerTactic(tactic.TrapSetting, false, nil)
	r := tr.BehaviorReport()
	assert.Contains(t, r, "ALIEN KILLER BEHAVIOR ANALYSIS - K'THAAL")
	assert.Contains(t, r, "Difficulty Multiplier: 1.20x")
	assert.Contains(t, r, "• direct_combat\n")
	assert.Contains(t, r, "direct_combat (LEARNED)")
	assert.Contains(t, r, "trap_setting (FAILED)")
}

func TestGameProfile(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	tr.ProcessEncounterResult(evolution.Result{Outcome: evolution.PlayerEscaped, EscapeTactic: tactic.HidingInCrowds})
	gp := tr.GameProfile()
	assert.Equal(t, "K'Thaal", gp.Name)
	assert.Equal(t, 1, gp.HuntsThisSession)
	assert.Equal(t, 1, gp.KnownCounterTactics)
	assert.InDelta(t, 1.20, gp.DifficultyEstimate, 1e-9)
}

func TestProfile_ReturnsCopy(t *testing.T) {
	tr := newTracker(zaptest.NewLogger(t), dice.NewSeededSource(1), event.Discard)
	tr.RecordPlayerTactic(tactic.DirectCombat, true, nil)
	p := tr.Profile()
	p.KnownPlayerTricks[0] = "mutated"
	assert.Equal(t, tactic.DirectCombat, tr.Profile().KnownPlayerTricks[0])
}
