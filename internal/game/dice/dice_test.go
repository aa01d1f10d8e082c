package dice_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/destiny/internal/game/dice"
)

func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
}

func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, "2d6+3 → [4 5] +3 = 12", r.String())
}

func TestRollResult_String_PanicsOnEmptyExpression(t *testing.T) {
	r := dice.RollResult{Dice: []int{4}}
	assert.Panics(t, func() { _ = r.String() })
}

func TestRollResult_Total_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ds := rapid.SliceOf(rapid.IntRange(1, 20)).Draw(rt, "dice")
		mod := rapid.IntRange(-100, 100).Draw(rt, "modifier")
		r := dice.RollResult{Expression: "Nd6+M", Dice: ds, Modifier: mod}
		want := mod
		for _, d := range ds {
			want += d
		}
		assert.Equal(rt, want, r.Total())
		assert.True(rt, strings.Contains(r.String(), fmt.Sprintf("= %d", want)))
	})
}

func TestParse_Forms(t *testing.T) {
	cases := []struct {
		in    string
		count int
		sides int
		mod   int
	}{
		{"d20", 1, 20, 0},
		{"2d6", 2, 6, 0},
		{"1d50+24", 1, 50, 24},
		{"4d8-2", 4, 8, -2},
		{"100", 0, 0, 100},
	}
	for _, tc := range cases {
		e, err := dice.Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.count, e.Count, tc.in)
		assert.Equal(t, tc.sides, e.Sides, tc.in)
		assert.Equal(t, tc.mod, e.Modifier, tc.in)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "d", "0d6", "2d1", "abc", "2d6+", "-5"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, "expected %q to be rejected", in)
	}
}

func TestMustParse_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { dice.MustParse("nope") })
}

func TestRoll_FlatExpressionIgnoresSource(t *testing.T) {
	seq := dice.NewSequence(0.5)
	r := dice.Roll(dice.MustParse("100"), seq)
	assert.Equal(t, 100, r.Total())
	assert.Equal(t, 0, seq.Drawn())
}

func TestProperty_Roll_WithinBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 6).Draw(rt, "count")
		sides := rapid.IntRange(2, 20).Draw(rt, "sides")
		mod := rapid.IntRange(-10, 10).Draw(rt, "mod")
		seed := rapid.Uint64().Draw(rt, "seed")
		expr := dice.MustParse(fmt.Sprintf("%dd%d%+d", count, sides, mod))
		r := dice.Roll(expr, dice.NewSeededSource(seed))
		assert.Len(rt, r.Dice, count)
		assert.GreaterOrEqual(rt, r.Total(), count+mod)
		assert.LessOrEqual(rt, r.Total(), count*sides+mod)
	})
}

func TestCryptoSource_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
		f := src.Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
}

func TestSeededSource_Deterministic(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 50; i++ {
		require.Equal(t, a.Float64(), b.Float64(), "draw %d", i)
		require.Equal(t, a.Intn(181), b.Intn(181), "draw %d", i)
	}
}

func TestSequence_ReplaysThenRepeatsLast(t *testing.T) {
	seq := dice.NewSequence(0.1, 0.75)
	assert.Equal(t, 0.1, seq.Float64())
	assert.Equal(t, 0.75, seq.Float64())
	assert.Equal(t, 0.75, seq.Float64())
	assert.Equal(t, 3, seq.Drawn())
}

func TestSequence_IntnMapsOntoRange(t *testing.T) {
	seq := dice.NewSequence(0.0, 0.5, 0.999)
	assert.Equal(t, 0, seq.Intn(10))
	assert.Equal(t, 5, seq.Intn(10))
	assert.Equal(t, 9, seq.Intn(10))
}

func TestRoller_ChanceLogsDraw(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := dice.NewRoller(dice.NewSequence(0.3), zap.New(core))
	ok, draw := r.Chance("hit", 0.8)
	assert.True(t, ok)
	assert.Equal(t, 0.3, draw)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "chance", logs.All()[0].Message)
}

func TestProperty_Roller_ChanceMatchesThreshold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.Float64Range(0, 0.999).Draw(rt, "draw")
		p := rapid.Float64Range(0, 1).Draw(rt, "p")
		r := dice.NewRoller(dice.NewSequence(v), zap.NewNop())
		ok, draw := r.Chance("x", p)
		assert.Equal(rt, v < p, ok)
		assert.Equal(rt, v, draw)
	})
}
