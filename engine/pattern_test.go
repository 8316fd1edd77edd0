package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func intPtr(v int) *int { return &v }

func Test_Timing_GetBeat(t *testing.T) {
	timing := Timing{Denominator: 4} // quarter notes: 24 ticks/beat

	beat, ok := timing.GetBeat(0)
	require.True(t, ok)
	assert.Equal(t, int64(0), beat)

	beat, ok = timing.GetBeat(24)
	require.True(t, ok)
	assert.Equal(t, int64(1), beat)

	_, ok = timing.GetBeat(10)
	assert.False(t, ok)
}

func Test_Timing_GetNextTickForLength(t *testing.T) {
	timing := Timing{Denominator: 4}
	assert.Equal(t, uint64(24), timing.GetNextTickForLength(0, 1))
	assert.Equal(t, uint64(48), timing.GetNextTickForLength(24, 1))
	assert.Equal(t, uint64(48), timing.GetNextTickForLength(0, 2))
}

func Test_SymbolMapper_ApplyDefaults_FillsMissingFieldsOnly(t *testing.T) {
	parent := NewSymbolMapper([]SymbolMapping{
		{Symbol: "x", Note: intPtr(36), Velocity: intPtr(100)},
		{Symbol: "o", Note: intPtr(38), Velocity: intPtr(90)},
	}, nil, nil)

	local := NewSymbolMapper([]SymbolMapping{
		{Symbol: "x", Velocity: intPtr(120)}, // overrides velocity, inherits note
	}, nil, nil)

	merged := local.ApplyDefaults(parent)

	require.Contains(t, merged.Map, "x")
	assert.Equal(t, 36, *merged.Map["x"].Note)
	assert.Equal(t, 120, *merged.Map["x"].Velocity)

	require.Contains(t, merged.Map, "o")
	assert.Equal(t, 38, *merged.Map["o"].Note)
	assert.Equal(t, 90, *merged.Map["o"].Velocity)
}

func Test_SymbolMapper_ApplyDefaults_Idempotent(t *testing.T) {
	parent := NewSymbolMapper([]SymbolMapping{
		{Symbol: "x", Note: intPtr(36), Velocity: intPtr(100)},
	}, nil, nil)
	local := NewSymbolMapper([]SymbolMapping{
		{Symbol: "x"},
		{Symbol: "y"},
	}, intPtr(40), intPtr(80))

	once := local.ApplyDefaults(parent)
	twice := once.ApplyDefaults(parent)

	assert.Equal(t, once.Map, twice.Map)
}

func Test_SymbolMapper_ApplyDefaults_Idempotent_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		symbolGen := rapid.SampledFrom([]string{"x", "o", ".", "r", "z"})

		buildEntries := func(label string) []SymbolMapping {
			n := rapid.IntRange(0, 4).Draw(rt, label+"_n")
			entries := make([]SymbolMapping, 0, n)
			for i := 0; i < n; i++ {
				sym := symbolGen.Draw(rt, label+"_sym")
				var note, vel *int
				if rapid.Bool().Draw(rt, label+"_hasnote") {
					note = intPtr(rapid.IntRange(0, 127).Draw(rt, label+"_note"))
				}
				if rapid.Bool().Draw(rt, label+"_hasvel") {
					vel = intPtr(rapid.IntRange(0, 127).Draw(rt, label+"_vel"))
				}
				entries = append(entries, SymbolMapping{Symbol: sym, Note: note, Velocity: vel})
			}
			return entries
		}

		parent := NewSymbolMapper(buildEntries("parent"), nil, nil)
		local := NewSymbolMapper(buildEntries("local"), nil, nil)

		once := local.ApplyDefaults(parent)
		twice := once.ApplyDefaults(parent)

		if len(once.Map) != len(twice.Map) {
			rt.Fatalf("map size changed across a second ApplyDefaults: %d vs %d", len(once.Map), len(twice.Map))
		}
		for sym, m1 := range once.Map {
			m2, ok := twice.Map[sym]
			if !ok {
				rt.Fatalf("symbol %q dropped on second ApplyDefaults", sym)
			}
			if (m1.Note == nil) != (m2.Note == nil) || (m1.Note != nil && *m1.Note != *m2.Note) {
				rt.Fatalf("note changed for symbol %q across idempotent ApplyDefaults", sym)
			}
			if (m1.Velocity == nil) != (m2.Velocity == nil) || (m1.Velocity != nil && *m1.Velocity != *m2.Velocity) {
				rt.Fatalf("velocity changed for symbol %q across idempotent ApplyDefaults", sym)
			}
		}
	})
}

func Test_SymbolPattern_GetNotes_RestSymbolProducesNothing(t *testing.T) {
	mapper := NewSymbolMapper([]SymbolMapping{
		{Symbol: "x", Note: intPtr(36), Velocity: intPtr(100)},
		{Symbol: ".", Note: intPtr(36), Velocity: intPtr(0)},
	}, nil, nil)
	pattern := NewSymbolPattern(TokenizePattern("x . x ."), mapper, Timing{Denominator: 4}, nil)

	// 1 bar = 96 ticks at denominator 4 -> 4 steps of 24 ticks each.
	var onTicks []uint64
	for tick := uint64(0); tick < 96; tick++ {
		for _, n := range pattern.GetNotes(tick) {
			onTicks = append(onTicks, tick)
			assert.Equal(t, uint8(36), n.Note)
		}
	}
	assert.Equal(t, []uint64{0, 48}, onTicks)
}

func Test_SymbolPattern_GetNotes_UnknownSymbolLogsAndSkips(t *testing.T) {
	mapper := NewSymbolMapper([]SymbolMapping{{Symbol: "x", Note: intPtr(36), Velocity: intPtr(100)}}, nil, nil)
	var logged string
	pattern := NewSymbolPattern(TokenizePattern("x z"), mapper, Timing{Denominator: 4}, func(symbol string) {
		logged = symbol
	})

	notes := pattern.GetNotes(24) // step 1 -> "z", unknown
	assert.Empty(t, notes)
	assert.Equal(t, "z", logged)
}

func Test_Tokenize_WhitespaceSeparated(t *testing.T) {
	assert.Equal(t, []string{"x", "x", "x", "x"}, TokenizePattern("x x x x"))
	// A single run without whitespace is one token, not four steps.
	assert.Equal(t, []string{"x.x."}, TokenizePattern("x.x."))
}
