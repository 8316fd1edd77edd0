package engine

import "strings"

// DefaultGateLength is the note-off distance, in beats, used when a
// SymbolMapping does not specify one.
const DefaultGateLength = 1

// SymbolMapping binds one pattern-string token to a note/velocity (or
// marks it a rest). Note and Velocity are pointers so "unset" can be
// told apart from "explicitly zero" during SymbolMapper.ApplyDefaults.
type SymbolMapping struct {
	Symbol   string
	Note     *int
	Velocity *int
	// Length is the gate length in beats; zero means unset, resolved
	// to DefaultGateLength when a Note is actually emitted.
	Length int
}

// IsRest reports whether this mapping denotes silence: no configured
// velocity, or a configured velocity of zero.
func (m SymbolMapping) IsRest() bool {
	return m.Velocity == nil || *m.Velocity == 0
}

func (m SymbolMapping) gateLength() int {
	if m.Length <= 0 {
		return DefaultGateLength
	}
	return m.Length
}

// clone deep-copies a mapping so merges never alias another mapper's
// pointers.
func (m SymbolMapping) clone() SymbolMapping {
	out := m
	if m.Note != nil {
		n := *m.Note
		out.Note = &n
	}
	if m.Velocity != nil {
		v := *m.Velocity
		out.Velocity = &v
	}
	return out
}

// SymbolMapper maps pattern-string symbols to SymbolMappings, with
// optional mapper-wide defaults used to backfill any mapping missing a
// Note or Velocity.
type SymbolMapper struct {
	DefaultNote     *int
	DefaultVelocity *int
	Map             map[string]SymbolMapping
}

// NewSymbolMapper builds a mapper from entries plus mapper-level
// defaults; entries missing a Note/Velocity are backfilled from
// defaultNote/defaultVelocity immediately. This covers a mapper's own
// symbols against its own defaults; ApplyDefaults handles merging
// against a parent mapper afterward.
func NewSymbolMapper(entries []SymbolMapping, defaultNote, defaultVelocity *int) *SymbolMapper {
	m := &SymbolMapper{
		DefaultNote:     defaultNote,
		DefaultVelocity: defaultVelocity,
		Map:             make(map[string]SymbolMapping, len(entries)),
	}
	for _, e := range entries {
		filled := e.clone()
		if filled.Note == nil {
			filled.Note = copyIntPtr(defaultNote)
		}
		if filled.Velocity == nil {
			filled.Velocity = copyIntPtr(defaultVelocity)
		}
		m.Map[e.Symbol] = filled
	}
	return m
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ApplyDefaults returns a new mapper: every symbol in parent not
// present locally is deep-copied in and has its unset Note/Velocity
// backfilled from the local defaults; every symbol present locally has
// its unset Note/Velocity backfilled from parent's entry for that
// symbol. The result never aliases m's or parent's maps, which is what
// makes the operation idempotent — calling it again on its own output
// with the same parent reproduces the same result.
func (m *SymbolMapper) ApplyDefaults(parent *SymbolMapper) *SymbolMapper {
	merged := &SymbolMapper{
		DefaultNote:     copyIntPtr(m.DefaultNote),
		DefaultVelocity: copyIntPtr(m.DefaultVelocity),
		Map:             make(map[string]SymbolMapping, len(m.Map)+len(parent.Map)),
	}

	for symbol, local := range m.Map {
		filled := local.clone()
		if parentEntry, ok := parent.Map[symbol]; ok {
			if filled.Note == nil {
				filled.Note = copyIntPtr(parentEntry.Note)
			}
			if filled.Velocity == nil {
				filled.Velocity = copyIntPtr(parentEntry.Velocity)
			}
			if filled.Length == 0 {
				filled.Length = parentEntry.Length
			}
		}
		merged.Map[symbol] = filled
	}

	for symbol, parentEntry := range parent.Map {
		if _, already := merged.Map[symbol]; already {
			continue
		}
		filled := parentEntry.clone()
		if filled.Note == nil {
			filled.Note = copyIntPtr(m.DefaultNote)
		}
		if filled.Velocity == nil {
			filled.Velocity = copyIntPtr(m.DefaultVelocity)
		}
		merged.Map[symbol] = filled
	}

	return merged
}

// Timbre is a named variant of an instrument with its own fully
// resolved symbol mapper (own symbols/defaults, then merged onto the
// instrument's default mapper).
type Timbre struct {
	Name   string
	Mapper *SymbolMapper
}

// Instrument groups a default output channel, a default symbol mapper,
// and its named Timbres.
type Instrument struct {
	Name          string
	PatternType   string
	DefaultOut    *OutChannel
	DefaultMapper *SymbolMapper
	Timbres       map[string]*Timbre
}

// Timing derives beat boundaries from a pattern's denominator at the
// engine's fixed PPQN.
type Timing struct {
	Denominator int
}

// GetBeat returns the beat index for tick and true iff tick lies
// exactly on a beat boundary for this Timing's denominator. Pulses per
// beat is PPQN*4/Denominator, which need not be an integer; the
// boundary test is therefore done with the cross-multiplied integer
// check tick*Denominator == beat*PPQN*4 rather than floating point.
func (t Timing) GetBeat(tick uint64) (beat int64, ok bool) {
	num := int64(tick) * int64(t.Denominator)
	den := int64(PPQN * 4)
	if num%den != 0 {
		return 0, false
	}
	return num / den, true
}

// GetNextTickForLength returns the tick, lengthBeats beats after tick,
// at which a note started at tick should be turned off. When
// PPQN*4/Denominator is fractional the result is floored to the
// nearest whole pulse, since ticks are always integers; this only
// matters for denominators finer than PPQN can represent exactly
// (e.g. 64th notes at PPQN=24).
func (t Timing) GetNextTickForLength(tick uint64, lengthBeats int) uint64 {
	offset := int64(lengthBeats) * int64(PPQN*4) / int64(t.Denominator)
	return tick + uint64(offset)
}

// Note is a single scheduled event: the note-on already emitted, and
// the tick at which its matching note-off is due.
type Note struct {
	Note     uint8
	Velocity uint8
	TickOff  uint64
}

// SymbolPattern is one timbre's pattern string, tokenized and paired
// with the Timing that locates its steps in tick-space.
type SymbolPattern struct {
	Symbols      []string
	SymbolMapper *SymbolMapper
	Timing       Timing

	onUnknownSymbol func(symbol string)
}

// TokenizePattern splits a pattern string on whitespace. A bare
// "x.x." string is therefore a single one-token pattern, not four
// steps.
func TokenizePattern(pattern string) []string {
	return strings.Fields(pattern)
}

// NewSymbolPattern builds a SymbolPattern. onUnknownSymbol, if non-nil,
// is called (instead of panicking) when GetNotes encounters a step
// symbol missing from mapper. Config assembly is expected to have
// already validated every symbol exists, so this path should only
// ever fire for a pattern built directly without that validation.
func NewSymbolPattern(symbols []string, mapper *SymbolMapper, timing Timing, onUnknownSymbol func(symbol string)) *SymbolPattern {
	if onUnknownSymbol == nil {
		onUnknownSymbol = func(string) {}
	}
	return &SymbolPattern{Symbols: symbols, SymbolMapper: mapper, Timing: timing, onUnknownSymbol: onUnknownSymbol}
}

// GetNotes returns the (zero or one) notes this pattern produces at
// tick: it checks the tick lands on a beat boundary, picks the step
// for that beat, resolves the step's symbol, and skips rests.
func (p *SymbolPattern) GetNotes(tick uint64) []Note {
	if len(p.Symbols) == 0 {
		return nil
	}

	beat, ok := p.Timing.GetBeat(tick)
	if !ok {
		return nil
	}

	step := int(beat) % len(p.Symbols)
	if step < 0 {
		step += len(p.Symbols)
	}
	symbol := p.Symbols[step]

	mapping, known := p.SymbolMapper.Map[symbol]
	if !known {
		p.onUnknownSymbol(symbol)
		return nil
	}
	if mapping.IsRest() {
		return nil
	}

	return []Note{{
		Note:     uint8(*mapping.Note),
		Velocity: uint8(*mapping.Velocity),
		TickOff:  p.Timing.GetNextTickForLength(tick, mapping.gateLength()),
	}}
}

// Part binds an instrument, its own denominator-derived Timing, a
// symbol mapper merged onto the instrument's default, and the
// SymbolPatterns built from its patterns[] entries.
type Part struct {
	Instrument   *Instrument
	Timing       Timing
	SymbolMapper *SymbolMapper
	Patterns     []*SymbolPattern
}
