package engine

import (
	"fmt"
	"sort"
)

// ErrOutOfRange is returned by Scale.QuantizeNote when no note in the
// scale is >= the requested note.
type ErrOutOfRange struct {
	Note int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("midirouter: no scale note >= %d", e.Note)
}

// noteNames is the chromatic scale in ascending order from C.
var noteNames = []string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

// modeIntervals is the whole/half-step interval pattern for each
// supported mode, walked cyclically from the key's root.
var modeIntervals = map[string][]int{
	"major":      {2, 2, 1, 2, 2, 2, 1},
	"ionian":     {2, 2, 1, 2, 2, 2, 1},
	"minor":      {2, 1, 2, 2, 1, 2, 2},
	"aolian":     {2, 1, 2, 2, 1, 2, 2},
	"aeolian":    {2, 1, 2, 2, 1, 2, 2},
	"dorian":     {2, 1, 2, 2, 2, 1, 2},
	"phrygian":   {1, 2, 2, 2, 1, 2, 2},
	"lydian":     {2, 2, 2, 1, 2, 2, 1},
	"mixolydian": {2, 2, 1, 2, 2, 1, 2},
	"locrian":    {1, 2, 2, 1, 2, 2, 2},
}

// Scale is a sorted ascending set of MIDI note numbers for a key/mode
// across a note range, clipped to [0,127].
type Scale struct {
	notes []int
}

// NewScale builds the note set for key (one of noteNames, case
// sensitive lowercase) and mode, walking mode's interval pattern from
// key's root and cycling octaves until highestNote is exceeded,
// dropping anything below lowestNote. Both bounds are clamped to
// [0,127] before walking.
func NewScale(key, mode string, lowestNote, highestNote int) (*Scale, error) {
	keyBase := -1
	for i, n := range noteNames {
		if n == key {
			keyBase = i
			break
		}
	}
	if keyBase == -1 {
		return nil, fmt.Errorf("midirouter: unknown key %q", key)
	}

	intervals, ok := modeIntervals[mode]
	if !ok {
		return nil, fmt.Errorf("midirouter: unknown mode %q", mode)
	}

	if lowestNote < 0 {
		lowestNote = 0
	}
	if highestNote > 127 {
		highestNote = 127
	}

	var notes []int
	current := keyBase
	i := 0
	for current <= highestNote {
		if current >= lowestNote {
			notes = append(notes, current)
		}
		current += intervals[i%len(intervals)]
		i++
	}

	return &Scale{notes: notes}, nil
}

// GetNotes returns the scale's notes, strictly ascending.
func (s *Scale) GetNotes() []int {
	return s.notes
}

// QuantizeNote returns the least scale note >= note, or
// ErrOutOfRange if none exists.
func (s *Scale) QuantizeNote(note int) (int, error) {
	i := sort.SearchInts(s.notes, note)
	if i == len(s.notes) {
		return 0, &ErrOutOfRange{Note: note}
	}
	return s.notes[i], nil
}
