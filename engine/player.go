package engine

import "container/heap"

// pendingOff is one scheduled note-off, ordered by TickOff with
// insertion order (seq) as a FIFO tie-break.
type pendingOff struct {
	note     uint8
	velocity uint8
	tickOff  uint64
	seq      uint64
}

// offHeap is a min-heap over pendingOff ordered by (tickOff, seq): due
// tick first, ties broken FIFO by insertion order.
type offHeap []pendingOff

func (h offHeap) Len() int { return len(h) }
func (h offHeap) Less(i, j int) bool {
	if h[i].tickOff != h[j].tickOff {
		return h[i].tickOff < h[j].tickOff
	}
	return h[i].seq < h[j].seq
}
func (h offHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *offHeap) Push(x any)        { *h = append(*h, x.(pendingOff)) }
func (h *offHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PatternPlayer is the clock watcher that turns one SymbolPattern's
// steps into note-on/note-off messages. It owns a tick-ordered pending
// note-off set that Tick, Restart and Stop all mutate without locking;
// Tick runs on the clock goroutine, Restart and Stop on whichever
// goroutine calls Clock.Commence or Clock.Cease.
type PatternPlayer struct {
	MessageSource

	pattern *SymbolPattern
	pending offHeap
	nextSeq uint64
}

// NewPatternPlayer builds a player for pattern. Register its sole
// observer (the instrument's OutChannel) with RegisterObserver before
// attaching it to a Clock.
func NewPatternPlayer(pattern *SymbolPattern) *PatternPlayer {
	return &PatternPlayer{pattern: pattern}
}

// Tick pops every due note-off and emits it, then asks the pattern for
// this tick's notes and emits their note-ons, scheduling a matching
// note-off. All note-offs for a tick are emitted before any note-on,
// so a same-note retrigger never silences the new note.
func (p *PatternPlayer) Tick(tick uint64) {
	for len(p.pending) > 0 && p.pending[0].tickOff <= tick {
		off := heap.Pop(&p.pending).(pendingOff)
		p.SendMessage(NoteOffMessage(off.note, off.velocity))
	}

	for _, n := range p.pattern.GetNotes(tick) {
		p.SendMessage(NoteOnMessage(n.Note, n.Velocity))
		heap.Push(&p.pending, pendingOff{note: n.Note, velocity: n.Velocity, tickOff: n.TickOff, seq: p.nextSeq})
		p.nextSeq++
	}
}

// Restart clears the pending-offs set, discarding any note-offs that
// had been scheduled under the previous run.
func (p *PatternPlayer) Restart() {
	p.pending = nil
	p.nextSeq = 0
}

// Start is a no-op; a player has nothing to do until ticks arrive.
func (p *PatternPlayer) Start() {}

// Stop flushes a note-off for every still-pending note so external
// gear is never left with a stuck note after the clock stops.
func (p *PatternPlayer) Stop() {
	for len(p.pending) > 0 {
		off := heap.Pop(&p.pending).(pendingOff)
		p.SendMessage(NoteOffMessage(off.note, off.velocity))
	}
}
