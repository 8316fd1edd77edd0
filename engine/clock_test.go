package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recordingWatcher struct {
	mu      sync.Mutex
	ticks   []uint64
	started int
	stopped int
	restart int
}

func (w *recordingWatcher) Tick(tick uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ticks = append(w.ticks, tick)
}
func (w *recordingWatcher) Start()   { w.mu.Lock(); w.started++; w.mu.Unlock() }
func (w *recordingWatcher) Stop()    { w.mu.Lock(); w.stopped++; w.mu.Unlock() }
func (w *recordingWatcher) Restart() { w.mu.Lock(); w.restart++; w.mu.Unlock() }

func (w *recordingWatcher) snapshot() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]uint64, len(w.ticks))
	copy(out, w.ticks)
	return out
}

func Test_Clock_IdleClockEmitsNothing(t *testing.T) {
	// bpm=120, no watchers, start/wait/stop.
	c := NewClock(120, nil)
	go c.Run()
	defer c.Shutdown()

	c.Commence()
	time.Sleep(20 * time.Millisecond)
	c.Cease()

	require.Equal(t, uint64(0), c.CurrentTick())
	require.False(t, c.Running())
}

func Test_Clock_DeliversStrictlyIncreasingTicks(t *testing.T) {
	c := NewClock(600, nil) // fast tempo so the test doesn't take long
	w := &recordingWatcher{}
	c.AttachWatcher(w)

	go c.Run()
	defer c.Shutdown()

	c.Commence()
	time.Sleep(50 * time.Millisecond)
	c.Cease()

	ticks := w.snapshot()
	require.NotEmpty(t, ticks)
	for i, v := range ticks {
		assert.Equal(t, uint64(i), v)
	}
	assert.Equal(t, 1, w.restart)
	assert.Equal(t, 1, w.started)
	assert.Equal(t, 1, w.stopped)
}

func Test_Clock_CommenceResetsTickToZero(t *testing.T) {
	c := NewClock(600, nil)
	w := &recordingWatcher{}
	c.AttachWatcher(w)

	go c.Run()
	defer c.Shutdown()

	c.Commence()
	time.Sleep(20 * time.Millisecond)
	c.Cease()
	require.Equal(t, uint64(0), c.CurrentTick())
	firstRun := len(w.snapshot())

	c.Commence()
	time.Sleep(20 * time.Millisecond)
	c.Cease()

	ticks := w.snapshot()
	require.True(t, len(ticks) > firstRun)
	assert.Equal(t, uint64(0), ticks[firstRun])
}

func Test_Clock_WatcherPanicIsIsolated(t *testing.T) {
	var panicked bool
	c := NewClock(2000, func(tick uint64, recovered any) { panicked = true })

	c.AttachWatcher(newTickOnlyWatcher(func(tick uint64) {
		if tick == 0 {
			panic("boom")
		}
	}))

	survivor := &recordingWatcher{}
	c.AttachWatcher(survivor)

	go c.Run()
	defer c.Shutdown()

	c.Commence()
	time.Sleep(20 * time.Millisecond)
	c.Cease()

	assert.True(t, panicked)
	assert.NotEmpty(t, survivor.snapshot())
}

// tickOnlyWatcher adapts a bare tick function into a ClockWatcher with
// no-op Start/Stop/Restart, for tests that only care about Tick.
type tickOnlyWatcher func(tick uint64)

func newTickOnlyWatcher(f func(tick uint64)) ClockWatcher {
	return tickOnlyWatcher(f)
}

func (f tickOnlyWatcher) Tick(tick uint64) { f(tick) }
func (f tickOnlyWatcher) Start()           {}
func (f tickOnlyWatcher) Stop()            {}
func (f tickOnlyWatcher) Restart()         {}

func Test_Clock_TickOrderIsMonotonic_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bpm := rapid.IntRange(300, 6000).Draw(rt, "bpm")
		runMillis := rapid.IntRange(5, 40).Draw(rt, "runMillis")

		c := NewClock(bpm, nil)
		w := &recordingWatcher{}
		c.AttachWatcher(w)

		go c.Run()
		c.Commence()
		time.Sleep(time.Duration(runMillis) * time.Millisecond)
		c.Cease()
		c.Shutdown()

		ticks := w.snapshot()
		for i, v := range ticks {
			if v != uint64(i) {
				rt.Fatalf("tick out of order at index %d: got %d", i, v)
			}
		}
	})
}
