package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutPort is a minimal PhysicalOutPort double, local to the engine
// tests since engine cannot import internal/rtmidi (rtmidi imports
// engine, not the other way around).
type fakeOutPort struct {
	mu       sync.Mutex
	sent     []Message
	failNext bool
}

func (p *fakeOutPort) Send(m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext {
		p.failNext = false
		return errors.New("fake send failure")
	}
	p.sent = append(p.sent, m)
	return nil
}

func (p *fakeOutPort) Close() error { return nil }

func (p *fakeOutPort) snapshot() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.sent))
	copy(out, p.sent)
	return out
}

func newTestRegistryWithOutput(name string, port PhysicalOutPort) *PortRegistry {
	reg := &PortRegistry{
		inPorts:   make(map[string]*InPort),
		outPorts:  map[string]*OutPort{name: {Name: name, Physical: port}},
		absentIn:  make(map[string]bool),
		absentOut: make(map[string]bool),
	}
	return reg
}

func Test_Dispatcher_DeliversEnqueuedMessages(t *testing.T) {
	out := &fakeOutPort{}
	reg := newTestRegistryWithOutput("synth", out)
	d := NewDispatcher(reg, nil)

	go d.Run()
	defer d.Stop()

	d.Enqueue("synth", NoteOnMessage(60, 100))
	require.Eventually(t, func() bool { return len(out.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, NoteOn, out.snapshot()[0].Kind)
}

func Test_Dispatcher_UnknownPortIsDroppedSilently(t *testing.T) {
	out := &fakeOutPort{}
	reg := newTestRegistryWithOutput("synth", out)
	d := NewDispatcher(reg, nil)

	go d.Run()
	defer d.Stop()

	d.Enqueue("nonexistent", NoteOnMessage(60, 100))
	d.Enqueue("synth", NoteOnMessage(61, 100))
	require.Eventually(t, func() bool { return len(out.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint8(61), out.snapshot()[0].Note)
}

func Test_Dispatcher_SendFailureKeepsRunning(t *testing.T) {
	out := &fakeOutPort{failNext: true}
	reg := newTestRegistryWithOutput("synth", out)

	var mu sync.Mutex
	var errs []error
	d := NewDispatcher(reg, func(portName string, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	go d.Run()
	defer d.Stop()

	d.Enqueue("synth", NoteOnMessage(60, 100)) // fails
	d.Enqueue("synth", NoteOnMessage(61, 100)) // succeeds

	require.Eventually(t, func() bool { return len(out.snapshot()) == 1 }, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
}

func Test_Dispatcher_EnqueueOverflowPanics(t *testing.T) {
	out := &fakeOutPort{}
	reg := newTestRegistryWithOutput("synth", out)
	d := NewDispatcher(reg, nil)
	// Deliberately never start Run, so the queue fills and overflows.

	assert.Panics(t, func() {
		for i := 0; i < queueCapacity+1; i++ {
			d.Enqueue("synth", NoteOnMessage(60, 100))
		}
	})
}
