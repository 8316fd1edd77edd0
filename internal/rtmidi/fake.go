package rtmidi

import (
	"sync"

	"github.com/kgaudio/midirouter/engine"
)

// FakeOpener is an in-memory engine.PortOpener for tests and any CI
// run without real MIDI hardware attached. Inputs/outputs are keyed by
// the exact prefix a test registers them under; OpenInput/OpenOutput
// match only an exact registered name (real hardware prefix-matching
// is Opener's concern, not the fake's).
type FakeOpener struct {
	mu      sync.Mutex
	inputs  map[string]*FakeInPort
	outputs map[string]*FakeOutPort
}

func NewFakeOpener() *FakeOpener {
	return &FakeOpener{inputs: map[string]*FakeInPort{}, outputs: map[string]*FakeOutPort{}}
}

// AddInput registers a fake physical input available under name.
func (f *FakeOpener) AddInput(name string) *FakeInPort {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &FakeInPort{}
	f.inputs[name] = p
	return p
}

// AddOutput registers a fake physical output available under name.
func (f *FakeOpener) AddOutput(name string) *FakeOutPort {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &FakeOutPort{}
	f.outputs[name] = p
	return p
}

func (f *FakeOpener) OpenInput(prefix string) (engine.PhysicalInPort, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.inputs[prefix]
	return p, ok
}

func (f *FakeOpener) OpenOutput(prefix string) (engine.PhysicalOutPort, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.outputs[prefix]
	return p, ok
}

// FakeInPort is a physical input a test can push messages into.
type FakeInPort struct {
	mu     sync.Mutex
	cb     func(engine.Message)
	closed bool
}

func (p *FakeInPort) SetCallback(cb func(engine.Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

func (p *FakeInPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Inject simulates a message arriving on the physical wire.
func (p *FakeInPort) Inject(m engine.Message) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb != nil {
		cb(m)
	}
}

// FakeOutPort is a physical output a test can inspect messages sent to.
type FakeOutPort struct {
	mu       sync.Mutex
	Sent     []engine.Message
	closed   bool
	failNext bool
}

func (p *FakeOutPort) Send(m engine.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext {
		p.failNext = false
		return errSendFailed
	}
	p.Sent = append(p.Sent, m)
	return nil
}

func (p *FakeOutPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// FailNextSend makes the next Send call return an error, for
// exercising the dispatcher's "physical send failure: logged, keeps
// running" behavior.
func (p *FakeOutPort) FailNextSend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = true
}

// Messages returns a snapshot of everything sent so far.
func (p *FakeOutPort) Messages() []engine.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]engine.Message, len(p.Sent))
	copy(out, p.Sent)
	return out
}

type sendError string

func (e sendError) Error() string { return string(e) }

const errSendFailed sendError = "fake output: simulated send failure"
