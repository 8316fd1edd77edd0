package engine

import (
	"strings"
	"sync"
)

// ChannelCount is the number of MIDI channel buses every physical
// input port is fanned out into, per the MIDI spec itself.
const ChannelCount = 16

// PhysicalOutPort is the narrow interface the engine depends on for
// sending a message out a real MIDI output. Everything about opening
// hardware, driver selection, and wire encoding lives behind this
// boundary (see internal/rtmidi); the engine never imports a MIDI
// driver package directly.
type PhysicalOutPort interface {
	Send(m Message) error
	Close() error
}

// PhysicalInPort is the narrow interface the engine depends on for
// receiving messages from a real MIDI input. SetCallback replaces any
// previously registered callback; it is called once, at port-registry
// build time, never while ticking.
type PhysicalInPort interface {
	SetCallback(cb func(Message))
	Close() error
}

// PortOpener resolves a configured logical port name prefix to
// physical input/output handles. Both, either, or neither may exist
// for a given prefix — a missing physical port is not an error.
type PortOpener interface {
	OpenInput(prefix string) (PhysicalInPort, bool)
	OpenOutput(prefix string) (PhysicalOutPort, bool)
}

// InChannel is one of an InPort's 16 per-channel message sources.
// Incoming channel-voice messages are fanned out here in the order
// observers were registered.
type InChannel struct {
	MessageSource
}

// OutChannel binds a logical output port name and a fixed channel
// index to a Dispatcher. Any message it receives is rewritten to
// carry that channel and handed to the dispatcher's queue.
type OutChannel struct {
	PortName   string
	ChannelIdx uint8
	dispatcher *Dispatcher
}

func (o *OutChannel) ReceiveMessage(m Message) {
	o.dispatcher.Enqueue(o.PortName, m.WithChannel(o.ChannelIdx))
}

// InPort owns a physical input and the 16 channel buses messages from
// it are fanned out into.
type InPort struct {
	Name     string
	physical PhysicalInPort
	Channels [ChannelCount]*InChannel
}

func newInPort(name string, physical PhysicalInPort) *InPort {
	p := &InPort{Name: name, physical: physical}
	for i := range p.Channels {
		p.Channels[i] = &InChannel{}
	}
	physical.SetCallback(p.onPhysicalMessage)
	return p
}

// onPhysicalMessage is the callback installed on the physical port.
// Only channel-voice messages (NoteOn/NoteOff in this engine's
// vocabulary) carry a channel and are routed; everything else is
// dropped silently.
func (p *InPort) onPhysicalMessage(m Message) {
	switch m.Kind {
	case NoteOn, NoteOff:
		p.Channels[m.Channel].SendMessage(m)
	default:
	}
}

// OutPort owns a physical output. OutChannels referencing it are
// created on demand by the registry; the port itself holds no
// per-channel state (all channel handling happens once in
// OutChannel.ReceiveMessage).
type OutPort struct {
	Name     string
	Physical PhysicalOutPort
}

// PortRegistry resolves case-insensitive logical port names to the
// InPort/OutPort opened for them. A configured port whose physical
// counterpart could not be opened is recorded as absent; later lookups
// for it return ok=false without panicking.
type PortRegistry struct {
	mu      sync.RWMutex
	inPorts map[string]*InPort
	outPorts map[string]*OutPort
	absentIn  map[string]bool
	absentOut map[string]bool
}

// BuildPortRegistry opens, for every configured port, an input and
// output whose physical name starts with the configured prefix.
// Missing physical ports are recorded, not fatal.
func BuildPortRegistry(ports []PortConfig, opener PortOpener, warn func(format string, args ...any)) *PortRegistry {
	reg := &PortRegistry{
		inPorts:   make(map[string]*InPort),
		outPorts:  make(map[string]*OutPort),
		absentIn:  make(map[string]bool),
		absentOut: make(map[string]bool),
	}

	for _, p := range ports {
		name := strings.ToLower(p.Name)

		if in, ok := opener.OpenInput(p.PortName); ok {
			reg.inPorts[name] = newInPort(name, in)
		} else {
			reg.absentIn[name] = true
			warn("input port %q (prefix %q) not found; connectors reading from it stay inactive", p.Name, p.PortName)
		}

		if out, ok := opener.OpenOutput(p.PortName); ok {
			reg.outPorts[name] = &OutPort{Name: name, Physical: out}
		} else {
			reg.absentOut[name] = true
			warn("output port %q (prefix %q) not found; routes to it stay inactive", p.Name, p.PortName)
		}
	}

	return reg
}

// GetInChannel returns the InChannel for (name, channel), or ok=false
// if the logical port name is unknown, its physical input is absent,
// or the channel index is out of [0,16).
func (r *PortRegistry) GetInChannel(name string, channel int) (*InChannel, bool) {
	if channel < 0 || channel >= ChannelCount {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.inPorts[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return in.Channels[channel], true
}

// GetOutChannel returns a fresh OutChannel bound to dispatcher, or
// ok=false if the logical port name is unknown, its physical output is
// absent, or the channel index is out of [0,16).
func (r *PortRegistry) GetOutChannel(name string, channel int, dispatcher *Dispatcher) (*OutChannel, bool) {
	if channel < 0 || channel >= ChannelCount {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.outPorts[strings.ToLower(name)]; !ok {
		return nil, false
	}
	return &OutChannel{PortName: strings.ToLower(name), ChannelIdx: uint8(channel), dispatcher: dispatcher}, true
}

// OutputFor returns the physical output bound to a logical name, used
// only by the Dispatcher to resolve a queued (portName, Message) pair.
func (r *PortRegistry) OutputFor(name string) (PhysicalOutPort, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out, ok := r.outPorts[name]
	if !ok {
		return nil, false
	}
	return out.Physical, true
}

// AbsentInputs returns the logical names whose configured input could
// not be opened.
func (r *PortRegistry) AbsentInputs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.absentIn))
	for name := range r.absentIn {
		out = append(out, name)
	}
	return out
}

// AbsentOutputs returns the logical names whose configured output
// could not be opened.
func (r *PortRegistry) AbsentOutputs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.absentOut))
	for name := range r.absentOut {
		out = append(out, name)
	}
	return out
}

// Close closes every physical port the registry opened.
func (r *PortRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.inPorts {
		_ = in.physical.Close()
	}
	for _, out := range r.outPorts {
		_ = out.Physical.Close()
	}
}
