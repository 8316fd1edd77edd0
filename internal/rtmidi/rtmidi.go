// Package rtmidi is the only package in this module that imports a
// physical MIDI driver. It satisfies engine.PhysicalInPort,
// engine.PhysicalOutPort and engine.PortOpener against
// gitlab.com/gomidi/midi/v2.
//
// engine never imports this package's dependencies directly;
// cmd/midirouter is the only place that wires the two together.
package rtmidi

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/kgaudio/midirouter/engine"
)

// Opener opens physical ports whose names start with a configured
// prefix, exactly as §4.1 describes. It implements engine.PortOpener.
type Opener struct{}

func NewOpener() *Opener { return &Opener{} }

func (Opener) OpenInput(prefix string) (engine.PhysicalInPort, bool) {
	for _, in := range midi.GetInPorts() {
		if strings.HasPrefix(in.String(), prefix) {
			return &inPort{port: in}, true
		}
	}
	return nil, false
}

func (Opener) OpenOutput(prefix string) (engine.PhysicalOutPort, bool) {
	for _, out := range midi.GetOutPorts() {
		if strings.HasPrefix(out.String(), prefix) {
			return &outPort{port: out}, true
		}
	}
	return nil, false
}

type inPort struct {
	port  drivers.In
	stopFn func()
}

func (p *inPort) SetCallback(cb func(engine.Message)) {
	stop, err := midi.ListenTo(p.port, func(msg midi.Message, _ int32) {
		if m, ok := decode(msg); ok {
			cb(m)
		}
	})
	if err != nil {
		return
	}
	p.stopFn = stop
}

func (p *inPort) Close() error {
	if p.stopFn != nil {
		p.stopFn()
	}
	return p.port.Close()
}

type outPort struct {
	port drivers.Out
	send func(midi.Message) error
}

func (p *outPort) Send(m engine.Message) error {
	if p.send == nil {
		send, err := midi.SendTo(p.port)
		if err != nil {
			return fmt.Errorf("rtmidi: opening send to %s: %w", p.port.String(), err)
		}
		p.send = send
	}
	return p.send(encode(m))
}

func (p *outPort) Close() error {
	return p.port.Close()
}

// decode translates a raw gomidi message into the engine's vocabulary.
// Only channel-voice note messages carry a channel and are forwarded
// to the port's channel buses; everything else is reported as
// not-ok and dropped by the caller.
func decode(msg midi.Message) (engine.Message, bool) {
	var ch, key, vel uint8
	if msg.GetNoteOn(&ch, &key, &vel) {
		return engine.Message{Kind: engine.NoteOn, Channel: ch, Note: key, Velocity: vel}, true
	}
	if msg.GetNoteOff(&ch, &key, &vel) {
		return engine.Message{Kind: engine.NoteOff, Channel: ch, Note: key, Velocity: vel}, true
	}
	return engine.Message{}, false
}

// encode translates an engine.Message into wire bytes.
func encode(m engine.Message) midi.Message {
	switch m.Kind {
	case engine.NoteOn:
		return midi.NoteOn(m.Channel, m.Note, m.Velocity)
	case engine.NoteOff:
		return midi.NoteOff(m.Channel, m.Note, m.Velocity)
	case engine.Clock:
		return midi.TimingClock()
	case engine.SongPos:
		return midi.SongPosition(m.Position)
	case engine.Start:
		return midi.Start()
	case engine.Stop:
		return midi.Stop()
	case engine.Reset:
		return midi.Reset()
	default:
		return nil
	}
}
