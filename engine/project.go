package engine

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// Project is the assembled graph for one run: a port registry, a
// dispatcher, a clock, the pattern players and MIDI-clock senders
// attached to it, and the routing connectors wired between input and
// output channels.
type Project struct {
	Registry   *PortRegistry
	Dispatcher *Dispatcher
	Clock      *Clock

	instruments map[string]*Instrument
	parts       []*Part
	players     []*PatternPlayer
	senders     []*MidiClockSender

	logger *log.Logger
}

// BuildProject assembles a Project from the two config documents,
// opening physical ports through opener. Construction errors (unknown
// instrument, unknown timbre, unknown symbol in a pattern, invalid
// denominator, invalid channel, duplicate input-channel claims) are
// collected into one *ConfigError and returned without starting the
// clock or dispatcher.
func BuildProject(ports PortsConfig, project ProjectConfig, opener PortOpener, logger *log.Logger) (*Project, error) {
	if logger == nil {
		logger = log.New(os.Stderr)
	}

	cfgErr := &ConfigError{}

	registry := BuildPortRegistry(ports.Ports, opener, func(format string, args ...any) {
		logger.Warn(fmt.Sprintf(format, args...))
	})

	if project.BPM <= 0 {
		cfgErr.add("project bpm must be positive, got %d", project.BPM)
	}

	clock := NewClock(maxInt(project.BPM, 1), func(tick uint64, recovered any) {
		logger.Error("watcher panicked", "tick", tick, "panic", recovered)
	})
	dispatcher := NewDispatcher(registry, func(portName string, err error) {
		logger.Warn("send to physical output failed", "port", portName, "error", err)
	})

	p := &Project{
		Registry:    registry,
		Dispatcher:  dispatcher,
		Clock:       clock,
		instruments: map[string]*Instrument{},
		logger:      logger,
	}

	p.buildInstruments(project.Instruments, cfgErr)
	p.buildParts(project.Parts, cfgErr)
	p.buildClockOutputs(project.ClockOutputs, cfgErr)
	p.buildConnectors(project.Connectors, cfgErr)

	if cfgErr.any() {
		return nil, cfgErr
	}

	for _, player := range p.players {
		clock.AttachWatcher(player)
	}
	for _, sender := range p.senders {
		clock.AttachWatcher(sender)
	}

	return p, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (p *Project) buildInstruments(configs []InstrumentConfig, cfgErr *ConfigError) {
	for _, ic := range configs {
		if ic.Channel < 0 || ic.Channel >= ChannelCount {
			cfgErr.add("instrument %q: channel %d out of range [0,16)", ic.Name, ic.Channel)
			continue
		}

		out, ok := p.Registry.GetOutChannel(ic.Port, ic.Channel, p.Dispatcher)
		if !ok {
			p.logger.Warn("instrument output port absent; instrument stays silent", "instrument", ic.Name, "port", ic.Port)
		}

		defaultMapper := NewSymbolMapper(entriesToMappings(ic.Defaults.Symbols), nil, nil)

		inst := &Instrument{
			Name:          ic.Name,
			PatternType:   ic.PatternType,
			DefaultOut:    out,
			DefaultMapper: defaultMapper,
			Timbres:       map[string]*Timbre{},
		}

		for _, tc := range ic.Timbres {
			local := NewSymbolMapper(entriesToMappings(tc.Symbols), tc.Note, tc.Velocity)
			inst.Timbres[tc.Name] = &Timbre{
				Name:   tc.Name,
				Mapper: local.ApplyDefaults(defaultMapper),
			}
		}

		if _, dup := p.instruments[ic.Name]; dup {
			cfgErr.add("instrument %q declared more than once", ic.Name)
			continue
		}
		p.instruments[ic.Name] = inst
	}
}

func (p *Project) buildParts(configs []PartConfig, cfgErr *ConfigError) {
	for _, pc := range configs {
		inst, ok := p.instruments[pc.Instrument]
		if !ok {
			cfgErr.add("part references unknown instrument %q", pc.Instrument)
			continue
		}
		if pc.Denominator <= 0 {
			cfgErr.add("part for instrument %q: invalid denominator %d", pc.Instrument, pc.Denominator)
			continue
		}

		timing := Timing{Denominator: pc.Denominator}
		partMapper := NewSymbolMapper(entriesToMappings(pc.Symbols), pc.Note, pc.Velocity).ApplyDefaults(inst.DefaultMapper)

		part := &Part{Instrument: inst, Timing: timing, SymbolMapper: partMapper}

		for timbreName, patternString := range pc.Patterns {
			timbre, ok := inst.Timbres[timbreName]
			if !ok {
				cfgErr.add("part for instrument %q: unknown timbre %q", pc.Instrument, timbreName)
				continue
			}

			mapper := timbre.Mapper.ApplyDefaults(partMapper)
			symbols := TokenizePattern(patternString)

			for _, sym := range symbols {
				if _, known := mapper.Map[sym]; !known {
					cfgErr.add("part for instrument %q, timbre %q: pattern symbol %q has no mapping", pc.Instrument, timbreName, sym)
				}
			}

			pattern := NewSymbolPattern(symbols, mapper, timing, func(symbol string) {
				p.logger.Warn("unknown pattern symbol at runtime, skipping", "instrument", pc.Instrument, "timbre", timbreName, "symbol", symbol)
			})
			part.Patterns = append(part.Patterns, pattern)

			player := NewPatternPlayer(pattern)
			if inst.DefaultOut != nil {
				player.RegisterObserver(inst.DefaultOut)
			}
			p.players = append(p.players, player)
		}

		p.parts = append(p.parts, part)
	}
}

func (p *Project) buildClockOutputs(configs []ClockOutputConfig, cfgErr *ConfigError) {
	for _, cc := range configs {
		out, ok := p.Registry.GetOutChannel(cc.OutPortName, 0, p.Dispatcher)
		if !ok {
			p.logger.Warn("clock output port absent; sender stays inactive", "port", cc.OutPortName)
			continue
		}
		p.senders = append(p.senders, NewMidiClockSender(out))
	}
}

func (p *Project) buildConnectors(configs []ConnectorConfig, cfgErr *ConfigError) {
	seen := map[string]bool{}
	for _, cc := range configs {
		key := fmt.Sprintf("%s:%d", cc.InPortName, cc.InChannel)
		if seen[key] {
			cfgErr.add("connector input %s already has a declared connection; multiple declared input channels with the same logical name/channel are rejected", key)
			continue
		}
		seen[key] = true

		if cc.InChannel < 0 || cc.InChannel >= ChannelCount {
			cfgErr.add("connector for %q: in_channel %d out of range [0,16)", cc.InPortName, cc.InChannel)
			continue
		}
		if cc.OutChannel < 0 || cc.OutChannel >= ChannelCount {
			cfgErr.add("connector for %q: out_channel %d out of range [0,16)", cc.OutPortName, cc.OutChannel)
			continue
		}

		in, ok := p.Registry.GetInChannel(cc.InPortName, cc.InChannel)
		if !ok {
			p.logger.Warn("connector input port absent; connector stays inactive", "port", cc.InPortName)
			continue
		}
		out, ok := p.Registry.GetOutChannel(cc.OutPortName, cc.OutChannel, p.Dispatcher)
		if !ok {
			p.logger.Warn("connector output port absent; connector stays inactive", "port", cc.OutPortName)
			continue
		}
		p.logger.Info("registering connector", "in", fmt.Sprintf("%s:%d", cc.InPortName, cc.InChannel), "out", fmt.Sprintf("%s:%d", cc.OutPortName, cc.OutChannel))
		in.RegisterObserver(out)
	}
}

// Start starts the clock running (Clock.Commence). It does not launch
// the dispatcher or clock poll loops: unless Dispatcher.Run and
// Clock.Run are already running in their own goroutines, no tick is
// delivered and nothing queued is sent. RunAndStart does both steps.
func (p *Project) Start() {
	p.Clock.Commence()
}

// RunAndStart launches the dispatcher and clock poll loops in their
// own goroutines and starts the clock running. It returns immediately;
// callers stop the project with Stop.
func (p *Project) RunAndStart() {
	go p.Dispatcher.Run()
	go p.Clock.Run()
	p.Clock.Commence()
}

// Stop ceases the clock (flushing pattern players and emitting a
// `stop` message from every MIDI-clock sender), shuts down the clock's
// poll loop, stops the dispatcher, and closes every physical port.
func (p *Project) Stop() {
	p.Clock.Cease()
	p.Clock.Shutdown()
	p.Dispatcher.Stop()
	p.Registry.Close()
}
