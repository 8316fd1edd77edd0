package engine

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PortConfig is one entry of the ports document.
type PortConfig struct {
	Name     string `yaml:"name"`
	PortName string `yaml:"port_name"`
}

// PortsConfig is the top-level ports document.
type PortsConfig struct {
	Ports []PortConfig `yaml:"ports"`
}

// SymbolEntry is one {symbol, note?, velocity?, length?} config entry,
// shared by instrument defaults, timbre symbols, and part symbols.
type SymbolEntry struct {
	Symbol   string `yaml:"symbol"`
	Note     *int   `yaml:"note"`
	Velocity *int   `yaml:"velocity"`
	Length   int    `yaml:"length"`
}

func (e SymbolEntry) toMapping() SymbolMapping {
	return SymbolMapping{Symbol: e.Symbol, Note: e.Note, Velocity: e.Velocity, Length: e.Length}
}

func entriesToMappings(entries []SymbolEntry) []SymbolMapping {
	out := make([]SymbolMapping, len(entries))
	for i, e := range entries {
		out[i] = e.toMapping()
	}
	return out
}

// InstrumentDefaults is the instrument-level `defaults:` block.
type InstrumentDefaults struct {
	Symbols []SymbolEntry `yaml:"symbols"`
}

// TimbreConfig is one entry of an instrument's `timbres:` list.
type TimbreConfig struct {
	Name     string        `yaml:"name"`
	Note     *int          `yaml:"note"`
	Velocity *int          `yaml:"velocity"`
	Symbols  []SymbolEntry `yaml:"symbols"`
}

// InstrumentConfig is one entry of the project document's
// `instruments:` list.
type InstrumentConfig struct {
	Name        string             `yaml:"name"`
	PatternType string             `yaml:"pattern_type"`
	Port        string             `yaml:"port"`
	Channel     int                `yaml:"channel"`
	Defaults    InstrumentDefaults `yaml:"defaults"`
	Timbres     []TimbreConfig     `yaml:"timbres"`
}

// PartConfig is one entry of the project document's `parts:` list.
type PartConfig struct {
	Instrument  string            `yaml:"instrument"`
	Denominator int               `yaml:"denominator"`
	Note        *int              `yaml:"note"`
	Velocity    *int              `yaml:"velocity"`
	Symbols     []SymbolEntry     `yaml:"symbols"`
	Patterns    map[string]string `yaml:"patterns"`
}

// ClockOutputConfig is one entry of `clock_outputs:`.
type ClockOutputConfig struct {
	OutPortName string `yaml:"out_port_name"`
}

// ConnectorConfig is one entry of `connectors:`.
type ConnectorConfig struct {
	InPortName  string `yaml:"in_port_name"`
	InChannel   int    `yaml:"in_channel"`
	OutPortName string `yaml:"out_port_name"`
	OutChannel  int    `yaml:"out_channel"`
}

// ProjectConfig is the top-level project document.
type ProjectConfig struct {
	BPM          int                 `yaml:"bpm"`
	ClockOutputs []ClockOutputConfig `yaml:"clock_outputs"`
	Connectors   []ConnectorConfig   `yaml:"connectors"`
	Instruments  []InstrumentConfig  `yaml:"instruments"`
	Parts        []PartConfig        `yaml:"parts"`
}

// ConfigError collects every config problem found during project
// assembly rather than failing on the first one, so an operator sees
// every mistake in a single pass.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ConfigError) any() bool { return len(e.Problems) > 0 }

func (e *ConfigError) Error() string {
	return fmt.Sprintf("midirouter: %d configuration problem(s):\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// LoadPortsConfig decodes a ports document from r.
func LoadPortsConfig(r io.Reader) (PortsConfig, error) {
	var cfg PortsConfig
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("midirouter: decoding ports config: %w", err)
	}
	return cfg, nil
}

// LoadProjectConfig decodes a project document from r.
func LoadProjectConfig(r io.Reader) (ProjectConfig, error) {
	var cfg ProjectConfig
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("midirouter: decoding project config: %w", err)
	}
	return cfg, nil
}

// LoadPortsConfigFile opens and decodes a ports document from path.
func LoadPortsConfigFile(path string) (PortsConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return PortsConfig{}, fmt.Errorf("midirouter: opening ports config %s: %w", path, err)
	}
	defer f.Close()
	return LoadPortsConfig(f)
}

// LoadProjectConfigFile opens and decodes a project document from path.
func LoadProjectConfigFile(path string) (ProjectConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProjectConfig{}, fmt.Errorf("midirouter: opening project config %s: %w", path, err)
	}
	defer f.Close()
	return LoadProjectConfig(f)
}
