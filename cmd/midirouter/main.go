// Command midirouter drives the engine: it loads the two YAML config
// documents, opens physical MIDI ports, assembles the project graph,
// and runs an interactive loop where 'q' quits and 's' toggles the
// clock.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/pkg/term"
	"github.com/spf13/pflag"

	"github.com/kgaudio/midirouter/engine"
	"github.com/kgaudio/midirouter/internal/portdiscovery"
	"github.com/kgaudio/midirouter/internal/rtmidi"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		portsPath   = pflag.StringP("ports", "p", "ports.yaml", "Path to the ports config document")
		projectPath = pflag.StringP("project", "j", "project.yaml", "Path to the project config document")
		logLevel    = pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error")
		help        = pflag.Bool("help", false, "Display help text")
	)

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "midirouter: a real-time MIDI sequencing and routing engine")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return 0
	}

	logger := log.New(os.Stderr)
	logger.SetLevel(parseLevel(*logLevel))

	portsCfg, err := engine.LoadPortsConfigFile(*portsPath)
	if err != nil {
		logger.Error("loading ports config", "error", err)
		return 1
	}

	projectCfg, err := engine.LoadProjectConfigFile(*projectPath)
	if err != nil {
		logger.Error("loading project config", "error", err)
		return 1
	}

	opener := rtmidi.NewOpener()
	proj, err := engine.BuildProject(portsCfg, projectCfg, opener, logger)
	if err != nil {
		logger.Error("assembling project", "error", err)
		return 1
	}
	if len(proj.Registry.AbsentInputs()) > 0 || len(proj.Registry.AbsentOutputs()) > 0 {
		reportAbsentPorts(logger)
	}

	started := time.Now()
	proj.RunAndStart()
	defer proj.Stop()

	return interact(proj, logger, started)
}

// reportAbsentPorts enumerates host MIDI devices so a configured port
// that matched no physical device can be diagnosed in one run, instead
// of an operator guessing at the exact physical device name.
func reportAbsentPorts(logger *log.Logger) {
	devices, err := portdiscovery.NewEnumerator().Devices()
	if err != nil || len(devices) == 0 {
		return
	}
	logger.Info("devices visible on this host", "count", len(devices))
	for _, d := range devices {
		logger.Info("  device", "name", d.Name, "path", d.Path)
	}
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// interact reads single keystrokes without waiting for Enter ('q' to
// quit, 's' to toggle the clock), the minimal runner §6 calls for.
// It falls back to a line-buffered reader when the controlling
// terminal cannot be opened in raw mode (e.g. the process has no
// controlling terminal).
func interact(proj *engine.Project, logger *log.Logger, started time.Time) int {
	t, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		logger.Warn("could not open controlling terminal in raw mode; falling back to line input", "error", err)
		return interactLineBuffered(proj, logger, started)
	}
	defer t.Close()

	buf := make([]byte, 1)
	for {
		n, err := t.Read(buf)
		if err != nil || n == 0 {
			return 0
		}
		if code := handleKey(buf[0], proj, logger, started); code >= 0 {
			return code
		}
	}
}

func interactLineBuffered(proj *engine.Project, logger *log.Logger, started time.Time) int {
	for {
		var line string
		if _, err := fmt.Scanln(&line); err != nil {
			return 0
		}
		for _, b := range []byte(line) {
			if code := handleKey(b, proj, logger, started); code >= 0 {
				return code
			}
		}
	}
}

const statusTimeFormat = "%Y-%m-%d %H:%M:%S"

func handleKey(b byte, proj *engine.Project, logger *log.Logger, started time.Time) int {
	switch b {
	case 'q', 'Q':
		return 0
	case 's', 'S':
		proj.Clock.Toggle()
		if formatted, err := strftime.Format(statusTimeFormat, started); err == nil {
			logger.Info("clock toggled", "running", proj.Clock.Running(), "started", formatted)
		}
	}
	return -1
}
