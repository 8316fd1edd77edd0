//go:build linux

package portdiscovery

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// udevEnumerator lists ALSA raw-MIDI device nodes via udev.
type udevEnumerator struct {
	u *udev.Udev
}

// NewEnumerator returns the platform enumerator: udev-backed on Linux.
func NewEnumerator() Enumerator {
	return &udevEnumerator{u: &udev.Udev{}}
}

func (e *udevEnumerator) Devices() ([]Device, error) {
	enum := e.u.NewEnumerate()
	if err := enum.AddMatchSubsystem("sound"); err != nil {
		return nil, fmt.Errorf("portdiscovery: matching sound subsystem: %w", err)
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("portdiscovery: enumerating devices: %w", err)
	}

	var out []Device
	for _, d := range devices {
		sysname := d.Sysname()
		if len(sysname) < 5 || sysname[:5] != "midiC" {
			continue
		}
		out = append(out, Device{Path: d.Devpath(), Name: sysname})
	}
	return out, nil
}
