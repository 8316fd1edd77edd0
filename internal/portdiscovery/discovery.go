// Package portdiscovery supplies human-readable detail for *why* a
// configured port prefix matched nothing, by enumerating the ALSA
// raw-MIDI devices actually present on the host. It is never
// consulted for correctness — engine.BuildPortRegistry's absent/
// present decision comes entirely from the PortOpener passed to it —
// only for the device list logged when a configured prefix matches no
// physical port.
package portdiscovery

// Device describes one raw-MIDI device node discovered on the host.
type Device struct {
	Path string
	Name string
}

// Enumerator lists the MIDI devices currently visible to the OS.
type Enumerator interface {
	Devices() ([]Device, error)
}
