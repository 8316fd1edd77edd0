package engine

import (
	"fmt"
)

// queuedMessage is one item of the dispatcher's queue: a message bound
// for a specific logical output port.
type queuedMessage struct {
	portName string
	message  Message
}

// Dispatcher is the single consumer of a multi-producer queue of
// (message, port name) pairs. Its goroutine is the sole writer to any
// physical output port; every producer (pattern players, the MIDI
// clock sender, routed connectors) only ever calls Enqueue.
//
// The Python original used a cross-process multiprocessing.Queue for
// this, which the design notes call out as unnecessary for a
// single-process engine; a buffered Go channel is the in-process MPMC
// primitive that preserves the same "single consumer writes ports"
// invariant without the IPC overhead.
type Dispatcher struct {
	registry *PortRegistry
	queue    chan queuedMessage
	stop     chan struct{}
	done     chan struct{}
	onError  func(portName string, err error)
}

// queueCapacity bounds the dispatcher queue generously; under normal
// load Enqueue never blocks. Overflow past this size means a producer
// is misbehaving (or the dispatcher itself is stuck) and is treated as
// a fatal condition, not a silent drop.
const queueCapacity = 1 << 16

// NewDispatcher creates a Dispatcher bound to registry. onError is
// invoked (on the dispatcher goroutine) whenever a physical send
// fails; the dispatcher keeps running afterward.
func NewDispatcher(registry *PortRegistry, onError func(portName string, err error)) *Dispatcher {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Dispatcher{
		registry: registry,
		queue:    make(chan queuedMessage, queueCapacity),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		onError:  onError,
	}
}

// Enqueue adds a (portName, message) pair to the queue. It never
// blocks under normal load; if the queue is completely full it panics,
// since that indicates a pathological watcher or a wedged dispatcher
// rather than a condition a producer (often a clock-thread watcher,
// which must not block) could usefully recover from.
func (d *Dispatcher) Enqueue(portName string, m Message) {
	select {
	case d.queue <- queuedMessage{portName: portName, message: m}:
	default:
		panic(fmt.Sprintf("midirouter: output queue overflow enqueuing to port %q; capacity %d exceeded", portName, queueCapacity))
	}
}

// Run drains the queue until Stop is called. It is meant to be run in
// its own goroutine for the process lifetime of the Dispatcher.
func (d *Dispatcher) Run() {
	defer close(d.done)
	for {
		select {
		case item := <-d.queue:
			d.deliver(item)
		case <-d.stop:
			// Pending messages at shutdown may be discarded.
			return
		}
	}
}

func (d *Dispatcher) deliver(item queuedMessage) {
	out, ok := d.registry.OutputFor(item.portName)
	if !ok {
		return
	}
	if err := out.Send(item.message); err != nil {
		d.onError(item.portName, err)
	}
}

// Stop breaks the drain loop at its next iteration and waits for Run
// to return.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
}
