package engine

// MessageDestination receives messages pushed by a MessageSource. It is
// the "sink" half of the capability split described for the observer
// graph: anything that only needs to be handed messages implements
// this and nothing else.
type MessageDestination interface {
	ReceiveMessage(m Message)
}

// MessageSource is the "fan-out" half: an ordered, append-only list of
// destinations notified in registration order on every SendMessage.
// Registration happens once at project-assembly time; after the
// project starts, the list is treated as read-only.
type MessageSource struct {
	observers []MessageDestination
}

// RegisterObserver appends destination to the fan-out list. A nil
// destination is a no-op, matching the Python original's
// `if destination: self._observers.append(destination)`.
func (s *MessageSource) RegisterObserver(destination MessageDestination) {
	if destination == nil {
		return
	}
	s.observers = append(s.observers, destination)
}

// SendMessage invokes ReceiveMessage on every registered observer, in
// registration order, duplicates included.
func (s *MessageSource) SendMessage(m Message) {
	for _, o := range s.observers {
		o.ReceiveMessage(m)
	}
}

// DestinationFunc adapts a plain function to a MessageDestination.
type DestinationFunc func(m Message)

func (f DestinationFunc) ReceiveMessage(m Message) { f(m) }
