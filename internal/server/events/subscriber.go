package events

// Subscriber consumes broker notifications. Implementations adapt them to
// a transport and must not block.
type Subscriber interface {
	// Send delivers one notification.
	Send(Event) error

	// Close releases the subscriber.
	Close() error
}
