package events

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broker fans notifications out to its subscribers.
type Broker struct {
	subscribers []Subscriber
	events      chan Event
	register    chan Subscriber
	unregister  chan Subscriber
	mu          sync.RWMutex
	now         func() time.Time
	logger      *zerolog.Logger
}

// NewBroker creates a broker. Subscribe and Publish do not block before
// Run.
func NewBroker(logger *zerolog.Logger) *Broker {
	return &Broker{
		events:     make(chan Event, 256),
		register:   make(chan Subscriber, 8),
		unregister: make(chan Subscriber, 8),
		now:        time.Now,
		logger:     logger,
	}
}

// Run distributes notifications until ctx is done, then closes every
// subscriber.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for _, sub := range b.subscribers {
				_ = sub.Close()
			}
			b.subscribers = nil
			b.mu.Unlock()
			b.logger.Info().Msg("Event broker shut down")
			return

		case sub := <-b.register:
			b.mu.Lock()
			b.subscribers = append(b.subscribers, sub)
			total := len(b.subscribers)
			b.mu.Unlock()
			b.logger.Debug().Int("total_subscribers", total).Msg("Subscriber registered")

		case sub := <-b.unregister:
			b.mu.Lock()
			if i := slices.Index(b.subscribers, sub); i >= 0 {
				b.subscribers = slices.Delete(b.subscribers, i, i+1)
				_ = sub.Close()
			}
			total := len(b.subscribers)
			b.mu.Unlock()
			b.logger.Debug().Int("total_subscribers", total).Msg("Subscriber unregistered")

		case event := <-b.events:
			b.mu.RLock()
			subs := slices.Clone(b.subscribers)
			b.mu.RUnlock()

			// subscribers are non-blocking, send in order
			for _, sub := range subs {
				if err := sub.Send(event); err != nil {
					b.logger.Warn().
						Err(err).
						Str("event_type", string(event.Type)).
						Msg("Failed to send event to subscriber")
				}
			}

			b.logger.Debug().
				Str("event_type", string(event.Type)).
				Int("subscribers", len(subs)).
				Msg("Event broadcasted")
		}
	}
}

// Publish queues a notification. It is dropped when the broker is
// saturated.
func (b *Broker) Publish(eventType EventType, data any) {
	event := Event{Type: eventType, Timestamp: b.now(), Data: data}
	select {
	case b.events <- event:
	default:
		b.logger.Warn().
			Str("event_type", string(eventType)).
			Msg("Event channel full, event dropped")
	}
}

// Subscribe adds sub.
func (b *Broker) Subscribe(sub Subscriber) {
	b.register <- sub
}

// Unsubscribe removes and closes sub.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.unregister <- sub
}

// SubscriberCount returns the number of subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
