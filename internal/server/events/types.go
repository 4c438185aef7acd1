// Package events carries service notifications from the wsi client hooks
// to the shared websocket and SSE streams.
//
// The server publishes on a Broker; transport adapters subscribe to it.
// Per-subscription streams reuse the same Event envelope and types.
package events

import "time"

// EventType names a notification.
type EventType string

// Notification types.
const (
	// Store changes, published from the client hooks.
	EventsAdded        EventType = "events.added"
	EventClosed        EventType = "event.closed"
	EventBackToNormal  EventType = "event.back_to_normal"
	TreatmentRequested EventType = "event.treatment"

	// Push connection transitions.
	ConnectionChanged EventType = "connection.changed"

	// Per-subscription stream messages.
	SubscriptionBatch  EventType = "subscription.batch"
	SubscriptionFilter EventType = "subscription.filter"
	SubscriptionEnded  EventType = "subscription.ended"

	// Client events (from transport layers).
	ClientConnected EventType = "client.connected"
)

// Event is one notification.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
