// Package adapters connects the notification broker to the websocket hub
// and the SSE broadcaster.
package adapters

import (
	"github.com/agentstation/wsi/internal/server/events"
	ws "github.com/agentstation/wsi/internal/server/websocket"
)

// WebSocketSubscriber forwards notifications to every hub client.
type WebSocketSubscriber struct {
	hub *ws.Hub
}

// NewWebSocketSubscriber creates the adapter.
func NewWebSocketSubscriber(hub *ws.Hub) *WebSocketSubscriber {
	return &WebSocketSubscriber{hub: hub}
}

// Send implements events.Subscriber.
func (w *WebSocketSubscriber) Send(event events.Event) error {
	w.hub.Broadcast(Message(event))
	return nil
}

// Close is a no-op; the hub stops with the server context.
func (w *WebSocketSubscriber) Close() error {
	return nil
}

// Message converts a notification to a websocket frame.
func Message(event events.Event) ws.Message {
	return ws.Message{
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Data:      event.Data,
	}
}
