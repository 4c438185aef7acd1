package adapters

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi/internal/server/events"
	"github.com/agentstation/wsi/internal/server/sse"
	ws "github.com/agentstation/wsi/internal/server/websocket"
)

var at = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func TestMessage(t *testing.T) {
	msg := Message(events.Event{Type: events.EventClosed, Timestamp: at, Data: "ev-1"})
	assert.Equal(t, ws.Message{Type: "event.closed", Timestamp: at, Data: "ev-1"}, msg)
}

func TestSSEEvent(t *testing.T) {
	ev := SSEEvent(events.Event{Type: events.ConnectionChanged, Timestamp: at, Data: "connected"})
	assert.Equal(t, "connection.changed", ev.Event)
	assert.Equal(t, "1778414400000", ev.ID)
	assert.Equal(t, "connected", ev.Data)
}

func TestWebSocketSubscriberDoesNotBlock(t *testing.T) {
	logger := zerolog.Nop()
	sub := NewWebSocketSubscriber(ws.NewHub(&logger))

	// the hub is not running, Broadcast drops once it is saturated
	for range 300 {
		require.NoError(t, sub.Send(events.Event{Type: events.EventsAdded, Timestamp: at}))
	}
	assert.NoError(t, sub.Close())
}

func TestSSESubscriberDoesNotBlock(t *testing.T) {
	logger := zerolog.Nop()
	sub := NewSSESubscriber(sse.NewBroadcaster(&logger))

	for range 300 {
		require.NoError(t, sub.Send(events.Event{Type: events.EventsAdded, Timestamp: at}))
	}
	assert.NoError(t, sub.Close())
}
