package adapters

import (
	"strconv"

	"github.com/agentstation/wsi/internal/server/events"
	"github.com/agentstation/wsi/internal/server/sse"
)

// SSESubscriber forwards notifications to every SSE client.
type SSESubscriber struct {
	broadcaster *sse.Broadcaster
}

// NewSSESubscriber creates the adapter.
func NewSSESubscriber(broadcaster *sse.Broadcaster) *SSESubscriber {
	return &SSESubscriber{broadcaster: broadcaster}
}

// Send implements events.Subscriber.
func (s *SSESubscriber) Send(event events.Event) error {
	s.broadcaster.Broadcast(SSEEvent(event))
	return nil
}

// Close is a no-op; the broadcaster stops with the server context.
func (s *SSESubscriber) Close() error {
	return nil
}

// SSEEvent converts a notification to an SSE message. The id is the
// notification time in milliseconds.
func SSEEvent(event events.Event) sse.Event {
	return sse.Event{
		Event: string(event.Type),
		ID:    strconv.FormatInt(event.Timestamp.UnixMilli(), 10),
		Data:  event.Data,
	}
}
