// Package sse provides Server-Sent Events support: a Broadcaster for the
// shared notification stream and a Stream writer for per-subscription
// streams.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi/pkg/errors"
)

const clientBuffer = 256

// Event is one SSE message. Data is written as JSON.
type Event struct {
	Event string `json:"event,omitempty"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data"`
}

// Write encodes ev in the text/event-stream format.
func Write(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return errors.WrapParse("json", "sse", err)
	}
	if ev.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Event); err != nil {
			return err
		}
	}
	if ev.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// Stream writes events to one SSE response.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStream sets the SSE headers on w. It fails when w cannot flush.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Stream{w: w, flusher: flusher}, nil
}

// Send writes and flushes ev.
func (s *Stream) Send(ev Event) error {
	if err := Write(s.w, ev); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Broadcaster fans events out to every connected SSE client.
type Broadcaster struct {
	clients    map[chan Event]struct{}
	newClients chan chan Event
	closed     chan chan Event
	events     chan Event
	stopped    chan struct{}
	mu         sync.RWMutex
	logger     *zerolog.Logger
}

// NewBroadcaster creates a broadcaster. Clients may connect before Run.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[chan Event]struct{}),
		newClients: make(chan chan Event, 16),
		closed:     make(chan chan Event, 16),
		events:     make(chan Event, 256),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
}

// Run serves clients until ctx is done, then ends every stream.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.stopped)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				close(client)
			}
			b.clients = make(map[chan Event]struct{})
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster shut down")
			return

		case client := <-b.newClients:
			b.mu.Lock()
			b.clients[client] = struct{}{}
			total := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().Int("total_clients", total).Msg("SSE client connected")

		case client := <-b.closed:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			total := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().Int("total_clients", total).Msg("SSE client disconnected")

		case event := <-b.events:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- event:
				default:
					b.logger.Warn().Str("event", event.Event).Msg("SSE client buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Broadcast queues event for every client.
func (b *Broadcaster) Broadcast(event Event) {
	select {
	case b.events <- event:
	default:
		b.logger.Warn().Str("event", event.Event).Msg("SSE broadcast channel full, event dropped")
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP streams broadcast events until the client leaves or the
// broadcaster stops. A connected event is sent first.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stream, err := NewStream(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	select {
	case <-b.stopped:
		return
	default:
	}

	client := make(chan Event, clientBuffer)
	select {
	case b.newClients <- client:
	case <-b.stopped:
		return
	}
	defer func() {
		select {
		case b.closed <- client:
		case <-b.stopped:
		}
	}()

	if err := stream.Send(Event{Event: "connected", Data: map[string]any{"message": "Connected to wsi notifications"}}); err != nil {
		return
	}

	for {
		select {
		case event, ok := <-client:
			if !ok {
				return
			}
			if err := stream.Send(event); err != nil {
				b.logger.Debug().Err(err).Msg("SSE write failed")
				return
			}
		case <-r.Context().Done():
			return
		case <-b.stopped:
			return
		}
	}
}
