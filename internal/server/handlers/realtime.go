package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/server/events"
	"github.com/agentstation/wsi/internal/server/events/adapters"
	"github.com/agentstation/wsi/internal/server/response"
	"github.com/agentstation/wsi/internal/server/sse"
	ws "github.com/agentstation/wsi/internal/server/websocket"
	"github.com/agentstation/wsi/pkg/errors"
)

// Stream kinds reported to the StreamObserver.
const (
	kindWebSocket = "ws"
	kindSSE       = "sse"
)

// HandleWebSocket handles the notification websocket at
// /api/v1/notifications/ws.
// @Summary Notification websocket
// @Description New, closed and back-to-normal events, treatment requests and connection changes
// @Tags realtime
// @Success 101 "Switching Protocols"
// @Router /api/v1/notifications/ws [get].
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.NewString(), h.wsHub, conn)
	h.wsHub.Register(client)
	client.Send(ws.Message{
		Type:      string(events.ClientConnected),
		Timestamp: time.Now(),
		Data:      h.greeting(client.ID()),
	})

	h.streams.StreamClientConnected(kindWebSocket, 1)
	go client.WritePump()
	go func() {
		client.ReadPump()
		h.streams.StreamClientConnected(kindWebSocket, -1)
	}()
}

// HandleSSE handles the notification stream at /api/v1/notifications/stream.
// @Summary Notification stream
// @Description Server-Sent Events carrying the notification websocket messages
// @Tags realtime
// @Produce text/event-stream
// @Success 200 "Event stream"
// @Router /api/v1/notifications/stream [get].
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.streams.StreamClientConnected(kindSSE, 1)
	defer h.streams.StreamClientConnected(kindSSE, -1)
	h.sseBroadcaster.ServeHTTP(w, r)
}

// HandleSubscriptionWebSocket handles GET /api/v1/subscriptions/{id}/ws.
// @Summary Subscription websocket
// @Description Batches, filter changes and connection changes of one subscription.
// @Description The latest batch is replayed first.
// @Tags realtime
// @Success 101 "Switching Protocols"
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/subscriptions/{id}/ws [get].
func (h *Handlers) HandleSubscriptionWebSocket(w http.ResponseWriter, r *http.Request, id int) {
	sub, ok := h.subs.Get(id)
	if !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("subscription", strconv.Itoa(id)))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Int("subscription_id", id).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.NewString(), nil, conn).WithLogger(h.logger)
	go client.WritePump()
	go client.ReadPump()

	h.streams.StreamClientConnected(kindWebSocket, 1)
	defer h.streams.StreamClientConnected(kindWebSocket, -1)

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go func() {
		select {
		case <-client.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	h.logger.Debug().Str("client_id", client.ID()).Int("subscription_id", id).Msg("Subscription websocket opened")
	h.forward(ctx, sub, func(ev events.Event) bool {
		return client.Send(adapters.Message(ev))
	})
	client.Close()
}

// HandleSubscriptionSSE handles GET /api/v1/subscriptions/{id}/stream.
// @Summary Subscription stream
// @Description Server-Sent Events carrying the subscription websocket messages
// @Tags realtime
// @Produce text/event-stream
// @Success 200 "Event stream"
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/subscriptions/{id}/stream [get].
func (h *Handlers) HandleSubscriptionSSE(w http.ResponseWriter, r *http.Request, id int) {
	sub, ok := h.subs.Get(id)
	if !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("subscription", strconv.Itoa(id)))
		return
	}

	stream, err := sse.NewStream(w)
	if err != nil {
		response.InternalError(w, err)
		return
	}

	h.streams.StreamClientConnected(kindSSE, 1)
	defer h.streams.StreamClientConnected(kindSSE, -1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	h.forward(ctx, sub, func(ev events.Event) bool {
		return stream.Send(adapters.SSEEvent(ev)) == nil
	})
}

// forward relays the channels of sub through send until ctx is done, send
// fails or the subscription ends. A final SubscriptionEnded message
// carries the failure, if any.
func (h *Handlers) forward(ctx context.Context, sub *wsi.Subscription, send func(events.Event) bool) {
	batches, filters, states := sub.Events(), sub.Filters(), sub.ConnectionStates()
	defer batches.Cancel()
	defer filters.Cancel()
	defer states.Cancel()

	emit := func(t events.EventType, data any) bool {
		return send(events.Event{Type: t, Timestamp: time.Now(), Data: data})
	}

	bc, fc, sc := batches.C(), filters.C(), states.C()
	for {
		select {
		case <-ctx.Done():
			return

		case batch, ok := <-bc:
			if !ok {
				ended := map[string]any{"subscription": sub.ID}
				if err := batches.Err(); err != nil {
					ended["error"] = err.Error()
				}
				emit(events.SubscriptionEnded, ended)
				return
			}
			if !emit(events.SubscriptionBatch, batch) {
				return
			}

		case f, ok := <-fc:
			if !ok {
				fc = nil
				continue
			}
			if !emit(events.SubscriptionFilter, f) {
				return
			}

		case state, ok := <-sc:
			if !ok {
				sc = nil
				continue
			}
			if !emit(events.ConnectionChanged, state.String()) {
				return
			}
		}
	}
}

func (h *Handlers) greeting(clientID string) map[string]any {
	state := wsi.Disconnected
	if h.connected() {
		state = wsi.Connected
	}
	return map[string]any{
		"clientId":   clientID,
		"connection": state.String(),
	}
}
