// Package handlers provides the HTTP handlers of the wsi API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/server/sse"
	ws "github.com/agentstation/wsi/internal/server/websocket"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/logging"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// StreamObserver counts streaming clients by kind ("ws", "sse").
type StreamObserver interface {
	StreamClientConnected(kind string, delta int)
}

type nopObserver struct{}

func (nopObserver) StreamClientConnected(string, int) {}

// Deps are the collaborators of the handlers.
type Deps struct {
	Client         wsi.Client
	Subscriptions  *Registry
	WSHub          *ws.Hub
	SSEBroadcaster *sse.Broadcaster
	Upgrader       websocket.Upgrader
	Streams        StreamObserver
	// Connected reports whether the push connection is up.
	Connected func() bool
	// Context ends every stream when the server shuts down.
	Context   context.Context
	StartTime time.Time
	Logger    *zerolog.Logger
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	client         wsi.Client
	subs           *Registry
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	streams        StreamObserver
	connected      func() bool
	ctx            context.Context
	startTime      time.Time
	logger         *zerolog.Logger
}

// New creates the handlers. Missing optional deps get inert defaults.
func New(d Deps) *Handlers {
	h := &Handlers{
		client:         d.Client,
		subs:           d.Subscriptions,
		wsHub:          d.WSHub,
		sseBroadcaster: d.SSEBroadcaster,
		upgrader:       d.Upgrader,
		streams:        d.Streams,
		connected:      d.Connected,
		ctx:            d.Context,
		startTime:      d.StartTime,
		logger:         d.Logger,
	}
	if h.subs == nil {
		h.subs = NewRegistry()
	}
	if h.streams == nil {
		h.streams = nopObserver{}
	}
	if h.connected == nil {
		h.connected = func() bool { return false }
	}
	if h.ctx == nil {
		h.ctx = context.Background()
	}
	if h.logger == nil {
		nop := zerolog.Nop()
		h.logger = &nop
	}
	return h
}

// requestContext returns the request context carrying a logger: the one
// set by the logging middleware, or the handlers' own.
func (h *Handlers) requestContext(r *http.Request) context.Context {
	if logging.RequestID(r.Context()) == "" {
		return logging.WithLogger(r.Context(), h.logger)
	}
	return r.Context()
}

// decodeJSON reads an optional JSON body into v. It reports false for an
// empty body.
func decodeJSON(r *http.Request, v any) (bool, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return false, errors.WrapIO("read", "request body", err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.NewValidationError("body", nil, err.Error())
	}
	return true, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.WrapValidation(key, err)
	}
	return b, nil
}

// ParseID parses a subscription id from a path segment or query value.
func ParseID(field, raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, errors.NewValidationError(field, raw, "not a subscription id")
	}
	return id, nil
}
