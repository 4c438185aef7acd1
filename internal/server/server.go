// Package server provides the HTTP façade of the wsi event service: REST
// access to subscriptions and commands, plus websocket and SSE streams.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/cmd/application"
	"github.com/agentstation/wsi/internal/metrics"
	"github.com/agentstation/wsi/internal/server/events"
	"github.com/agentstation/wsi/internal/server/events/adapters"
	"github.com/agentstation/wsi/internal/server/handlers"
	"github.com/agentstation/wsi/internal/server/sse"
	ws "github.com/agentstation/wsi/internal/server/websocket"
	"github.com/agentstation/wsi/pkg/constants"
	wsievents "github.com/agentstation/wsi/pkg/events"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	client         wsi.Client
	metrics        *metrics.Collector
	subs           *handlers.Registry
	defaultSub     *wsi.Subscription
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	startTime      time.Time
	connected      atomic.Bool
	started        atomic.Bool
	done           chan struct{}
}

// New creates a server around the application's event client. ctx bounds
// the client startup. The server keeps one reference to the default
// subscription until Shutdown.
func New(ctx context.Context, app application.Application, cfg Config) (*Server, error) {
	logger := app.Logger()
	logger.Debug().Msg("Creating new server instance")

	client, err := app.Client(ctx)
	if err != nil {
		return nil, err
	}
	collector := app.Metrics()
	if collector == nil {
		collector = metrics.New()
	}

	broker := events.NewBroker(logger)
	wsHub := ws.NewHub(logger)
	sseBroadcaster := sse.NewBroadcaster(logger)

	// Subscribe transports to broker
	broker.Subscribe(adapters.NewWebSocketSubscriber(wsHub))
	broker.Subscribe(adapters.NewSSESubscriber(sseBroadcaster))
	logger.Debug().Msg("WebSocket and SSE transports subscribed to event broker")

	runCtx, cancel := context.WithCancel(context.Background())

	server := &Server{
		client:         client,
		metrics:        collector,
		subs:           handlers.NewRegistry(),
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for WebSocket
			},
		},
		logger:    logger,
		config:    cfg,
		ctx:       runCtx,
		cancel:    cancel,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}

	def, err := client.CreateSubscription(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	server.defaultSub = def
	server.subs.Add(def)

	server.connectHooks()
	logger.Debug().Msg("Server instance created successfully")
	return server, nil
}

// connectHooks publishes the client's hooks on the notification broker.
func (s *Server) connectHooks() {
	s.client.OnNewEvents(func(added []wsievents.Event) {
		s.broker.Publish(events.EventsAdded, map[string]any{
			"events": added,
			"count":  len(added),
		})
	})

	s.client.OnEventClosed(func(ev wsievents.Event) {
		s.broker.Publish(events.EventClosed, map[string]any{"event": ev})
		s.logger.Debug().Str("event_id", ev.ID).Msg("Event closed notification published")
	})

	s.client.OnBackToNormal(func(ev wsievents.Event) {
		s.broker.Publish(events.EventBackToNormal, map[string]any{"event": ev})
	})

	s.client.OnAutomaticTreatment(func(sig wsi.TreatmentSignal) {
		s.broker.Publish(events.TreatmentRequested, map[string]any{
			"event":              sig.Event,
			"higherThanSelected": sig.HigherThanSelected,
			"noSelection":        sig.NoSelection,
		})
		s.logger.Debug().Str("event_id", sig.Event.ID).Msg("Treatment request published")
	})

	s.client.OnConnectionState(func(state wsi.ConnectionState) {
		s.broker.Publish(events.ConnectionChanged, map[string]any{
			"connection": state.String(),
		})
	})

	s.logger.Info().Msg("Event client hooks connected to event broker")
}

// Start starts background services (broker, WebSocket hub, SSE
// broadcaster, connection watcher). Calls after the first are no-ops.
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Debug().Msg("Starting background services")

	services := []func(context.Context){
		s.broker.Run,
		s.wsHub.Run,
		s.sseBroadcaster.Run,
		s.watchConnection,
	}
	stopped := make(chan struct{}, len(services))
	for _, run := range services {
		go func() {
			run(s.ctx)
			stopped <- struct{}{}
		}()
	}
	go func() {
		for range services {
			<-stopped
		}
		close(s.done)
	}()

	s.logger.Debug().Msg("All background services started")
}

// watchConnection tracks the connection state of the default
// subscription, which replays the current state on subscribe.
func (s *Server) watchConnection(ctx context.Context) {
	states := s.defaultSub.ConnectionStates()
	defer states.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states.C():
			if !ok {
				s.connected.Store(false)
				return
			}
			s.connected.Store(state == wsi.Connected)
		}
	}
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops the background services and releases the default
// subscription. It waits for the services until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()

	if err := s.client.DestroySubscription(ctx, constants.DefaultSubscriptionID); err != nil {
		s.logger.Warn().Err(err).Msg("Releasing the default subscription failed")
	}
	if !s.started.Load() {
		return nil
	}

	select {
	case <-s.done:
		s.logger.Info().Msg("Background services shut down successfully")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return ctx.Err()
	}
}

// Connected reports whether the client's push connection is up.
func (s *Server) Connected() bool {
	return s.connected.Load()
}

// Subscriptions returns the registry of subscriptions known to the API.
func (s *Server) Subscriptions() *handlers.Registry {
	return s.subs
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub {
	return s.wsHub
}

// SSEBroadcaster returns the SSE broadcaster.
func (s *Server) SSEBroadcaster() *sse.Broadcaster {
	return s.sseBroadcaster
}

// Broker returns the event broker for publishing events.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
