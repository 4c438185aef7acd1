package server

import (
	"net/http"
	"strings"

	"github.com/agentstation/wsi/internal/server/handlers"
	"github.com/agentstation/wsi/internal/server/middleware"
	"github.com/agentstation/wsi/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(handlers.Deps{
		Client:         s.client,
		Subscriptions:  s.subs,
		WSHub:          s.wsHub,
		SSEBroadcaster: s.sseBroadcaster,
		Upgrader:       s.upgrader,
		Streams:        s.metrics,
		Connected:      s.Connected,
		Context:        s.ctx,
		StartTime:      s.startTime,
		Logger:         s.logger,
	})

	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// method returns a handler that serves only the given HTTP method.
func method(m string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		fn(w, r)
	}
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	prefix := s.config.PathPrefix

	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Public health endpoints (no auth required)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc(prefix+"/health", h.HandleHealth)
	mux.HandleFunc(prefix+"/ready", h.HandleReady)

	// Event views
	mux.HandleFunc(prefix+"/events", method(http.MethodGet, h.HandleEvents))
	mux.HandleFunc(prefix+"/summary", method(http.MethodGet, h.HandleSummary))

	// Subscriptions
	mux.HandleFunc(prefix+"/subscriptions", method(http.MethodPost, h.HandleCreateSubscription))
	mux.HandleFunc(prefix+"/subscriptions/", func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(strings.TrimPrefix(r.URL.Path, prefix+"/subscriptions/"))
		if len(parts) == 0 {
			response.NotFound(w, "Route not found", r.URL.Path)
			return
		}
		id, err := handlers.ParseID("id", parts[0])
		if err != nil {
			response.ErrorFromType(w, err)
			return
		}

		switch {
		case len(parts) == 1:
			method(http.MethodDelete, func(w http.ResponseWriter, r *http.Request) {
				h.HandleDestroySubscription(w, r, id)
			})(w, r)
		case len(parts) == 2 && parts[1] == "filter":
			method(http.MethodPut, func(w http.ResponseWriter, r *http.Request) {
				h.HandleSetFilter(w, r, id)
			})(w, r)
		case len(parts) == 2 && parts[1] == "realign":
			method(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
				h.HandleRealign(w, r, id)
			})(w, r)
		case len(parts) == 2 && parts[1] == "ws":
			h.HandleSubscriptionWebSocket(w, r, id)
		case len(parts) == 2 && parts[1] == "stream":
			h.HandleSubscriptionSSE(w, r, id)
		default:
			response.NotFound(w, "Route not found", r.URL.Path)
		}
	})

	// Commands and selection
	mux.HandleFunc(prefix+"/commands", method(http.MethodPost, h.HandleCommand))
	mux.HandleFunc(prefix+"/selection", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.HandleGetSelection(w, r)
		case http.MethodPost:
			h.HandleSelection(w, r)
		default:
			response.MethodNotAllowed(w, r.Method)
		}
	})

	// Real-time notification endpoints
	mux.HandleFunc(prefix+"/notifications/ws", h.HandleWebSocket)
	mux.HandleFunc(prefix+"/notifications/stream", h.HandleSSE)

	// Metrics endpoint (optional)
	if s.config.MetricsEnabled {
		mux.Handle("/metrics", s.metrics.Handler())
	}
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	// Rate limiting (if enabled)
	if cfg.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, s.logger)
		handler = middleware.RateLimit(rateLimiter)(handler)
	}

	// Authentication (if enabled)
	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.APIKey = cfg.APIKey
		if cfg.AuthHeader != "" {
			authConfig.HeaderName = cfg.AuthHeader
		}
		authConfig.PublicPaths = append(authConfig.PublicPaths,
			cfg.PathPrefix+"/health",
			cfg.PathPrefix+"/ready",
		)
		handler = middleware.Auth(authConfig, s.logger)(handler)
	}

	// CORS (if enabled)
	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
			corsConfig.AllowAll = false
		} else {
			corsConfig.AllowAll = true
		}
		handler = middleware.CORS(corsConfig)(handler)
	}

	// Metrics, logging and recovery (always enabled)
	handler = middleware.Metrics(s.metrics)(handler)
	handler = middleware.Logger(s.logger)(handler)
	handler = middleware.Recovery(s.logger)(handler)

	return handler
}

// splitPath splits a URL path into parts, removing empty strings.
func splitPath(path string) []string {
	parts := []string{}
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
