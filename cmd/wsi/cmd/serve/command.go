// Package serve provides the HTTP server command of the wsi CLI.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/wsi/cmd/application"
	"github.com/agentstation/wsi/internal/server"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
)

// NewCommand creates the serve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "core",
		Short:   "Serve live event views over REST, WebSocket and SSE",
		Long: `Connect to the WSI server and expose the event store to front-ends.

Features:
  - Current views and ad-hoc filtered queries (/api/v1/events)
  - Subscriptions with their own filters (/api/v1/subscriptions)
  - Per-subscription WebSocket and SSE streams of incremental batches
  - Event commands and the operator selection
  - Notification streams for new, closed and back-to-normal events
    (/api/v1/notifications/ws, /api/v1/notifications/stream)
  - Rate limiting, API key authentication and CORS
  - Health, readiness and Prometheus metrics endpoints
  - Graceful shutdown with connection draining`,
		Example: `  # Start on default port 8080
  wsi serve

  # Start on custom port with authentication (key from WSI_API_KEY)
  wsi serve --port 3000 --auth

  # Enable CORS for specific origins
  wsi serve --cors-origins "https://example.com,https://app.example.com"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, args, app)
		},
	}

	// Server configuration flags
	cmd.Flags().Int("port", 8080, "Server port")
	cmd.Flags().String("host", "localhost", "Bind address")

	// CORS flags
	cmd.Flags().Bool("cors", false, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated)")

	// Authentication flags
	cmd.Flags().Bool("auth", false, "Enable API key authentication (key from WSI_API_KEY)")
	cmd.Flags().String("auth-header", "X-API-Key", "Authentication header name")

	// Performance flags
	cmd.Flags().Int("rate-limit", 100, "Requests per minute per IP (0 to disable)")

	// Timeout flags. There is no write timeout: it would cut the streams.
	cmd.Flags().Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("idle-timeout", 120*time.Second, "HTTP idle timeout")

	// Features flags
	cmd.Flags().Bool("metrics", true, "Enable metrics endpoint")
	cmd.Flags().String("prefix", "/api/v1", "API path prefix")

	return cmd
}

// runServer starts the API server.
func runServer(cmd *cobra.Command, _ []string, app application.Application) error {
	cfg, err := parseConfig(cmd)
	if err != nil {
		return err
	}
	logger := app.Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Msg("Starting API server")

	srv, err := server.New(cmd.Context(), app, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start background services (WebSocket hub, SSE broadcaster, event broker)
	srv.Start()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// cmd.Context() carries the signal handling from main.go
	return startWithGracefulShutdown(cmd.Context(), httpServer, srv, logger)
}

// parseConfig parses command flags into server configuration.
func parseConfig(cmd *cobra.Command) (server.Config, error) {
	cfg := server.DefaultConfig()
	cfg.Port = mustGetInt(cmd, "port")
	cfg.Host = mustGetString(cmd, "host")
	cfg.CORSEnabled = mustGetBool(cmd, "cors")
	cfg.CORSOrigins = mustGetStringSlice(cmd, "cors-origins")
	cfg.AuthEnabled = mustGetBool(cmd, "auth")
	cfg.AuthHeader = mustGetString(cmd, "auth-header")
	cfg.RateLimit = mustGetInt(cmd, "rate-limit")
	cfg.ReadTimeout = mustGetDuration(cmd, "read-timeout")
	cfg.IdleTimeout = mustGetDuration(cmd, "idle-timeout")
	cfg.MetricsEnabled = mustGetBool(cmd, "metrics")
	cfg.PathPrefix = mustGetString(cmd, "prefix")

	// CORS origins imply CORS
	if len(cfg.CORSOrigins) > 0 {
		cfg.CORSEnabled = true
	}

	// Override with environment variables
	if envPort := os.Getenv("HTTP_PORT"); envPort != "" {
		p, err := parsePort(envPort)
		if err != nil {
			return cfg, err
		}
		cfg.Port = p
	}
	if envHost := os.Getenv("HTTP_HOST"); envHost != "" {
		cfg.Host = envHost
	}
	cfg.APIKey = os.Getenv(constants.EnvPrefix + "_API_KEY")

	if cfg.AuthEnabled && cfg.APIKey == "" {
		return cfg, errors.NewConfigError("serve", "--auth requires "+constants.EnvPrefix+"_API_KEY", nil)
	}
	return cfg, nil
}

// parsePort safely parses a port string to integer.
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, errors.NewValidationError("port", portStr, "not a number")
	}
	if port < 1 || port > 65535 {
		return 0, errors.NewValidationError("port", port, "out of range")
	}
	return port, nil
}

// startWithGracefulShutdown serves until ctx is cancelled, then drains
// connections and stops the background services.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("service", "API").
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received via context")

		// The parent context is already cancelled
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		// Stop the streams first: Shutdown does not close hijacked
		// websocket connections and waits for SSE handlers.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

// mustGetInt retrieves an integer flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetStringSlice retrieves a string slice flag value or panics if the flag doesn't exist.
func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetDuration retrieves a duration flag value or panics if the flag doesn't exist.
func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}
