// Package application provides the application interface for wsi commands.
//
// The Application interface defines the contract between the application layer and
// command implementations, enabling dependency injection and testability.
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            client, err := app.Client(cmd.Context())
//	            if err != nil {
//	                return err
//	            }
//	            // ... use client
//	            return nil
//	        },
//	    }
//	}
//
// Testing with Mocks:
//
//	mock := &application.Mock{
//	    ClientFunc: func(context.Context) (wsi.Client, error) {
//	        return testClient, nil
//	    },
//	}
//	cmd := NewCommand(mock)
package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/metrics"
)

// Application provides the application interface that commands need.
// The App struct from cmd/wsi/app implements this interface.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Client returns the shared event client. The first call loads the
	// lookup tables and starts the push transport; ctx bounds that startup
	// only, the client runs until the application shuts down.
	Client(ctx context.Context) (wsi.Client, error)

	// Metrics returns the Prometheus collector the client reports to.
	Metrics() *metrics.Collector

	// Logger returns the configured logger instance.
	// Commands should use this for all logging operations.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
