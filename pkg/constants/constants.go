// Package constants provides shared constants used throughout the wsi codebase.
// This includes timeouts, intervals, identifiers and file permissions that
// should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the WSI API
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// StartupTimeout bounds the category and discipline lookups done before
	// push batches are accepted
	StartupTimeout = 30 * time.Second

	// FirstBatchTimeout is how long one-shot CLI commands wait for the
	// initial event list
	FirstBatchTimeout = 15 * time.Second

	// ShutdownTimeout is the grace period for the HTTP server
	ShutdownTimeout = 10 * time.Second

	// RetryBackoff is the initial push reconnect delay
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum push reconnect delay
	MaxRetryBackoff = 30 * time.Second
)

// Event engine constants
const (
	// DefaultSubscriptionID is the shared, reference-counted subscription
	// that feeds the primary views and the notification-center color
	DefaultSubscriptionID = 0

	// BlinkInterval is the tick period of the shared blinker
	BlinkInterval = 500 * time.Millisecond

	// EventSenderID identifies new-event desktop notifications
	EventSenderID = "wsi.events"

	// BackToNormalSenderID identifies back-to-normal desktop notifications
	BackToNormalSenderID = "wsi.events.normal"

	// DefaultWebClientName replaces the web client marker in InProcessBy
	DefaultWebClientName = "Web Client"

	// ChannelBufferSize is the default buffer size for channels
	ChannelBufferSize = 16
)

// Cache constants
const (
	// CacheTTL is the default time-to-live for lookup tables; zero means
	// the tables live for the whole process
	CacheTTL = 0

	// CacheCleanupInterval is how often to clean expired cache entries
	CacheCleanupInterval = 10 * time.Minute
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Environment variable names
const (
	// EnvPrefix is the prefix for configuration environment variables
	EnvPrefix = "WSI"

	// EnvToken is the bearer token for the WSI API
	EnvToken = "WSI_TOKEN"
)
