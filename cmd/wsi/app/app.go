// Package app provides the application context and dependency management
// for the wsi CLI: configuration, logging, metrics and the lazily started
// event client with its transport.
package app

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/cmd/application"
	"github.com/agentstation/wsi/internal/lookup"
	"github.com/agentstation/wsi/internal/metrics"
	"github.com/agentstation/wsi/internal/notify"
	"github.com/agentstation/wsi/internal/transport"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/filter"
)

var _ application.Application = (*App)(nil)

// App represents the wsi application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config     *Config
	configFile string // --config flag
	logger     *zerolog.Logger
	metrics    *metrics.Collector

	// Event client (lazy-initialized, singleton)
	mu     sync.Mutex
	client wsi.Client
	mqtt   mqtt.Client
	group  *errgroup.Group
	cancel context.CancelFunc
}

// Option customizes an App.
type Option func(*App) error

// WithConfig replaces the loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithClient injects a ready event client; the app does not start a
// transport for it.
func WithClient(c wsi.Client) Option {
	return func(a *App) error {
		a.client = c
		return nil
	}
}

// New creates a new App instance with the given version information and
// the configuration found in the environment.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		metrics: metrics.New(),
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	logger := NewLogger(app.config)
	app.logger = &logger
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Metrics returns the Prometheus collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string { return a.config.Format }

// Client returns the event client, starting it on first use: the lookup
// tables are loaded, the notification sinks connected and the push
// transport dialed. ctx bounds the startup only.
func (a *App) Client(ctx context.Context) (wsi.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}

	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	rest := transport.New(a.config.URL,
		transport.WithAuth(&transport.BearerAuth{Token: a.config.Token}),
		transport.WithTimeout(a.config.Timeout),
		transport.WithLogger(a.logger),
	)
	pushURL := a.config.PushURL
	if pushURL == "" {
		var err error
		if pushURL, err = rest.PushURL(); err != nil {
			return nil, err
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, constants.StartupTimeout)
	defer cancel()

	tables, err := lookup.Load(startCtx, rest, a.logger)
	if err != nil {
		return nil, err
	}

	sinks := notify.Multi{notify.NewLogSink(a.logger)}
	if a.config.MQTT.Broker != "" {
		mc, err := notify.Connect(startCtx, a.config.MQTT, a.logger)
		if err != nil {
			return nil, err
		}
		a.mqtt = mc
		sinks = append(sinks, notify.NewMQTTSink(mc, a.config.MQTT.Topic, a.logger))
	}

	push := transport.NewPush(rest, pushURL, transport.WithPushLogger(a.logger))
	client, err := wsi.New(push,
		wsi.WithLogger(a.logger),
		wsi.WithCategories(tables.Categories),
		wsi.WithIcons(tables.Icons),
		wsi.WithNotificationSink(sinks),
		wsi.WithMetrics(a.metrics),
		wsi.WithAutoRemoveFilter(a.config.AutoRemoveFilter),
		wsi.WithGrouping(events.ParseGrouping(a.config.Grouping)),
		wsi.WithWebClientName(a.config.WebClientName),
		wsi.WithLoginTime(time.Now()),
		wsi.WithInitialFilter(filter.EventFilter{HiddenEvents: a.config.IncludeHidden}),
	)
	if err != nil {
		return nil, err
	}

	// The client outlives ctx: it runs until Shutdown.
	runCtx, stop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		err := push.Run(gctx)
		if err != nil && gctx.Err() == nil {
			a.logger.Error().Err(err).Str("url", pushURL).Msg("Push transport stopped")
		}
		return err
	})
	g.Go(func() error {
		return client.Run(gctx)
	})

	a.logger.Info().
		Str("url", a.config.URL).
		Str("push_url", pushURL).
		Int("categories", len(tables.Categories.All())).
		Bool("mqtt", a.mqtt != nil).
		Msg("Event client started")

	a.client = client
	a.group = g
	a.cancel = stop
	return client, nil
}

// Shutdown stops the event client and its transport and disconnects the
// notification broker.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	client, group, cancel, mc := a.client, a.group, a.cancel, a.mqtt
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		_ = client.Close()
	}
	if group != nil {
		done := make(chan struct{})
		go func() {
			_ = group.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return errors.NewTimeoutError("shutdown", "", "event client did not stop")
		}
	}
	if mc != nil {
		mc.Disconnect(250)
	}
	return nil
}
