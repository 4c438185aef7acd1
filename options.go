package wsi

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/filter"
	"github.com/agentstation/wsi/pkg/logging"
)

// options holds the client configuration.
type options struct {
	logger           *zerolog.Logger
	categories       CategoryLookup
	icons            IconLookup
	sink             NotificationSink
	metrics          Metrics
	autoRemoveFilter bool
	grouping         events.Grouping
	webClientName    string
	loginTime        time.Time
	clock            func() time.Time
	initialFilter    filter.EventFilter
}

func defaultOptions() *options {
	return &options{
		logger:        logging.Default(),
		metrics:       nopMetrics{},
		webClientName: constants.DefaultWebClientName,
		clock:         time.Now,
	}
}

// Option is a function that configures a Client.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.loginTime.IsZero() {
		o.loginTime = o.clock()
	}
	return o, nil
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return &errors.ValidationError{Field: "logger", Message: "cannot be nil"}
		}
		o.logger = logger
		return nil
	}
}

// WithCategories sets the category lookup used when mapping new events.
func WithCategories(lookup CategoryLookup) Option {
	return func(o *options) error {
		o.categories = lookup
		return nil
	}
}

// WithIcons sets the discipline icon lookup.
func WithIcons(lookup IconLookup) Option {
	return func(o *options) error {
		o.icons = lookup
		return nil
	}
}

// WithNotificationSink sets where new and back-to-normal alerts go.
func WithNotificationSink(sink NotificationSink) Option {
	return func(o *options) error {
		o.sink = sink
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) Option {
	return func(o *options) error {
		if m == nil {
			return &errors.ValidationError{Field: "metrics", Message: "cannot be nil"}
		}
		o.metrics = m
		return nil
	}
}

// WithAutoRemoveFilter clears a non-empty default filter whenever new
// events arrive.
func WithAutoRemoveFilter(enabled bool) Option {
	return func(o *options) error {
		o.autoRemoveFilter = enabled
		return nil
	}
}

// WithGrouping selects how event GroupIDs are derived.
func WithGrouping(g events.Grouping) Option {
	return func(o *options) error {
		o.grouping = g
		return nil
	}
}

// WithWebClientName sets the display name substituted for the web client
// marker in InProcessBy.
func WithWebClientName(name string) Option {
	return func(o *options) error {
		o.webClientName = name
		return nil
	}
}

// WithLoginTime sets the session start. Only events created after it are
// candidates for automatic treatment. Defaults to construction time.
func WithLoginTime(t time.Time) Option {
	return func(o *options) error {
		o.loginTime = t
		return nil
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) error {
		if clock == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.clock = clock
		return nil
	}
}

// WithInitialFilter sets the filter of the default subscription.
func WithInitialFilter(f filter.EventFilter) Option {
	return func(o *options) error {
		o.initialFilter = f.Normalize()
		return nil
	}
}
