// Package wsi keeps an in-memory store of building-management events
// pushed by a WSI server and serves filtered, incrementally updated views
// of it to any number of consumers.
//
// The client owns the event store and the subscription registry. Every
// mutation, whether a pushed batch, a connection transition or a consumer
// call, runs under a single lock, so operations on subscriptions take
// effect before the next batch is reconciled. Notifications and hooks are
// dispatched after the lock is released.
//
// Example usage:
//
//	client, err := wsi.New(push,
//	    wsi.WithCategories(categories),
//	    wsi.WithNotificationSink(sink),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go client.Run(ctx)
//
//	sub, _ := client.CreateSubscription(ctx, wsi.WithFilter(filter.EventFilter{Categories: []int{1}}))
//	batches := sub.Events()
//	for batch := range batches.C() {
//	    list = batch.Apply(list)
//	}
package wsi

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/filter"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Client is the event service.
type Client interface {
	// Subscriptions manages consumer views
	Subscriptions

	// Commander sends operator commands
	Commander

	// Selection tracks the operator's selected events
	Selection

	// Hooks provides access to event callback registration
	Hooks

	// Lifecycle runs and stops the client
	Lifecycle

	// Blinker returns the shared blink signal for interval.
	Blinker(interval time.Duration) *Blinker

	// GetBlinker returns the shared 500ms blink signal.
	GetBlinker() *Blinker

	// Summary returns the per-category light summary of the default view.
	Summary() Summary
}

// client is the internal implementation of the Client interface.
type client struct {
	options   *options
	transport Transport
	evaluator *filter.Evaluator
	hooks     *hooks
	logger    *zerolog.Logger
	mapOpts   events.Options

	// mu guards everything below
	mu        sync.Mutex
	store     map[string]*events.Event
	subs      map[int]*Subscription
	nextSubID int
	selected  []string
	state     ConnectionState
	// treated holds ids already signalled for automatic treatment. It
	// survives disconnects, unlike store.
	treated map[string]bool

	// gotDisconnected starts out set: the first Connected is handled like
	// a reconnect and issues the initial subscribe.
	gotDisconnected bool
	// discardFirstBatch suppresses notifications for the resync batch.
	discardFirstBatch bool
	// hiddenToggled is set while the default filter's hidden flag just changed.
	hiddenToggled bool
	// released is set once the default subscription's references dropped to zero.
	released     bool
	unsubscribed bool

	blinkMu  sync.Mutex
	blinkers map[time.Duration]*Blinker

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a client reading from transport. The default subscription
// exists from the start with the initial filter.
func New(transport Transport, opts ...Option) (Client, error) {
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		options:   o,
		transport: transport,
		evaluator: filter.NewEvaluator(o.clock),
		hooks:     newHooks(),
		logger:    o.logger,
		mapOpts: events.Options{
			Grouping:      o.grouping,
			WebClientName: o.webClientName,
		},
		store:             make(map[string]*events.Event),
		treated:           make(map[string]bool),
		subs:              make(map[int]*Subscription),
		nextSubID:         constants.DefaultSubscriptionID + 1,
		gotDisconnected:   true,
		discardFirstBatch: true,
		blinkers:          make(map[time.Duration]*Blinker),
		done:              make(chan struct{}),
	}

	def := newSubscription(constants.DefaultSubscriptionID, o.initialFilter)
	_ = def.conn.Publish(Disconnected)
	c.subs[def.ID] = def
	c.options.metrics.SetSubscriptions(len(c.subs))

	c.logger.Debug().
		Bool("auto_remove_filter", o.autoRemoveFilter).
		Time("login_time", o.loginTime).
		Msg("Event client created")

	return c, nil
}

// Hook registration delegates to the hooks registry.

func (c *client) OnNewEvents(fn NewEventsHook)       { c.hooks.OnNewEvents(fn) }
func (c *client) OnBackToNormal(fn BackToNormalHook) { c.hooks.OnBackToNormal(fn) }
func (c *client) OnEventClosed(fn EventClosedHook)   { c.hooks.OnEventClosed(fn) }
func (c *client) OnAutomaticTreatment(fn AutomaticTreatmentHook) {
	c.hooks.OnAutomaticTreatment(fn)
}
func (c *client) OnConnectionState(fn ConnectionStateHook) { c.hooks.OnConnectionState(fn) }
