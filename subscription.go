package wsi

import (
	"context"
	"slices"

	"github.com/agentstation/wsi/pkg/broadcast"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/filter"
)

// Compile-time interface check to ensure proper implementation.
var _ Subscriptions = (*client)(nil)

// Subscriptions manages consumer views of the event store.
type Subscriptions interface {
	// CreateSubscription returns the shared default subscription, or a new
	// consumer subscription when a filter or NewConsumer is given.
	CreateSubscription(ctx context.Context, opts ...SubscriptionOption) (*Subscription, error)

	// DestroySubscription releases a subscription. Unknown ids are ignored.
	DestroySubscription(ctx context.Context, id int) error

	// SetFilter replaces a subscription's filter and realigns its view.
	// An unchanged filter is ignored unless force is set.
	SetFilter(ctx context.Context, f filter.EventFilter, id int, force bool) error

	// Realign republishes a subscription's view computed from the whole store.
	Realign(id int)

	// View computes a subscription's current view.
	View(id int) ([]events.Event, bool)

	// Filter returns a subscription's current filter.
	Filter(id int) (filter.EventFilter, bool)
}

// EventBatch is one publication on a subscription's events channel.
// A realigned batch replaces the consumer's list; otherwise it carries the
// events touched by one pushed batch, and consumers drop those that are
// closed or ClosedForFilter.
type EventBatch struct {
	Events    []events.Event `json:"events"`
	Realigned bool           `json:"realigned"`
}

// Apply merges the batch into list and returns the new, sorted list.
func (b EventBatch) Apply(list []events.Event) []events.Event {
	if b.Realigned {
		return slices.Clone(b.Events)
	}
	index := make(map[string]int, len(list))
	out := slices.Clone(list)
	for i := range out {
		index[out[i].ID] = i
	}
	drop := make(map[string]bool)
	for _, ev := range b.Events {
		visible := !ev.IsClosed() && !ev.ClosedForFilter
		if i, ok := index[ev.ID]; ok {
			if visible {
				out[i] = ev
				delete(drop, ev.ID)
			} else {
				drop[ev.ID] = true
			}
			continue
		}
		if visible {
			index[ev.ID] = len(out)
			out = append(out, ev)
		}
	}
	if len(drop) > 0 {
		out = slices.DeleteFunc(out, func(ev events.Event) bool { return drop[ev.ID] })
	}
	sortEvents(out)
	return out
}

// Subscription is one consumer's view. It holds no events, only a filter
// and the channels the view is published on.
type Subscription struct {
	ID int

	events *broadcast.Subject[EventBatch]
	filter *broadcast.Subject[filter.EventFilter]
	conn   *broadcast.Subject[ConnectionState]

	// guarded by client.mu
	current  filter.EventFilter
	refs     int
	hasError bool
}

func newSubscription(id int, f filter.EventFilter) *Subscription {
	s := &Subscription{
		ID:      id,
		events:  broadcast.NewSubject[EventBatch](),
		filter:  broadcast.NewSubject[filter.EventFilter](),
		conn:    broadcast.NewSubject[ConnectionState](),
		current: f.Normalize(),
	}
	_ = s.filter.Publish(s.current)
	return s
}

// Events attaches a receiver of view batches. The latest batch is replayed.
func (s *Subscription) Events() *broadcast.Receiver[EventBatch] {
	return s.events.Subscribe()
}

// Filters attaches a receiver of filter changes.
func (s *Subscription) Filters() *broadcast.Receiver[filter.EventFilter] {
	return s.filter.Subscribe()
}

// ConnectionStates attaches a receiver of connection transitions.
func (s *Subscription) ConnectionStates() *broadcast.Receiver[ConnectionState] {
	return s.conn.Subscribe()
}

// Err returns the unrecoverable error that terminated the subscription.
func (s *Subscription) Err() error {
	return s.events.Err()
}

func (s *Subscription) fail(err error) {
	s.events.Fail(err)
	s.filter.Fail(err)
	s.conn.Fail(err)
}

func (s *Subscription) close() {
	s.events.Close()
	s.filter.Close()
	s.conn.Close()
}

// SubscriptionOption configures CreateSubscription.
type SubscriptionOption func(*subscriptionConfig)

type subscriptionConfig struct {
	filter      *filter.EventFilter
	newConsumer bool
}

// WithFilter creates a consumer subscription with f.
func WithFilter(f filter.EventFilter) SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.filter = &f
	}
}

// NewConsumer forces a new consumer subscription even without a filter.
func NewConsumer() SubscriptionOption {
	return func(c *subscriptionConfig) {
		c.newConsumer = true
	}
}

// CreateSubscription implements Subscriptions.
func (c *client) CreateSubscription(ctx context.Context, opts ...SubscriptionOption) (*Subscription, error) {
	var cfg subscriptionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	var sub *Subscription
	if cfg.filter == nil && !cfg.newConsumer {
		sub = c.acquireDefaultLocked()
	} else {
		f := filter.EventFilter{}
		if cfg.filter != nil {
			f = *cfg.filter
		}
		sub = newSubscription(c.nextSubID, f)
		c.nextSubID++
		c.subs[sub.ID] = sub
		_ = sub.conn.Publish(c.state)
		c.realignLocked(sub)
		c.options.metrics.SetSubscriptions(len(c.subs))
	}
	resubscribe, includeHidden := c.reopenLocked()
	c.mu.Unlock()

	if resubscribe {
		if err := c.transport.Subscribe(ctx, includeHidden); err != nil {
			return sub, errors.WrapResource("subscribe", "events", "", err)
		}
	}
	c.logger.Debug().Int("subscription_id", sub.ID).Bool("resubscribed", resubscribe).Msg("Subscription acquired")
	return sub, nil
}

// acquireDefaultLocked returns the default subscription with one more
// reference, rebuilding it when a failed unsubscribe poisoned it.
func (c *client) acquireDefaultLocked() *Subscription {
	sub := c.subs[constants.DefaultSubscriptionID]
	if sub.hasError {
		sub = newSubscription(constants.DefaultSubscriptionID, sub.current)
		c.subs[sub.ID] = sub
		_ = sub.conn.Publish(c.state)
		c.realignLocked(sub)
	}
	sub.refs++
	c.released = false
	return sub
}

// reopenLocked undoes a transport unsubscribe once a subscription is
// created again. It reports whether to subscribe now; while disconnected
// the supervisor subscribes on reconnect.
func (c *client) reopenLocked() (resubscribe, includeHidden bool) {
	if !c.unsubscribed {
		return false, false
	}
	c.unsubscribed = false
	return c.state == Connected, c.subs[constants.DefaultSubscriptionID].current.HiddenEvents
}

// DestroySubscription implements Subscriptions.
func (c *client) DestroySubscription(ctx context.Context, id int) error {
	c.mu.Lock()
	sub, ok := c.subs[id]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Int("subscription_id", id).Msg("Destroy of unknown subscription ignored")
		return nil
	}

	if id == constants.DefaultSubscriptionID {
		if sub.refs == 0 {
			c.mu.Unlock()
			c.logger.Debug().Msg("Destroy of unacquired default subscription ignored")
			return nil
		}
		sub.refs--
		if sub.refs == 0 {
			c.released = true
		}
	} else {
		delete(c.subs, id)
		sub.close()
		c.options.metrics.SetSubscriptions(len(c.subs))
	}

	unsubscribe := c.released && !c.unsubscribed && len(c.subs) == 1
	if unsubscribe {
		c.unsubscribed = true
	}
	def := c.subs[constants.DefaultSubscriptionID]
	c.mu.Unlock()

	if !unsubscribe {
		return nil
	}

	if err := c.transport.Unsubscribe(ctx); err != nil {
		err = errors.WrapResource("unsubscribe", "events", "", err)
		c.logger.Error().Err(err).Msg("Unsubscribe failed, failing default subscription")
		c.mu.Lock()
		def.hasError = true
		c.mu.Unlock()
		def.fail(err)
		return err
	}
	c.logger.Debug().Msg("Unsubscribed from server events")
	return nil
}

// SetFilter implements Subscriptions.
func (c *client) SetFilter(ctx context.Context, f filter.EventFilter, id int, force bool) error {
	c.mu.Lock()
	sub, ok := c.subs[id]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Int("subscription_id", id).Msg("SetFilter on unknown subscription ignored")
		return nil
	}
	toggled, changed := c.setFilterLocked(sub, f, force)
	c.mu.Unlock()

	if !changed || !toggled {
		return nil
	}
	c.logger.Debug().Bool("include_hidden", f.HiddenEvents).Msg("Hidden events toggled, resubscribing")
	if err := c.transport.Subscribe(ctx, f.HiddenEvents); err != nil {
		return errors.WrapResource("subscribe", "events", "", err)
	}
	return nil
}

// setFilterLocked stores f, publishes it and realigns. toggled reports a
// hidden-events change on the default subscription.
func (c *client) setFilterLocked(sub *Subscription, f filter.EventFilter, force bool) (toggled, changed bool) {
	f = f.Normalize()
	if !force && sub.current.Equal(f) {
		return false, false
	}
	toggled = sub.ID == constants.DefaultSubscriptionID && sub.current.HiddenEvents != f.HiddenEvents
	sub.current = f
	_ = sub.filter.Publish(f)
	c.realignLocked(sub)
	if toggled {
		c.hiddenToggled = true
	}
	return toggled, true
}

// Realign implements Subscriptions.
func (c *client) Realign(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[id]; ok {
		c.realignLocked(sub)
	}
}

// View implements Subscriptions.
func (c *client) View(id int) ([]events.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	if !ok {
		return nil, false
	}
	return c.viewLocked(sub), true
}

// Filter implements Subscriptions.
func (c *client) Filter(id int) (filter.EventFilter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[id]
	if !ok {
		return filter.EventFilter{}, false
	}
	return sub.current, true
}

// viewLocked evaluates every stored event against sub's filter starting
// from a clean snapshot. For the default subscription the store's
// ClosedForFilter markers are refreshed on the way.
func (c *client) viewLocked(sub *Subscription) []events.Event {
	view := make([]events.Event, 0, len(c.store))
	for _, ev := range c.store {
		snap := ev.Snapshot()
		snap.ClosedForFilter = false
		visible := c.evaluator.Matches(&snap, &sub.current, sub.ID)
		if sub.ID == constants.DefaultSubscriptionID {
			ev.ClosedForFilter = !visible
		}
		if visible {
			view = append(view, snap)
		}
	}
	sortEvents(view)
	return view
}

func (c *client) realignLocked(sub *Subscription) {
	view := c.viewLocked(sub)
	_ = sub.events.Publish(EventBatch{Events: view, Realigned: true})
	c.logger.Debug().Int("subscription_id", sub.ID).Int("view_size", len(view)).Msg("Realigned")
}

func sortEvents(list []events.Event) {
	slices.SortFunc(list, func(a, b events.Event) int {
		switch {
		case events.Less(&a, &b):
			return -1
		case events.Less(&b, &a):
			return 1
		}
		return 0
	})
}
