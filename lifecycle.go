package wsi

import (
	"context"
	"maps"
	"slices"
)

// Lifecycle runs and stops the client.
type Lifecycle interface {
	// Run consumes the transport until ctx is done, Close is called or the
	// transport's event channel closes.
	Run(ctx context.Context) error

	// Close stops Run and the blinkers and closes every subscription.
	Close() error
}

// Run implements Lifecycle.
func (c *client) Run(ctx context.Context) error {
	batches := c.transport.Events()
	states := c.transport.ConnectionState()

	c.logger.Info().Msg("Event client running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			c.handleConnectionState(ctx, st)
		case records, ok := <-batches:
			if !ok {
				c.logger.Info().Msg("Transport closed its event stream")
				return nil
			}
			c.handleBatch(ctx, records)
		}
	}
}

// handleConnectionState is the connection supervisor. A disconnect clears
// the store; the following connect re-arms the resync guard and
// resubscribes.
func (c *client) handleConnectionState(ctx context.Context, st ConnectionState) {
	c.mu.Lock()
	if st == c.state && !(st == Connected && c.gotDisconnected) {
		c.mu.Unlock()
		return
	}
	c.state = st

	resubscribe, includeHidden := false, false
	switch st {
	case Disconnected:
		c.gotDisconnected = true
		clear(c.store)
		c.options.metrics.SetStoreSize(0)
		for _, id := range slices.Sorted(maps.Keys(c.subs)) {
			sub := c.subs[id]
			_ = sub.conn.Publish(st)
			_ = sub.events.Publish(EventBatch{Realigned: true})
		}
	case Connected:
		if c.gotDisconnected {
			c.gotDisconnected = false
			c.discardFirstBatch = true
			resubscribe = !c.unsubscribed
			includeHidden = c.subs[0].current.HiddenEvents
		}
		for _, sub := range c.subs {
			_ = sub.conn.Publish(st)
		}
	}
	c.options.metrics.SetConnected(st == Connected)
	c.mu.Unlock()

	c.logger.Info().Str("connection_state", st.String()).Msg("Connection state changed")
	if resubscribe {
		if err := c.transport.Subscribe(ctx, includeHidden); err != nil {
			c.logger.Error().Err(err).Msg("Subscribe after connect failed")
		}
	}
	c.hooks.triggerConnectionState(st)
}

// Close implements Lifecycle.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		for _, sub := range c.subs {
			sub.close()
		}
		c.mu.Unlock()
		c.blinkMu.Lock()
		for _, b := range c.blinkers {
			b.subject.Close()
		}
		c.blinkMu.Unlock()
		c.logger.Debug().Msg("Event client closed")
	})
	return nil
}
