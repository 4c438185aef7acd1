package wsi

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/filter"
)

// effects collects what a batch must trigger once the lock is released.
type effects struct {
	notify       bool
	added        []events.Event
	backToNormal []events.Event
	closed       []events.Event
	cancels      []string
	treatments   []TreatmentSignal
	resubscribe  *bool
}

// handleBatch reconciles one pushed batch into the store and publishes
// the resulting views.
func (c *client) handleBatch(ctx context.Context, records []events.Record) {
	start := time.Now()
	fx := c.reconcile(records)
	c.dispatch(ctx, fx)
	c.options.metrics.ObserveBatch(len(records), time.Since(start))
}

func (c *client) reconcile(records []events.Record) *effects {
	c.mu.Lock()
	defer c.mu.Unlock()

	resync := c.discardFirstBatch
	c.discardFirstBatch = false
	fx := &effects{notify: !resync}

	def := c.subs[constants.DefaultSubscriptionID]
	touched := make([]*events.Event, 0, len(records))
	var added []*events.Event

	for i := range records {
		rec := &records[i]
		ev, known := c.store[rec.ID]
		if !known {
			ev = events.FromRecord(rec, c.category(rec.CategoryID), c.icon(rec), c.mapOpts)
			if ev.IsClosed() {
				fx.cancels = append(fx.cancels, ev.ID)
				continue
			}
			c.store[ev.ID] = ev
			ev.ClosedForFilter = !c.evaluator.Matches(ev, &def.current, def.ID)
			added = append(added, ev)
			touched = append(touched, ev)
			continue
		}

		prevSrc, prevState, prevCause, prevCategory := ev.SrcStateID, ev.StateID, ev.Cause, ev.CategoryID
		events.ApplyUpdate(ev, rec, c.mapOpts)
		if ev.CategoryID != prevCategory {
			ev.Category = c.category(ev.CategoryID)
		}
		touched = append(touched, ev)

		if ev.IsClosed() {
			delete(c.store, ev.ID)
			delete(c.treated, ev.ID)
			c.deselectLocked(ev.ID)
			fx.cancels = append(fx.cancels, ev.ID)
			fx.closed = append(fx.closed, ev.Snapshot())
			continue
		}
		if (prevSrc == events.SrcStateActive && ev.SrcStateID == events.SrcStateQuiet) ||
			(prevState == ev.StateID && prevCause != ev.Cause) {
			fx.backToNormal = append(fx.backToNormal, ev.Snapshot())
		}
		ev.ClosedForFilter = !c.evaluator.Matches(ev, &def.current, def.ID)
	}

	for _, ev := range added {
		fx.added = append(fx.added, ev.Snapshot())
	}
	fx.treatments = c.treatmentsLocked(added)

	// Auto-remove replaces the default filter, which realigns that view.
	realigned := map[int]bool{}
	if len(added) > 0 && c.options.autoRemoveFilter && !def.current.IsEmpty() && !c.hiddenToggled {
		c.logger.Debug().Int("new_events", len(added)).Msg("New events arrived, removing default filter")
		if toggled, _ := c.setFilterLocked(def, filter.EventFilter{HiddenEvents: false}, true); toggled {
			include := false
			fx.resubscribe = &include
		}
		realigned[def.ID] = true
	}
	c.hiddenToggled = false

	for _, id := range slices.Sorted(maps.Keys(c.subs)) {
		sub := c.subs[id]
		switch {
		case realigned[id]:
		case resync:
			c.realignLocked(sub)
		case len(touched) > 0:
			_ = sub.events.Publish(EventBatch{Events: c.deltaLocked(sub, touched)})
		}
	}

	c.options.metrics.SetStoreSize(len(c.store))
	c.options.metrics.IncNewEvents(len(added))
	c.options.metrics.IncClosedEvents(len(fx.closed))
	c.logger.Debug().
		Int("batch_size", len(records)).
		Int("added", len(added)).
		Int("closed", len(fx.closed)).
		Int("store_size", len(c.store)).
		Bool("resync", resync).
		Msg("Batch reconciled")
	return fx
}

// deltaLocked evaluates the touched events against sub's filter. Events
// outside the view are flagged ClosedForFilter; closed events pass through.
func (c *client) deltaLocked(sub *Subscription, touched []*events.Event) []events.Event {
	out := make([]events.Event, 0, len(touched))
	for _, ev := range touched {
		snap := ev.Snapshot()
		snap.ClosedForFilter = false
		if !snap.IsClosed() {
			snap.ClosedForFilter = !c.evaluator.Matches(&snap, &sub.current, sub.ID)
		}
		out = append(out, snap)
	}
	return out
}

// treatmentsLocked returns automatic treatment signals for new events
// created after login that outrank the current selection. An event is
// signalled once, so the resync after a reconnect does not repeat it.
func (c *client) treatmentsLocked(added []*events.Event) []TreatmentSignal {
	var top *events.Event
	for _, id := range c.selected {
		if ev, ok := c.store[id]; ok && (top == nil || ev.HigherPriorityThan(top)) {
			top = ev
		}
	}

	var out []TreatmentSignal
	for _, ev := range added {
		if ev.AutomaticTreatment == nil || c.treated[ev.ID] || !ev.OriginalCreationTime.After(c.options.loginTime) {
			continue
		}
		switch {
		case top == nil:
			out = append(out, TreatmentSignal{Event: ev.Snapshot(), NoSelection: true})
		case ev.HigherPriorityThan(top):
			out = append(out, TreatmentSignal{Event: ev.Snapshot(), HigherThanSelected: true})
		default:
			continue
		}
		c.treated[ev.ID] = true
	}
	return out
}

func (c *client) category(id int) *events.Category {
	if c.options.categories == nil {
		return nil
	}
	cat, _ := c.options.categories.Category(id)
	return cat
}

func (c *client) icon(rec *events.Record) string {
	if c.options.icons == nil {
		return ""
	}
	icon, _ := c.options.icons.Icon(rec.SrcDisciplineID, rec.SrcSubDisciplineID)
	return icon
}

// dispatch runs the side effects of a batch outside the lock.
func (c *client) dispatch(ctx context.Context, fx *effects) {
	if sink := c.options.sink; sink != nil {
		for _, id := range fx.cancels {
			c.sinkErr(sink.Cancel(ctx, constants.EventSenderID, id), id)
		}
		if fx.notify {
			for i := range fx.added {
				ev := &fx.added[i]
				c.sinkErr(sink.Notify(ctx, constants.EventSenderID, notification(ev, false)), ev.ID)
			}
			for i := range fx.backToNormal {
				ev := &fx.backToNormal[i]
				c.sinkErr(sink.Notify(ctx, constants.BackToNormalSenderID, notification(ev, true)), ev.ID)
			}
		}
	}

	if fx.resubscribe != nil {
		if err := c.transport.Subscribe(ctx, *fx.resubscribe); err != nil {
			c.logger.Warn().Err(err).Msg("Resubscribe after filter removal failed")
		}
	}

	c.hooks.trigger(fx)
}

func (c *client) sinkErr(err error, eventID string) {
	if err == nil {
		return
	}
	c.options.metrics.IncNotificationErrors()
	c.logger.Warn().Err(err).Str("event_id", eventID).Msg("Notification sink failed")
}

func notification(ev *events.Event, backToNormal bool) Notification {
	n := Notification{
		EventID:      ev.ID,
		Title:        ev.CategoryDescriptor,
		Body:         fmt.Sprintf("%s: %s", ev.SrcDescriptor, ev.Cause),
		BackToNormal: backToNormal,
		Time:         ev.OriginalCreationTime,
	}
	if ev.Category != nil {
		n.Color = ev.Category.ColorFor(ev)
		n.Sound = ev.Category.Sound
	}
	return n
}
