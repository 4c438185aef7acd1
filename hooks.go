package wsi

import (
	"sync"

	"github.com/agentstation/wsi/pkg/events"
)

// TreatmentSignal asks the UI to open the automatic treatment of Event.
type TreatmentSignal struct {
	Event events.Event

	// HigherThanSelected is set when the event outranks every selected event.
	HigherThanSelected bool

	// NoSelection is set when nothing was selected.
	NoSelection bool
}

// Hook function types for event changes
type (
	// NewEventsHook is called with the events a batch added to the store
	NewEventsHook func(added []events.Event)

	// BackToNormalHook is called when an event's source returns to normal
	BackToNormalHook func(ev events.Event)

	// EventClosedHook is called when a stored event closes
	EventClosedHook func(ev events.Event)

	// AutomaticTreatmentHook is called for events requiring automatic treatment
	AutomaticTreatmentHook func(sig TreatmentSignal)

	// ConnectionStateHook is called on push connection transitions
	ConnectionStateHook func(state ConnectionState)
)

// Hooks provides access to event callback registration. Hooks run on the
// goroutine that processed the batch, after the store lock is released.
type Hooks interface {
	OnNewEvents(fn NewEventsHook)
	OnBackToNormal(fn BackToNormalHook)
	OnEventClosed(fn EventClosedHook)
	OnAutomaticTreatment(fn AutomaticTreatmentHook)
	OnConnectionState(fn ConnectionStateHook)
}

// hooks manages event callbacks
type hooks struct {
	mu                   sync.RWMutex
	onNewEvents          []NewEventsHook
	onBackToNormal       []BackToNormalHook
	onEventClosed        []EventClosedHook
	onAutomaticTreatment []AutomaticTreatmentHook
	onConnectionState    []ConnectionStateHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnNewEvents registers a callback for events added to the store
func (h *hooks) OnNewEvents(fn NewEventsHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onNewEvents = append(h.onNewEvents, fn)
}

// OnBackToNormal registers a callback for back-to-normal transitions
func (h *hooks) OnBackToNormal(fn BackToNormalHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onBackToNormal = append(h.onBackToNormal, fn)
}

// OnEventClosed registers a callback for closed events
func (h *hooks) OnEventClosed(fn EventClosedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEventClosed = append(h.onEventClosed, fn)
}

// OnAutomaticTreatment registers a callback for automatic treatment signals
func (h *hooks) OnAutomaticTreatment(fn AutomaticTreatmentHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAutomaticTreatment = append(h.onAutomaticTreatment, fn)
}

// OnConnectionState registers a callback for connection transitions
func (h *hooks) OnConnectionState(fn ConnectionStateHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnectionState = append(h.onConnectionState, fn)
}

// trigger fires the callbacks for the outcome of one batch.
func (h *hooks) trigger(fx *effects) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(fx.added) > 0 {
		for _, fn := range h.onNewEvents {
			fn(fx.added)
		}
	}
	for _, ev := range fx.backToNormal {
		for _, fn := range h.onBackToNormal {
			fn(ev)
		}
	}
	for _, ev := range fx.closed {
		for _, fn := range h.onEventClosed {
			fn(ev)
		}
	}
	for _, sig := range fx.treatments {
		for _, fn := range h.onAutomaticTreatment {
			fn(sig)
		}
	}
}

func (h *hooks) triggerConnectionState(state ConnectionState) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onConnectionState {
		fn(state)
	}
}
