package handlers

import (
	"net/http"
	"strconv"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/server/filter"
	"github.com/agentstation/wsi/internal/server/response"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
)

// EventsResponse is the current view of a subscription.
type EventsResponse struct {
	Subscription *int           `json:"subscription,omitempty"`
	Count        int            `json:"count"`
	Events       []events.Event `json:"events"`
}

// HandleEvents handles GET /api/v1/events.
// @Summary Current events
// @Description The view of ?subscription=N (default 0). Filter query
// @Description parameters evaluate an ad-hoc filter over the whole store instead.
// @Tags events
// @Produce json
// @Param subscription query int false "Subscription id"
// @Success 200 {object} response.Response{data=EventsResponse}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/events [get].
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if filter.HasFilter(q) {
		h.handleAdHocEvents(w, r)
		return
	}

	id := constants.DefaultSubscriptionID
	if v := q.Get("subscription"); v != "" {
		var err error
		if id, err = ParseID("subscription", v); err != nil {
			response.ErrorFromType(w, err)
			return
		}
	}

	view, ok := h.client.View(id)
	if !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("subscription", strconv.Itoa(id)))
		return
	}
	response.OK(w, EventsResponse{Subscription: &id, Count: len(view), Events: nonNil(view)})
}

// handleAdHocEvents evaluates a filter through a short-lived subscription.
func (h *Handlers) handleAdHocEvents(w http.ResponseWriter, r *http.Request) {
	f, err := filter.Parse(r.URL.Query())
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	sub, err := h.client.CreateSubscription(r.Context(), wsi.WithFilter(f))
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	defer func() {
		if err := h.client.DestroySubscription(h.ctx, sub.ID); err != nil {
			h.logger.Warn().Err(err).Int("subscription_id", sub.ID).Msg("Failed to release ad-hoc subscription")
		}
	}()

	view, _ := h.client.View(sub.ID)
	response.OK(w, EventsResponse{Count: len(view), Events: nonNil(view)})
}

// HandleSummary handles GET /api/v1/summary.
// @Summary Category summary
// @Description Per-category counts of the default view, most severe first
// @Tags events
// @Produce json
// @Success 200 {object} response.Response{data=wsi.Summary}
// @Router /api/v1/summary [get].
func (h *Handlers) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, h.client.Summary())
}

func nonNil(list []events.Event) []events.Event {
	if list == nil {
		return []events.Event{}
	}
	return list
}
