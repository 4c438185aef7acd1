package handlers

import (
	"net/http"
	"strconv"

	"github.com/agentstation/wsi"
	qfilter "github.com/agentstation/wsi/internal/server/filter"
	"github.com/agentstation/wsi/internal/server/response"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/filter"
	"github.com/agentstation/wsi/pkg/logging"
)

// SubscriptionResponse describes a subscription.
type SubscriptionResponse struct {
	ID     int                `json:"id"`
	Filter filter.EventFilter `json:"filter"`
}

// requestFilter reads a filter from the JSON body or, without a body,
// from the query parameters. ok is false when neither is present.
func requestFilter(r *http.Request) (f filter.EventFilter, ok bool, err error) {
	ok, err = decodeJSON(r, &f)
	if err != nil || ok {
		return f, ok, err
	}
	if q := r.URL.Query(); qfilter.HasFilter(q) {
		f, err = qfilter.Parse(q)
		return f, err == nil, err
	}
	return f, false, nil
}

// HandleCreateSubscription handles POST /api/v1/subscriptions.
// @Summary Create a subscription
// @Description Without a filter and without ?new=true the shared default
// @Description subscription (id 0) is returned with one more reference.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param new query bool false "Force a new consumer subscription"
// @Param filter body filter.EventFilter false "Initial filter"
// @Success 201 {object} response.Response{data=SubscriptionResponse}
// @Router /api/v1/subscriptions [post].
func (h *Handlers) HandleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	f, hasFilter, err := requestFilter(r)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	newConsumer, err := queryBool(r, "new")
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	var opts []wsi.SubscriptionOption
	switch {
	case hasFilter:
		opts = append(opts, wsi.WithFilter(f))
	case newConsumer:
		opts = append(opts, wsi.NewConsumer())
	}

	sub, err := h.client.CreateSubscription(r.Context(), opts...)
	if sub != nil {
		h.subs.Add(sub)
	}
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	current, _ := h.client.Filter(sub.ID)
	logging.Ctx(logging.WithSubscription(h.requestContext(r), sub.ID)).Debug().Msg("Subscription created through the API")
	response.Created(w, SubscriptionResponse{ID: sub.ID, Filter: current})
}

// HandleDestroySubscription handles DELETE /api/v1/subscriptions/{id}.
// @Summary Destroy a subscription
// @Tags subscriptions
// @Success 204
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/subscriptions/{id} [delete].
func (h *Handlers) HandleDestroySubscription(w http.ResponseWriter, r *http.Request, id int) {
	if _, ok := h.client.Filter(id); !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("subscription", strconv.Itoa(id)))
		return
	}
	if err := h.client.DestroySubscription(r.Context(), id); err != nil {
		response.ErrorFromType(w, err)
		return
	}
	h.subs.Remove(id)
	response.NoContent(w)
}

// HandleSetFilter handles PUT /api/v1/subscriptions/{id}/filter.
// @Summary Replace a subscription's filter
// @Description An unchanged filter is ignored unless force is set.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param force query bool false "Realign even when unchanged"
// @Param filter body filter.EventFilter true "New filter"
// @Success 200 {object} response.Response{data=SubscriptionResponse}
// @Router /api/v1/subscriptions/{id}/filter [put].
func (h *Handlers) HandleSetFilter(w http.ResponseWriter, r *http.Request, id int) {
	if _, ok := h.client.Filter(id); !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("subscription", strconv.Itoa(id)))
		return
	}
	f, _, err := requestFilter(r)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	force, err := queryBool(r, "force")
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	ctx := logging.WithSubscription(h.requestContext(r), id)
	if err := h.client.SetFilter(ctx, f, id, force); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Filter change failed")
		response.ErrorFromType(w, err)
		return
	}
	current, _ := h.client.Filter(id)
	response.OK(w, SubscriptionResponse{ID: id, Filter: current})
}

// HandleRealign handles POST /api/v1/subscriptions/{id}/realign.
// @Summary Republish a subscription's full view
// @Tags subscriptions
// @Success 204
// @Router /api/v1/subscriptions/{id}/realign [post].
func (h *Handlers) HandleRealign(w http.ResponseWriter, _ *http.Request, id int) {
	if _, ok := h.client.Filter(id); !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("subscription", strconv.Itoa(id)))
		return
	}
	h.client.Realign(id)
	response.NoContent(w)
}
