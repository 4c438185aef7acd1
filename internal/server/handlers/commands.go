package handlers

import (
	"net/http"
	"strconv"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/server/response"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
	"github.com/agentstation/wsi/pkg/logging"
)

// CommandRequest is the body of POST /api/v1/commands. Events are looked
// up in the view of Subscription.
type CommandRequest struct {
	CommandID     string               `json:"commandId"`
	EventIDs      []string             `json:"eventIds"`
	TreatmentType string               `json:"treatmentType,omitempty"`
	Validation    *wsi.ValidationInput `json:"validation,omitempty"`
	Subscription  *int                 `json:"subscription,omitempty"`
}

// SelectionRequest is the body of POST /api/v1/selection.
type SelectionRequest struct {
	EventIDs []string `json:"eventIds"`
}

// HandleCommand handles POST /api/v1/commands.
// @Summary Send an event command
// @Description One bulk command is sent per source system.
// @Tags commands
// @Accept json
// @Produce json
// @Param command body CommandRequest true "Command"
// @Success 202 {object} response.Response{data=object}
// @Failure 400 {object} response.Response{error=response.Error}
// @Failure 404 {object} response.Response{error=response.Error}
// @Failure 502 {object} response.Response{error=response.Error}
// @Router /api/v1/commands [post].
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	ok, err := decodeJSON(r, &req)
	if err == nil && !ok {
		err = errors.NewValidationError("body", nil, "command body required")
	}
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	id := constants.DefaultSubscriptionID
	if req.Subscription != nil {
		id = *req.Subscription
	}
	evs, err := h.lookupEvents(id, req.EventIDs)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	var opts []wsi.CommandOption
	if req.TreatmentType != "" {
		opts = append(opts, wsi.WithTreatmentType(req.TreatmentType))
	}
	if req.Validation != nil {
		opts = append(opts, wsi.WithValidation(*req.Validation))
	}

	if err := h.client.EventCommand(r.Context(), evs, req.CommandID, opts...); err != nil {
		ctx := logging.WithOperation(h.requestContext(r), "event_command")
		logging.Ctx(ctx).Warn().Err(err).Str("command_id", req.CommandID).Msg("Event command failed")
		response.ErrorFromType(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, response.Success(map[string]any{
		"commandId": req.CommandID,
		"events":    len(evs),
	}))
}

// lookupEvents resolves ids against the view of subscription id.
func (h *Handlers) lookupEvents(id int, ids []string) ([]events.Event, error) {
	view, ok := h.client.View(id)
	if !ok {
		return nil, errors.NewNotFoundError("subscription", strconv.Itoa(id))
	}
	byID := make(map[string]events.Event, len(view))
	for _, ev := range view {
		byID[ev.ID] = ev
	}
	out := make([]events.Event, 0, len(ids))
	for _, eventID := range ids {
		ev, ok := byID[eventID]
		if !ok {
			return nil, errors.NewNotFoundError("event", eventID)
		}
		out = append(out, ev)
	}
	return out, nil
}

// HandleSelection handles POST /api/v1/selection.
// @Summary Replace the selected events
// @Description Automatic treatment only opens events that outrank the selection.
// @Tags commands
// @Accept json
// @Produce json
// @Param selection body SelectionRequest true "Selected event ids"
// @Success 200 {object} response.Response{data=SelectionRequest}
// @Router /api/v1/selection [post].
func (h *Handlers) HandleSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if _, err := decodeJSON(r, &req); err != nil {
		response.ErrorFromType(w, err)
		return
	}
	h.client.SelectEvents(req.EventIDs...)
	response.OK(w, SelectionRequest{EventIDs: nonNilIDs(h.client.SelectedEvents())})
}

// HandleGetSelection handles GET /api/v1/selection.
func (h *Handlers) HandleGetSelection(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, SelectionRequest{EventIDs: nonNilIDs(h.client.SelectedEvents())})
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
