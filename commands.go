package wsi

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
)

// Commander sends operator commands for events.
type Commander interface {
	// EventCommand groups evs by source system and sends one bulk command
	// per group concurrently. Errors of all groups are returned.
	EventCommand(ctx context.Context, evs []events.Event, commandID string, opts ...CommandOption) error
}

// CommandOption configures an event command.
type CommandOption func(*CommandRequest)

// WithTreatmentType sets the treatment type of the command.
func WithTreatmentType(t string) CommandOption {
	return func(r *CommandRequest) {
		r.TreatmentType = t
	}
}

// WithValidation attaches operator validation input.
func WithValidation(v ValidationInput) CommandOption {
	return func(r *CommandRequest) {
		r.ValidationInput = &v
	}
}

// EventCommand implements Commander.
func (c *client) EventCommand(ctx context.Context, evs []events.Event, commandID string, opts ...CommandOption) error {
	if commandID == "" {
		return errors.NewValidationError("commandId", commandID, "cannot be empty")
	}
	if len(evs) == 0 {
		return errors.NewValidationError("events", nil, "no events to command")
	}

	bySystem := make(map[int][]string)
	for _, ev := range evs {
		bySystem[ev.SrcSystemID] = append(bySystem[ev.SrcSystemID], ev.ID)
	}

	systems := slices.Sorted(maps.Keys(bySystem))
	errs := make([]error, len(systems))
	var wg sync.WaitGroup
	for i, system := range systems {
		req := CommandRequest{EventIDs: bySystem[system], CommandID: commandID}
		for _, opt := range opts {
			opt(&req)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.transport.PostCommand(ctx, req); err != nil {
				errs[i] = &errors.CommandError{
					SystemID:  strconv.Itoa(system),
					CommandID: commandID,
					EventIDs:  req.EventIDs,
					Err:       err,
				}
			}
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	c.logger.Debug().
		Str("command_id", commandID).
		Int("events", len(evs)).
		Int("systems", len(bySystem)).
		Int("failed", failed).
		Msg("Event command sent")
	return errors.Join(errs...)
}
