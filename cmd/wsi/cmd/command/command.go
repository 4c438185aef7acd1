// Package command provides the command command, which sends an event
// command for events of the live view.
package command

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/cmd/application"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
)

const pollInterval = 100 * time.Millisecond

// NewCommand creates the command command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "command <command-id> <event-id>...",
		GroupID: "core",
		Short:   "Send an event command",
		Long: `Send a command such as an acknowledgement for one or more events.

The events are looked up in the shared view, waiting up to --wait for
them to arrive. One bulk command is sent per source system.`,
		Example: `  # Acknowledge two events
  wsi command ACK 4711 4712

  # Open the treatment of an event
  wsi command TREAT 4711 --treatment-type automatic`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, args[0], args[1:])
		},
	}

	cmd.Flags().String("treatment-type", "", "Treatment type sent with the command")
	cmd.Flags().Duration("wait", constants.FirstBatchTimeout, "How long to wait for the events to appear")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, commandID string, ids []string) error {
	ctx := cmd.Context()
	logger := app.Logger()

	treatment, err := cmd.Flags().GetString("treatment-type")
	if err != nil {
		return err
	}
	wait, err := cmd.Flags().GetDuration("wait")
	if err != nil {
		return err
	}

	client, err := app.Client(ctx)
	if err != nil {
		return err
	}
	// Holding the shared subscription keeps the server subscription open.
	sub, err := client.CreateSubscription(ctx)
	if err != nil {
		return fmt.Errorf("acquiring subscription: %w", err)
	}
	defer func() {
		if err := client.DestroySubscription(context.WithoutCancel(ctx), sub.ID); err != nil {
			logger.Warn().Err(err).Msg("Releasing subscription failed")
		}
	}()

	evs, err := awaitEvents(ctx, client, sub.ID, ids, wait)
	if err != nil {
		return err
	}

	var opts []wsi.CommandOption
	if treatment != "" {
		opts = append(opts, wsi.WithTreatmentType(treatment))
	}
	if err := client.EventCommand(ctx, evs, commandID, opts...); err != nil {
		return err
	}

	logger.Info().Str("command_id", commandID).Strs("events", ids).Msg("Command sent")
	fmt.Fprintf(cmd.OutOrStdout(), "%s sent for %d events\n", commandID, len(evs))
	return nil
}

// awaitEvents polls the view of subscription id until it holds every id.
func awaitEvents(ctx context.Context, client wsi.Client, id int, ids []string, wait time.Duration) ([]events.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		view, _ := client.View(id)
		evs, missing := pick(view, ids)
		if missing == "" {
			return evs, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.NewNotFoundError("event", missing)
		case <-ticker.C:
		}
	}
}

// pick returns the events of view named by ids, in ids order, or the
// first id that is missing.
func pick(view []events.Event, ids []string) ([]events.Event, string) {
	out := make([]events.Event, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(view, func(ev events.Event) bool { return ev.ID == id })
		if i < 0 {
			return nil, id
		}
		out = append(out, view[i])
	}
	return out, ""
}
