// Package watch provides the watch command, which prints the live event
// view of a subscription.
package watch

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/cmd/application"
	"github.com/agentstation/wsi/internal/cmd/output"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/filter"
)

// NewCommand creates the watch command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Print the live event view",
		Long: `Open a subscription and print its batches as they arrive.

The first batch is the full view. Later batches carry the events touched
by one server update; closed events and events leaving the filter are
listed with their final state.`,
		Example: `  # Watch every visible event
  wsi watch

  # Watch with a filter and stop after the first view
  wsi watch --filter-file alarms.yaml --count 1 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app)
		},
	}

	cmd.Flags().String("filter-file", "", "YAML or JSON event filter")
	cmd.Flags().Int("count", 0, "Stop after this many batches (0 watches until interrupted)")

	return cmd
}

func run(cmd *cobra.Command, app application.Application) error {
	ctx := cmd.Context()
	logger := app.Logger()

	format, err := output.ParseFormat(string(output.DetectFormat(app.OutputFormat())))
	if err != nil {
		return err
	}
	filterFile, err := cmd.Flags().GetString("filter-file")
	if err != nil {
		return err
	}
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}
	if count < 0 {
		return errors.NewValidationError("count", count, "must not be negative")
	}

	opt := wsi.NewConsumer()
	if filterFile != "" {
		f, err := filter.Load(filterFile)
		if err != nil {
			return err
		}
		opt = wsi.WithFilter(f)
	}

	client, err := app.Client(ctx)
	if err != nil {
		return err
	}
	sub, err := client.CreateSubscription(ctx, opt)
	if err != nil {
		return fmt.Errorf("creating subscription: %w", err)
	}
	defer func() {
		if err := client.DestroySubscription(context.WithoutCancel(ctx), sub.ID); err != nil {
			logger.Warn().Err(err).Int("subscription_id", sub.ID).Msg("Destroying watch subscription failed")
		}
	}()
	logger.Debug().Int("subscription_id", sub.ID).Str("format", string(format)).Msg("Watching events")

	batches := sub.Events()
	defer batches.Cancel()

	out := cmd.OutOrStdout()
	for n := 0; count == 0 || n < count; n++ {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches.C():
			if !ok {
				return batches.Err()
			}
			if err := output.WriteBatch(out, format, batch); err != nil {
				return err
			}
		}
	}
	return nil
}
