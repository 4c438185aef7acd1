// Package notify delivers event alerts to operators: to the log, to an
// MQTT broker, or to several sinks at once.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/pkg/errors"
)

// Compile-time interface checks.
var (
	_ wsi.NotificationSink = (*LogSink)(nil)
	_ wsi.NotificationSink = Multi(nil)
)

// LogSink writes alerts to a logger. It is the fallback when no broker
// is configured.
type LogSink struct {
	logger *zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify implements wsi.NotificationSink.
func (s *LogSink) Notify(_ context.Context, senderID string, n wsi.Notification) error {
	s.logger.Info().
		Str("sender_id", senderID).
		Str("event_id", n.EventID).
		Str("title", n.Title).
		Str("color", n.Color).
		Bool("back_to_normal", n.BackToNormal).
		Msg(n.Body)
	return nil
}

// Cancel implements wsi.NotificationSink.
func (s *LogSink) Cancel(_ context.Context, senderID, eventID string) error {
	s.logger.Debug().Str("sender_id", senderID).Str("event_id", eventID).Msg("Notification cancelled")
	return nil
}

// CancelAll implements wsi.NotificationSink.
func (s *LogSink) CancelAll(_ context.Context, senderID string) error {
	s.logger.Debug().Str("sender_id", senderID).Msg("All notifications cancelled")
	return nil
}

// Multi fans out to every sink. A failing sink does not stop the others.
type Multi []wsi.NotificationSink

// Notify implements wsi.NotificationSink.
func (m Multi) Notify(ctx context.Context, senderID string, n wsi.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, senderID, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cancel implements wsi.NotificationSink.
func (m Multi) Cancel(ctx context.Context, senderID, eventID string) error {
	var errs []error
	for _, s := range m {
		if err := s.Cancel(ctx, senderID, eventID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CancelAll implements wsi.NotificationSink.
func (m Multi) CancelAll(ctx context.Context, senderID string) error {
	var errs []error
	for _, s := range m {
		if err := s.CancelAll(ctx, senderID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
