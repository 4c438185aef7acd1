package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

// WithLogger stores logger in ctx. A nil logger stores the default one.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

// Ctx is short for FromContext.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx)
}

// WithRequestID stores the HTTP request id and adds it to the logger.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return WithField(ctx, "request_id", requestID)
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithFields adds fields to the logger in ctx.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	logCtx := FromContext(ctx).With()
	for key, value := range fields {
		logCtx = addFieldToContext(logCtx, key, value)
	}
	logger := logCtx.Logger()
	return WithLogger(ctx, &logger)
}

// WithField adds one field to the logger in ctx.
func WithField(ctx context.Context, key string, value any) context.Context {
	logger := addFieldToContext(FromContext(ctx).With(), key, value).Logger()
	return WithLogger(ctx, &logger)
}

func addFieldToContext(logCtx zerolog.Context, key string, value any) zerolog.Context {
	switch v := value.(type) {
	case string:
		return logCtx.Str(key, v)
	case int:
		return logCtx.Int(key, v)
	case int64:
		return logCtx.Int64(key, v)
	case bool:
		return logCtx.Bool(key, v)
	case float64:
		return logCtx.Float64(key, v)
	case error:
		if key == "error" {
			return logCtx.Err(v)
		}
		return logCtx.Str(key, v.Error())
	default:
		return logCtx.Interface(key, v)
	}
}

// WithSubscription tags the logger with a consumer subscription id.
func WithSubscription(ctx context.Context, id int) context.Context {
	return WithField(ctx, "subscription_id", id)
}

// WithEventID tags the logger with an event id.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return WithField(ctx, "event_id", eventID)
}

// WithSystem tags the logger with a source system id.
func WithSystem(ctx context.Context, systemID string) context.Context {
	return WithField(ctx, "system_id", systemID)
}

// WithOperation tags the logger with the running operation.
func WithOperation(ctx context.Context, operation string) context.Context {
	return WithField(ctx, "operation", operation)
}

// WithError tags the logger with err. A nil err leaves ctx unchanged.
func WithError(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	return WithField(ctx, "error", err)
}
