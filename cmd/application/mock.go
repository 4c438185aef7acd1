package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/metrics"
)

// Mock is a test Application. Unset funcs return zero values, a Nop
// logger and the "table" output format.
type Mock struct {
	ClientFunc       func(ctx context.Context) (wsi.Client, error)
	MetricsFunc      func() *metrics.Collector
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

func (m *Mock) Client(ctx context.Context) (wsi.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc(ctx)
	}
	return nil, nil
}

func (m *Mock) Metrics() *metrics.Collector {
	if m.MetricsFunc != nil {
		return m.MetricsFunc()
	}
	return nil
}

func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

var _ Application = (*Mock)(nil)
