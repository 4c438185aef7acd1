package command

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/cmd/application"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeTransport struct {
	events chan []events.Record
	states chan wsi.ConnectionState

	mu       sync.Mutex
	commands []wsi.CommandRequest
}

func (f *fakeTransport) Events() <-chan []events.Record              { return f.events }
func (f *fakeTransport) ConnectionState() <-chan wsi.ConnectionState { return f.states }
func (f *fakeTransport) Subscribe(context.Context, bool) error       { return nil }
func (f *fakeTransport) Unsubscribe(context.Context) error           { return nil }

func (f *fakeTransport) PostCommand(_ context.Context, req wsi.CommandRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, req)
	return nil
}

func (f *fakeTransport) sent() []wsi.CommandRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wsi.CommandRequest(nil), f.commands...)
}

func record(id string) events.Record {
	return events.Record{
		ID:           id,
		CategoryID:   1,
		State:        "Unprocessed",
		SrcState:     "Active",
		SrcSystemID:  1,
		CreationTime: testNow.Add(-10 * time.Minute).Format(time.RFC3339Nano),
	}
}

func newTestApp(t *testing.T) (*application.Mock, *fakeTransport) {
	t.Helper()
	logger := zerolog.Nop()
	tr := &fakeTransport{events: make(chan []events.Record), states: make(chan wsi.ConnectionState)}
	client, err := wsi.New(tr,
		wsi.WithLogger(&logger),
		wsi.WithClock(func() time.Time { return testNow }),
		wsi.WithLoginTime(testNow.Add(-time.Hour)),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = client.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = client.Close()
	})

	tr.states <- wsi.Connected
	tr.events <- []events.Record{record("E1"), record("E2")}
	require.Eventually(t, func() bool {
		view, _ := client.View(constants.DefaultSubscriptionID)
		return len(view) == 2
	}, time.Second, 5*time.Millisecond)

	return &application.Mock{
		ClientFunc: func(context.Context) (wsi.Client, error) { return client, nil },
	}, tr
}

func execute(app application.Application, args ...string) (string, error) {
	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandSends(t *testing.T) {
	app, tr := newTestApp(t)

	out, err := execute(app, "ACK", "E1", "E2", "--treatment-type", "manual")
	require.NoError(t, err)
	assert.Equal(t, "ACK sent for 2 events\n", out)

	sent := tr.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ACK", sent[0].CommandID)
	assert.ElementsMatch(t, []string{"E1", "E2"}, sent[0].EventIDs)
	assert.Equal(t, "manual", sent[0].TreatmentType)
}

func TestCommandMissingEvent(t *testing.T) {
	app, tr := newTestApp(t)

	_, err := execute(app, "ACK", "E1", "E9", "--wait", "50ms")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Empty(t, tr.sent())
}

func TestCommandArgs(t *testing.T) {
	_, err := execute(&application.Mock{}, "ACK")
	assert.Error(t, err)
}

func TestPick(t *testing.T) {
	view := []events.Event{{ID: "A"}, {ID: "B"}, {ID: "C"}}

	got, missing := pick(view, []string{"C", "A"})
	assert.Empty(t, missing)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].ID)
	assert.Equal(t, "A", got[1].ID)

	got, missing = pick(view, []string{"A", "X"})
	assert.Nil(t, got)
	assert.Equal(t, "X", missing)
}
