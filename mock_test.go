package wsi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi/pkg/events"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type mockTransport struct {
	events chan []events.Record
	states chan ConnectionState

	mu             sync.Mutex
	subscribes     []bool
	unsubscribes   int
	unsubscribeErr error
	commands       []CommandRequest
	commandErr     map[string]error // keyed by first event id
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		events: make(chan []events.Record),
		states: make(chan ConnectionState),
	}
}

func (m *mockTransport) Events() <-chan []events.Record          { return m.events }
func (m *mockTransport) ConnectionState() <-chan ConnectionState { return m.states }

func (m *mockTransport) Subscribe(_ context.Context, includeHidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribes = append(m.subscribes, includeHidden)
	return nil
}

func (m *mockTransport) Unsubscribe(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribes++
	return m.unsubscribeErr
}

func (m *mockTransport) PostCommand(_ context.Context, req CommandRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, req)
	return m.commandErr[req.EventIDs[0]]
}

func (m *mockTransport) subscribeCalls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.subscribes...)
}

type sentNotification struct {
	sender string
	n      Notification
}

type recordingSink struct {
	mu        sync.Mutex
	notified  []sentNotification
	cancelled []string
	err       error
}

func (s *recordingSink) Notify(_ context.Context, senderID string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, sentNotification{sender: senderID, n: n})
	return s.err
}

func (s *recordingSink) Cancel(_ context.Context, _ string, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, eventID)
	return s.err
}

func (s *recordingSink) CancelAll(context.Context, string) error { return nil }

func (s *recordingSink) notifiedIDs(sender string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, n := range s.notified {
		if n.sender == sender {
			ids = append(ids, n.n.EventID)
		}
	}
	return ids
}

type staticCategories map[int]*events.Category

func (s staticCategories) Category(id int) (*events.Category, bool) {
	c, ok := s[id]
	return c, ok
}

func newTestClient(t *testing.T, opts ...Option) (*client, *mockTransport, *recordingSink) {
	t.Helper()
	logger := zerolog.Nop()
	tr := newMockTransport()
	sink := &recordingSink{}
	base := []Option{
		WithLogger(&logger),
		WithClock(func() time.Time { return testNow }),
		WithLoginTime(testNow.Add(-time.Hour)),
		WithNotificationSink(sink),
		WithCategories(staticCategories{
			1: {ID: 1, Descriptor: "Fire", Color: "red"},
			2: {ID: 2, Descriptor: "Fault", Color: "yellow"},
		}),
	}
	c, err := New(tr, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c.(*client), tr, sink
}

// connect brings the client online and consumes the resync batch.
func connect(c *client, initial ...events.Record) {
	c.handleConnectionState(context.Background(), Connected)
	c.handleBatch(context.Background(), initial)
}

func record(id string, category int, state string) events.Record {
	return events.Record{
		ID:           id,
		CategoryID:   category,
		State:        state,
		SrcState:     "Active",
		SrcSystemID:  1,
		CreationTime: testNow.Add(-10 * time.Minute).Format(time.RFC3339Nano),
	}
}

func ids(list []events.Event) []string {
	out := make([]string, 0, len(list))
	for _, ev := range list {
		out = append(out, ev.ID)
	}
	return out
}

func latestBatch(t *testing.T, sub *Subscription) EventBatch {
	t.Helper()
	b, ok := sub.events.Latest()
	require.True(t, ok, "no batch published")
	return b
}
