package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/internal/server/sse"
	ws "github.com/agentstation/wsi/internal/server/websocket"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeTransport struct {
	events chan []events.Record
	states chan wsi.ConnectionState

	mu         sync.Mutex
	commands   []wsi.CommandRequest
	commandErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan []events.Record),
		states: make(chan wsi.ConnectionState),
	}
}

func (f *fakeTransport) Events() <-chan []events.Record              { return f.events }
func (f *fakeTransport) ConnectionState() <-chan wsi.ConnectionState { return f.states }
func (f *fakeTransport) Subscribe(context.Context, bool) error       { return nil }
func (f *fakeTransport) Unsubscribe(context.Context) error           { return nil }

func (f *fakeTransport) PostCommand(_ context.Context, req wsi.CommandRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, req)
	return f.commandErr
}

func (f *fakeTransport) sent() []wsi.CommandRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wsi.CommandRequest(nil), f.commands...)
}

func record(id string, category int) events.Record {
	return events.Record{
		ID:           id,
		CategoryID:   category,
		State:        "Unprocessed",
		SrcState:     "Active",
		SrcSystemID:  1,
		CreationTime: testNow.Add(-10 * time.Minute).Format(time.RFC3339Nano),
	}
}

type fixture struct {
	h         *Handlers
	client    wsi.Client
	transport *fakeTransport
	connected *atomic.Bool
}

// newFixture runs a real client over a fake transport, connected and
// holding E1 (category 1) and E2 (category 2).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	tr := newFakeTransport()
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
	tr.events <- []events.Record{record("E1", 1), record("E2", 2)}
	require.Eventually(t, func() bool {
		view, _ := client.View(constants.DefaultSubscriptionID)
		return len(view) == 2
	}, time.Second, 5*time.Millisecond)

	def, err := client.CreateSubscription(ctx)
	require.NoError(t, err)

	connected := &atomic.Bool{}
	h := New(Deps{
		Client:         client,
		WSHub:          ws.NewHub(&logger),
		SSEBroadcaster: sse.NewBroadcaster(&logger),
		Connected:      connected.Load,
		Context:        ctx,
		StartTime:      testNow,
		Logger:         &logger,
	})
	h.subs.Add(def)

	return &fixture{h: h, client: client, transport: tr, connected: connected}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func serve(fn http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func eventIDs(list []events.Event) []string {
	out := make([]string, 0, len(list))
	for _, ev := range list {
		out = append(out, ev.ID)
	}
	return out
}

func TestHandleEvents(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantIDs    []string
	}{
		{"default view", "/api/v1/events", http.StatusOK, []string{"E1", "E2"}},
		{"explicit subscription", "/api/v1/events?subscription=0", http.StatusOK, []string{"E1", "E2"}},
		{"ad-hoc filter", "/api/v1/events?category=2", http.StatusOK, []string{"E2"}},
		{"unknown subscription", "/api/v1/events?subscription=42", http.StatusNotFound, nil},
		{"malformed subscription", "/api/v1/events?subscription=x", http.StatusBadRequest, nil},
		{"malformed filter", "/api/v1/events?category=fire", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(f.h.HandleEvents, http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				env := decode(t, rec, nil)
				assert.NotNil(t, env.Error)
				return
			}
			var resp EventsResponse
			decode(t, rec, &resp)
			assert.ElementsMatch(t, tt.wantIDs, eventIDs(resp.Events))
			assert.Equal(t, len(tt.wantIDs), resp.Count)
		})
	}
}

func TestHandleEventsReleasesAdHocSubscription(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.HandleEvents, http.MethodGet, "/api/v1/events?category=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The next consumer id shows whether the ad-hoc one is still open.
	sub, err := f.client.CreateSubscription(context.Background(), wsi.NewConsumer())
	require.NoError(t, err)
	for id := constants.DefaultSubscriptionID + 1; id < sub.ID; id++ {
		_, ok := f.client.Filter(id)
		assert.False(t, ok, "subscription %d still open", id)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.HandleCreateSubscription, http.MethodPost, "/api/v1/subscriptions", `{"categories":[2]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created SubscriptionResponse
	decode(t, rec, &created)
	assert.NotEqual(t, constants.DefaultSubscriptionID, created.ID)
	assert.Equal(t, []int{2}, created.Filter.Categories)

	_, ok := f.h.subs.Get(created.ID)
	assert.True(t, ok, "created subscription is registered for streaming")

	view, ok := f.client.View(created.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"E2"}, eventIDs(view))

	rec = httptest.NewRecorder()
	f.h.HandleSetFilter(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"categories":[1]}`)), created.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated SubscriptionResponse
	decode(t, rec, &updated)
	assert.Equal(t, []int{1}, updated.Filter.Categories)

	rec = httptest.NewRecorder()
	f.h.HandleRealign(rec, httptest.NewRequest(http.MethodPost, "/", nil), created.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	f.h.HandleDestroySubscription(rec, httptest.NewRequest(http.MethodDelete, "/", nil), created.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = f.h.subs.Get(created.ID)
	assert.False(t, ok)

	rec = httptest.NewRecorder()
	f.h.HandleDestroySubscription(rec, httptest.NewRequest(http.MethodDelete, "/", nil), created.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateSubscriptionShared(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.HandleCreateSubscription, http.MethodPost, "/api/v1/subscriptions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var shared SubscriptionResponse
	decode(t, rec, &shared)
	assert.Equal(t, constants.DefaultSubscriptionID, shared.ID)

	rec = serve(f.h.HandleCreateSubscription, http.MethodPost, "/api/v1/subscriptions?new=true", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var consumer SubscriptionResponse
	decode(t, rec, &consumer)
	assert.NotEqual(t, constants.DefaultSubscriptionID, consumer.ID)

	rec = serve(f.h.HandleCreateSubscription, http.MethodPost, "/api/v1/subscriptions?new=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSubscriptionRoutes(t *testing.T) {
	f := newFixture(t)

	for name, fn := range map[string]func(http.ResponseWriter, *http.Request, int){
		"filter":  f.h.HandleSetFilter,
		"realign": f.h.HandleRealign,
		"destroy": f.h.HandleDestroySubscription,
		"ws":      f.h.HandleSubscriptionWebSocket,
		"stream":  f.h.HandleSubscriptionSSE,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fn(rec, httptest.NewRequest(http.MethodGet, "/", strings.NewReader(`{}`)), 99)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		commandErr error
		wantStatus int
		wantSent   int
	}{
		{"accepted", `{"commandId":"Ack","eventIds":["E1","E2"],"treatmentType":"Manual"}`, nil, http.StatusAccepted, 1},
		{"missing body", "", nil, http.StatusBadRequest, 0},
		{"malformed body", `{"commandId":`, nil, http.StatusBadRequest, 0},
		{"empty command id", `{"eventIds":["E1"]}`, nil, http.StatusBadRequest, 0},
		{"unknown event", `{"commandId":"Ack","eventIds":["E9"]}`, nil, http.StatusNotFound, 0},
		{"unknown subscription", `{"commandId":"Ack","eventIds":["E1"],"subscription":7}`, nil, http.StatusNotFound, 0},
		{"server rejects", `{"commandId":"Ack","eventIds":["E1"]}`, errors.New("rejected"), http.StatusBadGateway, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.transport.commandErr = tt.commandErr

			rec := serve(f.h.HandleCommand, http.MethodPost, "/api/v1/commands", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Len(t, f.transport.sent(), tt.wantSent)
		})
	}
}

func TestHandleCommandOptions(t *testing.T) {
	f := newFixture(t)

	body := `{"commandId":"Ack","eventIds":["E1"],"treatmentType":"Manual","validation":{"Password":"pw"}}`
	rec := serve(f.h.HandleCommand, http.MethodPost, "/api/v1/commands", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	sent := f.transport.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"E1"}, sent[0].EventIDs)
	assert.Equal(t, "Manual", sent[0].TreatmentType)
	require.NotNil(t, sent[0].ValidationInput)
	assert.Equal(t, "pw", sent[0].ValidationInput.Password)
}

func TestSelection(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.HandleGetSelection, http.MethodGet, "/api/v1/selection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sel SelectionRequest
	decode(t, rec, &sel)
	assert.Empty(t, sel.EventIDs)
	assert.NotNil(t, sel.EventIDs, "an empty selection is a list")

	rec = serve(f.h.HandleSelection, http.MethodPost, "/api/v1/selection", `{"eventIds":["E2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &sel)
	assert.Equal(t, []string{"E2"}, sel.EventIDs)
	assert.Equal(t, []string{"E2"}, f.client.SelectedEvents())
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.HandleHealth, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(f.h.HandleReady, http.MethodGet, "/api/v1/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.connected.Store(true)
	rec = serve(f.h.HandleReady, http.MethodGet, "/api/v1/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ready map[string]any
	decode(t, rec, &ready)
	assert.Equal(t, "ready", ready["status"])
	assert.EqualValues(t, 1, ready["subscriptions"])
}

func TestHandleSummary(t *testing.T) {
	f := newFixture(t)

	rec := serve(f.h.HandleSummary, http.MethodGet, "/api/v1/summary", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec, nil)
	assert.Nil(t, env.Error)
}

func TestHandleSubscriptionSSEReplaysLatestBatch(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.h.HandleSubscriptionSSE(w, r, constants.DefaultSubscriptionID)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended before a batch")
			if line == "event: subscription.batch" {
				return
			}
		case <-deadline:
			t.Fatal("no batch replayed")
		}
	}
}
