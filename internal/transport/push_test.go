package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi"
)

// fakeServer plays the WSI push socket and the channelize endpoint.
type fakeServer struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu          sync.Mutex
	connections int
	channelized []string
	hold        chan struct{}
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.mu.Lock()
		s.channelized = append(s.channelized, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.connections++
	n := s.connections
	s.mu.Unlock()

	send := func(f Frame) {
		data, _ := json.Marshal(f)
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	send(Frame{Type: FrameConnected, ConnectionID: "conn-" + string(rune('0'+n))})
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
	send(Frame{Type: FrameEvents, Data: json.RawMessage(`[{"Id":"E1","CategoryId":1,"State":"Unprocessed"}]`)})

	if n == 1 {
		// first socket drops right away
		return
	}
	<-s.hold
}

func (s *fakeServer) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.channelized...)
}

func TestPushReconnects(t *testing.T) {
	fs := &fakeServer{t: t, hold: make(chan struct{})}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	defer close(fs.hold)

	logger := zerolog.Nop()
	rest := New(srv.URL, WithLogger(&logger))
	push := NewPush(rest, "ws"+strings.TrimPrefix(srv.URL, "http")+"/push",
		WithBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- push.Run(ctx) }()

	expectState := func(want wsi.ConnectionState) {
		t.Helper()
		select {
		case got := <-push.ConnectionState():
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s state", want)
		}
	}
	expectBatch := func() {
		t.Helper()
		select {
		case records := <-push.Events():
			require.Len(t, records, 1)
			assert.Equal(t, "E1", records[0].ID)
		case <-time.After(2 * time.Second):
			t.Fatal("no event batch")
		}
	}

	expectState(wsi.Connected)
	assert.Equal(t, "conn-1", push.ConnectionID())
	require.NoError(t, push.Subscribe(ctx, true))
	expectBatch()
	expectState(wsi.Disconnected)
	assert.Empty(t, push.ConnectionID())

	expectState(wsi.Connected)
	assert.Equal(t, "conn-2", push.ConnectionID())
	require.NoError(t, push.Subscribe(ctx, false))
	expectBatch()
	require.NoError(t, push.Unsubscribe(ctx))

	assert.Equal(t, []string{
		"POST /api/sr/eventssubscriptions/channelize/conn-1?includeHiddenEvents=true",
		"POST /api/sr/eventssubscriptions/channelize/conn-2?includeHiddenEvents=false",
		"DELETE /api/sr/eventssubscriptions/conn-2?",
	}, fs.calls())

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	_, open := <-push.Events()
	assert.False(t, open)
}

func TestPushGivesUpWhenBackOffStops(t *testing.T) {
	logger := zerolog.Nop()
	rest := New("http://127.0.0.1:1", WithLogger(&logger))
	push := NewPush(rest, "ws://127.0.0.1:1/push",
		WithBackOff(func() backoff.BackOff { return &backoff.StopBackOff{} }),
	)

	err := push.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}
