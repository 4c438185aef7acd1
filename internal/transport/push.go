package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/wsi"
	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/events"
)

// Compile-time interface check to ensure proper implementation.
var _ wsi.Transport = (*Push)(nil)

const (
	// Time allowed to write a control message to the server.
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the server.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Event batches after a reconnect carry the whole open event list.
	maxMessageSize = 16 << 20
)

// Frame types pushed by the server.
const (
	FrameConnected = "connected"
	FrameEvents    = "events"
)

// Frame is one message on the push socket.
type Frame struct {
	Type         string          `json:"type"`
	ConnectionID string          `json:"connectionId,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Push is the websocket push channel of a WSI server. It reports
// Connected once the server assigned a connection id and Disconnected
// when the socket drops, then redials with exponential backoff.
type Push struct {
	rest       *Client
	url        string
	dialer     *websocket.Dialer
	header     http.Header
	logger     *zerolog.Logger
	newBackOff func() backoff.BackOff

	events chan []events.Record
	states chan wsi.ConnectionState

	mu           sync.Mutex
	connectionID string
}

// PushOption configures a Push.
type PushOption func(*Push)

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) PushOption {
	return func(p *Push) {
		p.dialer = d
	}
}

// WithHeader sets extra headers sent on the upgrade request.
func WithHeader(h http.Header) PushOption {
	return func(p *Push) {
		p.header = h
	}
}

// WithBackOff sets the redial policy. The factory is called once per Run.
func WithBackOff(fn func() backoff.BackOff) PushOption {
	return func(p *Push) {
		p.newBackOff = fn
	}
}

// WithPushLogger sets the logger.
func WithPushLogger(logger *zerolog.Logger) PushOption {
	return func(p *Push) {
		p.logger = logger
	}
}

// NewPush creates a push transport for the socket at wsURL. Subscribe,
// Unsubscribe and PostCommand go through rest.
func NewPush(rest *Client, wsURL string, opts ...PushOption) *Push {
	p := &Push{
		rest:       rest,
		url:        wsURL,
		dialer:     websocket.DefaultDialer,
		header:     http.Header{},
		logger:     rest.logger,
		newBackOff: defaultBackOff,
		events:     make(chan []events.Record),
		states:     make(chan wsi.ConnectionState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = constants.RetryBackoff
	b.MaxInterval = constants.MaxRetryBackoff
	b.MaxElapsedTime = 0
	return b
}

// Events implements wsi.Transport.
func (p *Push) Events() <-chan []events.Record {
	return p.events
}

// ConnectionState implements wsi.Transport.
func (p *Push) ConnectionState() <-chan wsi.ConnectionState {
	return p.states
}

// ConnectionID returns the id of the live connection, or "" when down.
func (p *Push) ConnectionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectionID
}

func (p *Push) setConnectionID(id string) {
	p.mu.Lock()
	p.connectionID = id
	p.mu.Unlock()
}

// Subscribe implements wsi.Transport.
func (p *Push) Subscribe(ctx context.Context, includeHidden bool) error {
	return p.rest.Channelize(ctx, p.ConnectionID(), includeHidden)
}

// Unsubscribe implements wsi.Transport.
func (p *Push) Unsubscribe(ctx context.Context) error {
	return p.rest.Unchannelize(ctx, p.ConnectionID())
}

// PostCommand implements wsi.Transport.
func (p *Push) PostCommand(ctx context.Context, req wsi.CommandRequest) error {
	return p.rest.PostCommand(ctx, req)
}

// Run dials and redials until ctx is done or the backoff gives up. Both
// channels are closed when it returns.
func (p *Push) Run(ctx context.Context) error {
	defer close(p.states)
	defer close(p.events)

	b := p.newBackOff()
	for {
		connected, err := p.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		p.logger.Warn().Err(err).Dur("retry_in", wait).Msg("Push connection lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one socket until it fails. connected reports whether the
// server got as far as assigning a connection id.
func (p *Push) session(ctx context.Context) (connected bool, err error) {
	conn, resp, err := p.dialer.DialContext(ctx, p.url, p.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return false, errors.WrapTransport("dial", p.url, err)
	}
	defer func() { _ = conn.Close() }()

	// unblocks ReadMessage on cancellation
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go ping(conn, done)

	defer func() {
		if connected {
			p.setConnectionID("")
			p.emitState(ctx, wsi.Disconnected)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return connected, errors.WrapTransport("read", p.url, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			p.logger.Warn().Err(err).Msg("Dropping malformed push frame")
			continue
		}

		switch f.Type {
		case FrameConnected:
			p.setConnectionID(f.ConnectionID)
			connected = true
			p.logger.Info().Str("connection_id", f.ConnectionID).Msg("Push connected")
			if !p.emitState(ctx, wsi.Connected) {
				return connected, ctx.Err()
			}
		case FrameEvents:
			records, err := events.DecodeRecords(f.Data)
			if err != nil {
				p.logger.Warn().Err(err).Msg("Dropping undecodable event batch")
				continue
			}
			select {
			case p.events <- records:
			case <-ctx.Done():
				return connected, ctx.Err()
			}
		default:
			p.logger.Debug().Str("type", f.Type).Msg("Ignoring push frame")
		}
	}
}

func (p *Push) emitState(ctx context.Context, st wsi.ConnectionState) bool {
	select {
	case p.states <- st:
		return true
	case <-ctx.Done():
		return false
	}
}

func ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
