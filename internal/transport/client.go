// Package transport talks to a WSI server: REST lookups and commands,
// and the websocket push channel that feeds the event client.
package transport

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/wsi/pkg/constants"
	"github.com/agentstation/wsi/pkg/errors"
	"github.com/agentstation/wsi/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// REST endpoints relative to the server base URL.
const (
	pathCategories  = "api/eventcategories"
	pathDisciplines = "api/disciplines"
	pathCommands    = "api/eventscommands"
	pathChannelize  = "api/sr/eventssubscriptions/channelize"
	pathUnsubscribe = "api/sr/eventssubscriptions"
	pathPush        = "api/sr/push"
)

// Client is an authenticated WSI REST client.
type Client struct {
	baseURL string
	http    *http.Client
	auth    Authenticator
	logger  *zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithAuth sets the authenticator.
func WithAuth(auth Authenticator) ClientOption {
	return func(c *Client) {
		c.auth = auth
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a REST client for the server at baseURL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		auth:    &NoAuth{},
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL with a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PushURL derives the push socket address from the REST base URL:
// http becomes ws and https becomes wss.
func (c *Client) PushURL() (string, error) {
	u, err := url.Parse(c.baseURL + pathPush)
	if err != nil {
		return "", errors.WrapParse("url", c.baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.NewValidationError("url", c.baseURL, "scheme must be http or https")
	}
	return u.String(), nil
}
