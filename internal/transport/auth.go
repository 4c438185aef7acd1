package transport

import "net/http"

// Authenticator applies credentials to outgoing WSI requests.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) {}

// BearerAuth sends the session token as a bearer token. This is what the
// WSI server hands out from its token endpoint.
type BearerAuth struct {
	Token string
}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// HeaderAuth sends the token in a custom header, for deployments behind
// a gateway.
type HeaderAuth struct {
	Header string
	Token  string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request) {
	req.Header.Set(a.Header, a.Token)
}

// QueryAuth sends the token as a query parameter. Browsers cannot set
// headers on websocket upgrades, so some WSI gateways accept this instead.
type QueryAuth struct {
	Param string
	Token string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request) {
	if req.URL == nil {
		return
	}
	query := req.URL.Query()
	query.Set(a.Param, a.Token)
	req.URL.RawQuery = query.Encode()
}
