package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// AuthConfig configures API-key authentication of the façade.
type AuthConfig struct {
	Enabled    bool
	APIKey     string
	HeaderName string
	// QueryParam is accepted on websocket and SSE routes, where browsers
	// cannot set headers.
	QueryParam  string
	PublicPaths []string
}

// DefaultAuthConfig returns a disabled configuration with the standard
// header and public probe paths.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		HeaderName:  "X-API-Key",
		QueryParam:  "api_key",
		PublicPaths: []string{"/health", "/metrics"},
	}
}

// Auth rejects requests without the configured API key.
func Auth(config AuthConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled || isPublicPath(r.URL.Path, config.PublicPaths) {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r, config)
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(config.APIKey)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", apiKey != "").
					Msg("Authentication failed")

				writeError(w, http.StatusUnauthorized,
					`{"data":null,"error":{"code":"UNAUTHORIZED","message":"Invalid or missing API key","details":"Provide a valid API key in the `+config.HeaderName+` header"}}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string, publicPaths []string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// extractAPIKey reads the key from the configured header, then a bearer
// Authorization header, then the query parameter of streaming requests.
func extractAPIKey(r *http.Request, config AuthConfig) string {
	if key := r.Header.Get(config.HeaderName); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if config.QueryParam != "" && isStreamPath(r.URL.Path) {
		return r.URL.Query().Get(config.QueryParam)
	}
	return ""
}

func isStreamPath(path string) bool {
	return strings.HasSuffix(path, "/ws") || strings.HasSuffix(path, "/stream")
}
