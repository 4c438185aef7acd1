package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestAuth(t *testing.T) {
	config := DefaultAuthConfig()
	config.Enabled = true
	config.APIKey = "secret"

	tests := []struct {
		name   string
		path   string
		header http.Header
		status int
	}{
		{name: "public health", path: "/health", status: http.StatusOK},
		{name: "public metrics", path: "/metrics", status: http.StatusOK},
		{name: "missing key", path: "/api/v1/events", status: http.StatusUnauthorized},
		{name: "wrong key", path: "/api/v1/events", header: http.Header{"X-Api-Key": {"nope"}}, status: http.StatusUnauthorized},
		{name: "header key", path: "/api/v1/events", header: http.Header{"X-Api-Key": {"secret"}}, status: http.StatusOK},
		{name: "bearer key", path: "/api/v1/events", header: http.Header{"Authorization": {"Bearer secret"}}, status: http.StatusOK},
		{name: "query key on stream", path: "/api/v1/subscriptions/1/stream?api_key=secret", status: http.StatusOK},
		{name: "query key on websocket", path: "/api/v1/notifications/ws?api_key=secret", status: http.StatusOK},
		{name: "query key elsewhere", path: "/api/v1/events?api_key=secret", status: http.StatusUnauthorized},
	}

	logger := zerolog.Nop()
	handler := Auth(config, &logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header[k] = v
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	logger := zerolog.Nop()
	handler := Auth(DefaultAuthConfig(), &logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/commands", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
