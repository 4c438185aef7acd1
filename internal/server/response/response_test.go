package response

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/wsi/pkg/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	OK(w, map[string]int{"count": 42})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	resp := decode(t, w)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"count": float64(42)}, resp.Data)
}

func TestCreatedAndNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	Created(w, map[string]int{"id": 3})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	NoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"BadRequest", func(w http.ResponseWriter) { BadRequest(w, "bad", "missing field") }, http.StatusBadRequest, CodeBadRequest},
		{"Unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "no", "key") }, http.StatusUnauthorized, CodeUnauthorized},
		{"NotFound", func(w http.ResponseWriter) { NotFound(w, "missing", "") }, http.StatusNotFound, CodeNotFound},
		{"MethodNotAllowed", func(w http.ResponseWriter) { MethodNotAllowed(w, "PATCH") }, http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{"RateLimited", func(w http.ResponseWriter) { RateLimited(w, "slow down") }, http.StatusTooManyRequests, CodeRateLimited},
		{"BadGateway", func(w http.ResponseWriter) { BadGateway(w, stderrors.New("upstream")) }, http.StatusBadGateway, CodeBadGateway},
		{"InternalError", func(w http.ResponseWriter) { InternalError(w, stderrors.New("boom")) }, http.StatusInternalServerError, CodeInternal},
		{"ServiceUnavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "down") }, http.StatusServiceUnavailable, CodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.fn(w)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	InternalError(w, stderrors.New("database password leaked"))
	assert.NotContains(t, w.Body.String(), "password")
}

func TestErrorFromType(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "validation",
			err:    errors.NewValidationError("commandId", "", "required"),
			status: http.StatusBadRequest,
			code:   CodeBadRequest,
		},
		{
			name:   "wrapped validation",
			err:    errors.WrapResource("send", "command", "", errors.NewValidationError("events", nil, "empty")),
			status: http.StatusBadRequest,
			code:   CodeBadRequest,
		},
		{
			name:   "not found",
			err:    errors.NewNotFoundError("subscription", "7"),
			status: http.StatusNotFound,
			code:   CodeNotFound,
		},
		{
			name:   "upstream 404 is not ours",
			err:    errors.NewAPIError("api/eventscommands", http.StatusNotFound, "no route"),
			status: http.StatusBadGateway,
			code:   CodeBadGateway,
		},
		{
			name:   "upstream 5xx",
			err:    errors.NewAPIError("api/eventscommands", http.StatusServiceUnavailable, "maintenance"),
			status: http.StatusServiceUnavailable,
			code:   CodeServiceUnavailable,
		},
		{
			name:   "upstream 4xx",
			err:    errors.NewAPIError("api/eventscommands", http.StatusBadRequest, "bad command"),
			status: http.StatusBadGateway,
			code:   CodeBadGateway,
		},
		{
			name:   "command failure",
			err:    &errors.CommandError{SystemID: "2", CommandID: "ack", Err: stderrors.New("refused")},
			status: http.StatusBadGateway,
			code:   CodeBadGateway,
		},
		{
			name:   "disconnected",
			err:    errors.WrapTransport("subscribe", "ws", errors.ErrDisconnected),
			status: http.StatusServiceUnavailable,
			code:   CodeServiceUnavailable,
		},
		{
			name:   "closed",
			err:    errors.ErrClosed,
			status: http.StatusServiceUnavailable,
			code:   CodeServiceUnavailable,
		},
		{
			name:   "upstream rate limit",
			err:    errors.NewAPIError("api/eventscommands", http.StatusTooManyRequests, "slow down"),
			status: http.StatusTooManyRequests,
			code:   CodeRateLimited,
		},
		{
			name:   "timeout",
			err:    errors.NewTimeoutError("first batch", "5s", "no events"),
			status: http.StatusGatewayTimeout,
			code:   CodeGatewayTimeout,
		},
		{
			name:   "upstream deadline",
			err:    errors.Join(errors.ErrTimeout, stderrors.New("context deadline exceeded")),
			status: http.StatusGatewayTimeout,
			code:   CodeGatewayTimeout,
		},
		{
			name:   "canceled",
			err:    errors.Join(errors.ErrCanceled, stderrors.New("context canceled")),
			status: http.StatusServiceUnavailable,
			code:   CodeServiceUnavailable,
		},
		{
			name:   "generic",
			err:    stderrors.New("generic"),
			status: http.StatusInternalServerError,
			code:   CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFromType(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestErrorDetailsOmitted(t *testing.T) {
	data, err := json.Marshal(Fail("TEST", "message", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null,"error":{"code":"TEST","message":"message"}}`, string(data))
}
