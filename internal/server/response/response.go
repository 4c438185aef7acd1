// Package response writes the JSON envelope used by every endpoint of the
// wsi HTTP API: a data field on success and an error field on failure.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/wsi/pkg/errors"
)

// Response is the envelope of every API answer.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error is the error part of the envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

// Success wraps data.
func Success(data any) Response {
	return Response{Data: data}
}

// Fail builds an error envelope.
func Fail(code, message, details string) Response {
	return Response{Error: &Error{Code: code, Message: message, Details: details}}
}

// JSON writes resp with status.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent, nothing useful to do on failure
	_ = json.NewEncoder(w).Encode(resp)
}

// OK writes data with 200.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Success(data))
}

// Created writes data with 201.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Success(data))
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail(CodeBadRequest, message, details))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusUnauthorized, Fail(CodeUnauthorized, message, details))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusNotFound, Fail(CodeNotFound, message, details))
}

// MethodNotAllowed writes a 405.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		CodeMethodNotAllowed,
		"Method not allowed",
		"Method "+method+" is not supported for this endpoint",
	))
}

// RateLimited writes a 429.
func RateLimited(w http.ResponseWriter, message string) {
	JSON(w, http.StatusTooManyRequests, Fail(CodeRateLimited, "Rate limit exceeded", message))
}

// BadGateway writes a 502 for failures reported by the WSI server.
func BadGateway(w http.ResponseWriter, err error) {
	JSON(w, http.StatusBadGateway, Fail(CodeBadGateway, "WSI server request failed", err.Error()))
}

// InternalError writes a 500 without exposing err.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(
		CodeInternal,
		"Internal server error",
		"An unexpected error occurred",
	))
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	JSON(w, http.StatusServiceUnavailable, Fail(CodeServiceUnavailable, "Service unavailable", message))
}

// GatewayTimeout writes a 504 when the WSI server did not answer in time.
func GatewayTimeout(w http.ResponseWriter, err error) {
	JSON(w, http.StatusGatewayTimeout, Fail(CodeGatewayTimeout, "WSI server timed out", err.Error()))
}

// ErrorFromType maps typed errors to HTTP responses. Wrapped errors are
// matched through their chain.
func ErrorFromType(w http.ResponseWriter, err error) {
	var (
		cmdErr *errors.CommandError
		apiErr *errors.APIError
	)
	switch {
	case errors.IsValidationError(err):
		BadRequest(w, err.Error(), "")
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		BadGateway(w, err)
	case errors.IsNotFound(err):
		NotFound(w, err.Error(), "")
	case errors.IsRateLimited(err):
		RateLimited(w, err.Error())
	case errors.IsTimeout(err):
		GatewayTimeout(w, err)
	case errors.IsCanceled(err):
		ServiceUnavailable(w, "Request canceled")
	case errors.IsUnavailable(err), errors.Is(err, errors.ErrDisconnected):
		ServiceUnavailable(w, err.Error())
	case errors.IsClosed(err):
		ServiceUnavailable(w, "Service is shutting down")
	case errors.As(err, &cmdErr), errors.As(err, &apiErr), errors.IsUnauthorized(err):
		BadGateway(w, err)
	default:
		InternalError(w, err)
	}
}
