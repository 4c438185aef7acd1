package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/wsi/internal/server/response"
)

// HandleHealth handles GET /health.
// @Summary Health check
// @Description Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=object}
// @Router /health [get].
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{
		"status":  "healthy",
		"service": "wsi",
		"version": "v1",
	})
}

// HandleReady handles GET /api/v1/ready.
// @Summary Readiness check
// @Description Ready once the push connection to the WSI server is up
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=object}
// @Failure 503 {object} response.Response{error=response.Error}
// @Router /api/v1/ready [get].
func (h *Handlers) HandleReady(w http.ResponseWriter, _ *http.Request) {
	if !h.connected() {
		response.ServiceUnavailable(w, "Push connection to the WSI server is down")
		return
	}

	response.OK(w, map[string]any{
		"status":            "ready",
		"uptime":            time.Since(h.startTime).Round(time.Second).String(),
		"subscriptions":     h.subs.Len(),
		"websocket_clients": h.wsHub.ClientCount(),
		"sse_clients":       h.sseBroadcaster.ClientCount(),
	})
}
