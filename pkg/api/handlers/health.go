package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/patchbay-dev/patchbay/pkg/store"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Can the server reach its database?
type HealthHandler struct {
	store     *store.GORMStore
	startedAt time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st *store.GORMStore) *HealthHandler {
	return &HealthHandler{store: st, startedAt: time.Now()}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Service   string `json:"service"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint should
// always succeed as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	WriteJSONOK(w, HealthResponse{
		Service:   "patchbay",
		Status:    "healthy",
		StartedAt: h.startedAt.UTC().Format(time.RFC3339),
		Uptime:    uptime.Round(time.Second).String(),
		UptimeSec: int64(uptime.Seconds()),
	})
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK when the database answers a ping, 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		ServiceUnavailable(w, "store not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Healthcheck(ctx); err != nil {
		ServiceUnavailable(w, "database unreachable: "+err.Error())
		return
	}

	WriteJSONOK(w, map[string]string{"status": "ready"})
}
