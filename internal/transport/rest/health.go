package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

// dbPinger defines the minimal interface for DB health checks.
type dbPinger interface {
	Ping(ctx context.Context) error
}

// outboxStatser reports the background write queue.
type outboxStatser interface {
	Stats(ctx context.Context) (domain.OutboxStats, error)
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db      dbPinger
	outbox  outboxStatser
	version string
}

// NewHealthHandler creates a HealthHandler. outbox may be nil.
func NewHealthHandler(db dbPinger, outbox outboxStatser, version string) *HealthHandler {
	return &HealthHandler{db: db, outbox: outbox, version: version}
}

// HealthResponse is the JSON response for /health and /ready.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of an individual component.
type CompStatus struct {
	Status  string         `json:"status"`
	Latency string         `json:"latency,omitempty"`
	Detail  map[string]int `json:"detail,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready is the readiness probe. Pings DB: 200 if OK, 503 if not.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "down",
			Timestamp: time.Now(),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Health is the full health check. A down database fails the check; failed
// outbox items only degrade it, since reviews keep working without them.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := make(map[string]CompStatus)
	overallStatus := "ok"

	start := time.Now()
	err := h.db.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		components["database"] = CompStatus{Status: "down"}
		overallStatus = "down"
	} else {
		components["database"] = CompStatus{
			Status:  "ok",
			Latency: latency.String(),
		}
	}

	if h.outbox != nil {
		stats, err := h.outbox.Stats(ctx)
		switch {
		case err != nil:
			components["outbox"] = CompStatus{Status: "down"}
			overallStatus = worse(overallStatus, "degraded")
		case stats.Failed > 0:
			components["outbox"] = CompStatus{Status: "degraded", Detail: statsDetail(stats)}
			overallStatus = worse(overallStatus, "degraded")
		default:
			components["outbox"] = CompStatus{Status: "ok", Detail: statsDetail(stats)}
		}
	}

	status := http.StatusOK
	if overallStatus == "down" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:     overallStatus,
		Version:    h.version,
		Components: components,
		Timestamp:  time.Now(),
	})
}

func statsDetail(s domain.OutboxStats) map[string]int {
	return map[string]int{
		"pending":    s.Pending,
		"processing": s.Processing,
		"failed":     s.Failed,
	}
}

func worse(a, b string) string {
	rank := map[string]int{"ok": 0, "degraded": 1, "down": 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
