package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

type outboxService interface {
	Stats(ctx context.Context) (domain.OutboxStats, error)
	Failed(ctx context.Context, limit int) ([]domain.OutboxItem, error)
	RetryFailed(ctx context.Context) (int, error)
}

// AdminHandler serves admin REST endpoints. Access is checked by the
// AdminOnly middleware in front of it.
type AdminHandler struct {
	outbox outboxService
	log    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(outbox outboxService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		outbox: outbox,
		log:    logger.With("handler", "admin"),
	}
}

type outboxStatsResponse struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

type outboxItemResponse struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	FileID    uuid.UUID `json:"file_id"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError *string   `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutboxStats returns outbox item counts by status.
// GET /admin/outbox/stats
func (h *AdminHandler) OutboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.outbox.Stats(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "get outbox stats", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, outboxStatsResponse{
		Pending:    stats.Pending,
		Processing: stats.Processing,
		Done:       stats.Done,
		Failed:     stats.Failed,
		Total:      stats.Total,
	})
}

// OutboxFailed lists items that exhausted their retries.
// GET /admin/outbox/failed?limit=50
func (h *AdminHandler) OutboxFailed(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	items, err := h.outbox.Failed(r.Context(), limit)
	if err != nil {
		h.log.ErrorContext(r.Context(), "list failed outbox items", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]outboxItemResponse, len(items))
	for i, it := range items {
		out[i] = outboxItemResponse{
			ID:        it.ID,
			Kind:      string(it.Kind),
			FileID:    it.FileID,
			Status:    string(it.Status),
			Attempts:  it.Attempts,
			LastError: it.LastError,
			CreatedAt: it.CreatedAt,
			UpdatedAt: it.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// OutboxRetry moves failed items back to pending.
// POST /admin/outbox/retry
func (h *AdminHandler) OutboxRetry(w http.ResponseWriter, r *http.Request) {
	n, err := h.outbox.RetryFailed(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "retry failed outbox items", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.log.InfoContext(r.Context(), "failed outbox items requeued", slog.Int("count", n))
	writeJSON(w, http.StatusOK, map[string]int{"requeued": n})
}
