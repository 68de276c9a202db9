package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// History lists persisted snapshots newest first. The aggregator store
// implements it; the handler serves 404 on the history route without one.
type History[T any] interface {
	History(ctx context.Context, limit int) ([]T, error)
}

// Handler serves aggregated statistics over HTTP.
type Handler[T any] struct {
	agg     *Aggregator
	history History[T]
	logger  *slog.Logger
}

func NewHandler[T any](agg *Aggregator, history History[T]) *Handler[T] {
	return &Handler[T]{
		agg:     agg,
		history: history,
		logger:  slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics. The optional top parameter caps the
// query lists.
func (h *Handler[T]) Stats(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		h.respond(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	top, ok := intParam(r, "top")
	if !ok {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
		return
	}
	stats := h.agg.Stats()
	if top > 0 {
		stats.TopQueries = truncate(stats.TopQueries, top)
		stats.ZeroResultQueries = truncate(stats.ZeroResultQueries, top)
	}
	h.respond(w, http.StatusOK, stats)
}

// Snapshots serves GET /api/v1/analytics/history?limit=N.
func (h *Handler[T]) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respond(w, http.StatusNotFound, map[string]string{"error": "snapshot history is not enabled"})
		return
	}
	limit, ok := intParam(r, "limit")
	if !ok {
		h.respond(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		return
	}
	if limit == 0 {
		limit = 60
	}
	snaps, err := h.history.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("loading snapshot history", "error", err)
		h.respond(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if snaps == nil {
		snaps = []T{}
	}
	h.respond(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
}

func (h *Handler[T]) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("writing analytics response", "error", err)
	}
}

func intParam(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func truncate(qs []QueryCount, n int) []QueryCount {
	if len(qs) > n {
		return qs[:n]
	}
	return qs
}
