package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

type Options struct {
	Cache        *cache.QueryCache
	Collector    *analytics.Collector
	Metrics      *metrics.Metrics
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	executor     SearchExecutor
	source       executor.CatalogSource
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(exec SearchExecutor, source executor.CatalogSource, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	return &Handler{
		executor:     exec,
		source:       source,
		cache:        opts.Cache,
		collector:    opts.Collector,
		metrics:      opts.Metrics,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=&limit=. A blank q yields an empty
// result rather than an error.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	defer span.End()
	log := logger.FromContext(ctx)

	values := r.URL.Query()
	if !values.Has("q") {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	query := values.Get("q")
	span.Set("query", query)

	limit := h.defaultLimit
	if limitStr := values.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, h.maxResults)
	}

	cat, err := executor.Await(ctx, h.source)
	if err != nil {
		h.observe("error", "miss", start, 0)
		h.writeError(w, err)
		return
	}
	plan := parser.Parse(query)

	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	if h.cache != nil && !plan.Empty() {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, executor.Fingerprint(cat), query, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.observe("error", cacheStatus(cacheHit), start, 0)
		h.writeError(w, err)
		return
	}

	latency := time.Since(start)
	if h.cache != nil {
		w.Header().Set("X-Cache", strings.ToUpper(cacheStatus(cacheHit)))
	}
	span.Set("tier", result.Tier.String())
	span.Set("cache_hit", cacheHit)
	h.observe(result.Tier.String(), cacheStatus(cacheHit), start, len(result.Results))
	log.Info("search completed",
		"query", query,
		"tier", result.Tier.String(),
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		h.collector.Track(analytics.NewSearchEvent(analytics.SearchEvent{
			Query:       query,
			Tier:        result.Tier.String(),
			Pattern:     result.Pattern != "",
			TotalHits:   result.TotalHits,
			Returned:    len(result.Results),
			LatencyMs:   latency.Milliseconds(),
			CacheHit:    cacheHit,
			Fingerprint: result.Fingerprint,
			Timestamp:   time.Now().UTC(),
			RequestID:   middleware.GetRequestID(ctx),
		}))
	}

	h.writeJSON(w, http.StatusOK, result)
}

type namespaceSummary struct {
	Name      string `json:"name"`
	Doc       string `json:"doc,omitempty"`
	Items     int    `json:"items"`
	Callables int    `json:"callables"`
}

type catalogResponse struct {
	Stats       catalog.Stats        `json:"stats"`
	Namespaces  []namespaceSummary   `json:"namespaces"`
	Diagnostics []catalog.Diagnostic `json:"diagnostics"`
}

// Catalog serves GET /api/v1/catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	cat := h.source.Current()
	if cat == nil {
		h.writeError(w, apperrors.ErrCatalogNotReady)
		return
	}
	resp := catalogResponse{
		Stats:       cat.Stats(),
		Namespaces:  make([]namespaceSummary, 0, len(cat.Names())),
		Diagnostics: cat.Diagnostics(),
	}
	if resp.Diagnostics == nil {
		resp.Diagnostics = []catalog.Diagnostic{}
	}
	for _, name := range cat.Names() {
		ns, _ := cat.Namespace(name)
		resp.Namespaces = append(resp.Namespaces, namespaceSummary{
			Name:      ns.Name,
			Doc:       ns.Doc,
			Items:     ns.Len(),
			Callables: ns.Callables(),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) observe(tier, cacheStatus string, start time.Time, results int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(tier).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if tier != "error" {
		h.metrics.SearchResultsCount.Observe(float64(results))
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else if status == http.StatusInternalServerError {
		message = "search failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
