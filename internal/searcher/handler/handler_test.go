package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
	"version": 1,
	"namespaces": [
		{
			"name": "simple_net",
			"strings": ["Tensor", "simple_net"],
			"items": [
				[3, 0, 1, -1, null, null],
				[5, "add", -1, -1, null, [[[-2], [-2]], [-2]]],
				[5, "add_bias", -1, -1, null, [[[-2]], [-2]]]
			],
			"parents": []
		},
		{
			"name": "broken",
			"strings": [],
			"items": [[3, 7, -1, -1, null, null]],
			"parents": []
		}
	]
}`

type staticSource struct{ cat *catalog.Catalog }

func (s staticSource) Current() *catalog.Catalog { return s.cat }

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return nil, redis.Nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = map[string][]byte{}
	return n, nil
}

func newHandler(t *testing.T, cat *catalog.Catalog, opts handler.Options) *handler.Handler {
	t.Helper()
	src := staticSource{cat: cat}
	return handler.New(executor.New(src, 2), src, opts)
}

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(context.Background(), []byte(fixture), catalog.Options{})
	require.NoError(t, err)
	return cat
}

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) executor.SearchResult {
	t.Helper()
	var res executor.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	return res
}

func TestSearch(t *testing.T) {
	t.Parallel()
	m := metrics.New(nil)
	h := newHandler(t, loadCatalog(t), handler.Options{Metrics: m, DefaultLimit: 10, MaxResults: 50})

	t.Run("exact", func(t *testing.T) {
		rec := get(h.Search, "/api/v1/search?q=ADD")
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeResult(t, rec)
		assert.Equal(t, ranker.TierExact, res.Tier)
		require.Len(t, res.Results, 1)
		assert.Equal(t, "simple_net::add", res.Results[0].FullPath)
	})

	t.Run("substring with limit", func(t *testing.T) {
		rec := get(h.Search, "/api/v1/search?q=dd&limit=1")
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeResult(t, rec)
		assert.Equal(t, ranker.TierSubstring, res.Tier)
		assert.Equal(t, 2, res.TotalHits)
		assert.Len(t, res.Results, 1)
	})

	t.Run("blank query", func(t *testing.T) {
		rec := get(h.Search, "/api/v1/search?q=")
		require.Equal(t, http.StatusOK, rec.Code)
		res := decodeResult(t, rec)
		assert.Equal(t, ranker.TierNone, res.Tier)
		assert.Empty(t, res.Results)
	})

	t.Run("missing query", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(h.Search, "/api/v1/search").Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(h.Search, "/api/v1/search?q=add&limit=0").Code)
		assert.Equal(t, http.StatusBadRequest, get(h.Search, "/api/v1/search?q=add&limit=x").Code)
	})

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("exact")), 1.0)
}

func TestSearch_NotReady(t *testing.T) {
	t.Parallel()
	h := newHandler(t, nil, handler.Options{})

	rec := get(h.Search, "/api/v1/search?q=add")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog not ready")

	assert.Equal(t, http.StatusServiceUnavailable, get(h.Catalog, "/api/v1/catalog").Code)
}

func TestSearch_Cached(t *testing.T) {
	t.Parallel()
	qc := cache.New(&memStore{data: map[string][]byte{}}, time.Minute, nil)
	h := newHandler(t, loadCatalog(t), handler.Options{Cache: qc})

	for range 2 {
		require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?q=add").Code)
	}
	hits, misses := qc.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	rec := get(h.CacheStats, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hit_rate":"50.0%"`)

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":1`)
}

func TestCacheDisabled(t *testing.T) {
	t.Parallel()
	h := newHandler(t, loadCatalog(t), handler.Options{})

	assert.Contains(t, get(h.CacheStats, "/api/v1/cache/stats").Body.String(), "disabled")
	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCatalog(t *testing.T) {
	t.Parallel()
	h := newHandler(t, loadCatalog(t), handler.Options{})

	rec := get(h.Catalog, "/api/v1/catalog")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stats      catalog.Stats `json:"stats"`
		Namespaces []struct {
			Name      string `json:"name"`
			Items     int    `json:"items"`
			Callables int    `json:"callables"`
		} `json:"namespaces"`
		Diagnostics []catalog.Diagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Stats.Namespaces)
	require.Len(t, body.Namespaces, 1)
	assert.Equal(t, "simple_net", body.Namespaces[0].Name)
	assert.Equal(t, 3, body.Namespaces[0].Items)
	assert.Equal(t, 2, body.Namespaces[0].Callables)
	require.Len(t, body.Diagnostics, 1)
	assert.Equal(t, "broken", body.Diagnostics[0].Namespace)
}
