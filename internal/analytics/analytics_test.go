package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]kafka.Event, len(events))
	copy(cp, events)
	p.batches = append(p.batches, cp)
	return nil
}

func (p *fakePublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func search(query, tier string, hits int, latency int64, cacheHit bool) Event {
	return NewSearchEvent(SearchEvent{
		Query:     query,
		Tier:      tier,
		TotalHits: hits,
		LatencyMs: latency,
		CacheHit:  cacheHit,
		Timestamp: time.Now(),
	})
}

func TestAggregatorRecord(t *testing.T) {
	agg := NewAggregator()
	agg.Record(search("add", "exact", 2, 10, false))
	agg.Record(search("add", "exact", 2, 20, true))
	agg.Record(search("nothing", "none", 0, 30, false))
	agg.Record(NewCatalogEvent(CatalogEvent{Fingerprint: "abc", Namespaces: 3}))
	agg.Record(Event{Type: "unknown"})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(2), stats.SearchesByTier["exact"])
	assert.Equal(t, int64(1), stats.SearchesByTier["none"])
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 20.0, stats.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(20), stats.P50LatencyMs)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "add", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "nothing", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, int64(1), stats.CatalogReloads)
	require.NotNil(t, stats.LastCatalog)
	assert.Equal(t, "abc", stats.LastCatalog.Fingerprint)
}

func TestAggregatorRestore(t *testing.T) {
	agg := NewAggregator()
	agg.Restore(AggregatedStats{
		TotalSearches:  5,
		SearchesByTier: map[string]int64{"substring": 5},
		TopQueries:     []QueryCount{{Query: "dot", Count: 5}},
	})
	agg.Record(search("dot", "substring", 1, 1, false))

	stats := agg.Stats()
	assert.Equal(t, int64(6), stats.TotalSearches)
	assert.Equal(t, int64(6), stats.SearchesByTier["substring"])
	assert.Equal(t, QueryCount{Query: "dot", Count: 6}, stats.TopQueries[0])
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	body, err := json.Marshal(search("tensor", "exact", 1, 5, false))
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("search"), body))
	require.NoError(t, handle(context.Background(), []byte("search"), []byte("{not json")))

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	agg := NewAggregator()
	c := NewCollector(pub, agg, nil, CollectorConfig{BufferSize: 16, BatchSize: 2, FlushInterval: time.Hour})
	c.Start(context.Background())

	c.Track(search("a", "exact", 1, 1, false))
	c.Track(search("b", "exact", 1, 1, false))

	require.Eventually(t, func() bool { return pub.total() == 2 }, time.Second, 5*time.Millisecond)
	c.Close()
	assert.Equal(t, int64(2), agg.Stats().TotalSearches)
	assert.Equal(t, "search", pub.batches[0][0].Key)
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, nil, nil, CollectorConfig{BufferSize: 16, BatchSize: 100, FlushInterval: time.Hour})
	c.Start(context.Background())

	c.Track(search("a", "none", 0, 1, false))
	c.Close()

	assert.Equal(t, 1, pub.total())
}

func TestCollectorDropsWhenFull(t *testing.T) {
	m := metrics.New(nil)
	c := NewCollector(nil, nil, m, CollectorConfig{BufferSize: 1, BatchSize: 10, FlushInterval: time.Hour})

	c.Track(search("a", "none", 0, 1, false))
	c.Track(search("b", "none", 0, 1, false))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsDropped))
}

type fakeHistory struct {
	snaps []string
	err   error
	limit int
}

func (f *fakeHistory) History(_ context.Context, limit int) ([]string, error) {
	f.limit = limit
	return f.snaps, f.err
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	for _, q := range []string{"a", "b", "b", "c", "c", "c"} {
		agg.Record(search(q, "exact", 1, 1, false))
	}
	h := NewHandler[string](agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(6), stats.TotalSearches)
	assert.Equal(t, []QueryCount{{"c", 3}, {"b", 2}}, stats.TopQueries)

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSnapshots(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler[string](NewAggregator(), nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("default limit", func(t *testing.T) {
		hist := &fakeHistory{snaps: []string{"s1"}}
		rec := httptest.NewRecorder()
		NewHandler[string](NewAggregator(), hist).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 60, hist.limit)
		assert.JSONEq(t, `{"snapshots":["s1"],"count":1}`, rec.Body.String())
	})

	t.Run("empty history", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler[string](NewAggregator(), &fakeHistory{}).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/?limit=5", nil))
		assert.JSONEq(t, `{"snapshots":[],"count":0}`, rec.Body.String())
	})

	t.Run("store error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		hist := &fakeHistory{err: errors.New("connection refused")}
		NewHandler[string](NewAggregator(), hist).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
