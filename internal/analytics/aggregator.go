package analytics

import (
	"context"
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	topQueries        = 10
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	SearchesByTier    map[string]int64 `json:"searches_by_tier"`
	PatternSearches   int64            `json:"pattern_searches"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	CatalogReloads    int64            `json:"catalog_reloads"`
	LastCatalog       *CatalogEvent    `json:"last_catalog,omitempty"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// latencyRing keeps the newest maxLatencySamples observations.
type latencyRing struct {
	samples []int64
	next    int
}

func (r *latencyRing) add(ms int64) {
	if len(r.samples) < maxLatencySamples {
		r.samples = append(r.samples, ms)
		return
	}
	r.samples[r.next] = ms
	r.next = (r.next + 1) % maxLatencySamples
}

// summarize fills the latency fields of s.
func (r *latencyRing) summarize(s *AggregatedStats) {
	if len(r.samples) == 0 {
		return
	}
	sorted := slices.Clone(r.samples)
	slices.Sort(sorted)
	var sum int64
	for _, ms := range sorted {
		sum += ms
	}
	s.AvgLatencyMs = float64(sum) / float64(len(sorted))
	s.P50LatencyMs = percentile(sorted, 50)
	s.P95LatencyMs = percentile(sorted, 95)
	s.P99LatencyMs = percentile(sorted, 99)
}

// Aggregator folds events into running statistics. Memory is bounded by the
// latency ring and the number of distinct queries.
type Aggregator struct {
	mu sync.RWMutex

	searches    int64
	byTier      map[string]int64
	patterns    int64
	hits        int64
	misses      int64
	zero        int64
	latency     latencyRing
	queries     map[string]int64
	zeroQueries map[string]int64
	reloads     int64
	lastCatalog *CatalogEvent
	since       time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byTier:      make(map[string]int64),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		since:       time.Now(),
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages are
// logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(_ context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			agg.logger.Error("undecodable analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event Event) {
	switch {
	case event.Type == EventSearch && event.Search != nil:
		a.mu.Lock()
		a.addSearch(event.Search)
		a.mu.Unlock()
	case event.Type == EventCatalogReload && event.Catalog != nil:
		c := *event.Catalog
		a.mu.Lock()
		a.reloads++
		a.lastCatalog = &c
		a.mu.Unlock()
	default:
		a.logger.Debug("ignoring analytics event", "type", event.Type)
	}
}

// addSearch requires a.mu.
func (a *Aggregator) addSearch(e *SearchEvent) {
	a.searches++
	a.byTier[e.Tier]++
	if e.Pattern {
		a.patterns++
	}
	if e.CacheHit {
		a.hits++
	} else {
		a.misses++
	}
	a.latency.add(e.LatencyMs)
	a.queries[e.Query]++
	if e.TotalHits == 0 {
		a.zero++
		a.zeroQueries[e.Query]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := AggregatedStats{
		TotalSearches:     a.searches,
		SearchesByTier:    maps.Clone(a.byTier),
		PatternSearches:   a.patterns,
		CacheHits:         a.hits,
		CacheMisses:       a.misses,
		ZeroResultCount:   a.zero,
		CatalogReloads:    a.reloads,
		LastCatalog:       a.lastCatalog,
		TopQueries:        topN(a.queries, topQueries),
		ZeroResultQueries: topN(a.zeroQueries, topQueries),
	}
	a.latency.summarize(&s)
	if mins := time.Since(a.since).Minutes(); mins > 0 {
		s.QueriesPerMinute = float64(s.TotalSearches) / mins
	}
	return s
}

// Restore adds a persisted snapshot's counters to the running totals.
// Latency samples are not persisted and start empty.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches += s.TotalSearches
	a.patterns += s.PatternSearches
	a.hits += s.CacheHits
	a.misses += s.CacheMisses
	a.zero += s.ZeroResultCount
	a.reloads += s.CatalogReloads
	for tier, n := range s.SearchesByTier {
		a.byTier[tier] += n
	}
	for _, q := range s.TopQueries {
		a.queries[q.Query] += q.Count
	}
	for _, q := range s.ZeroResultQueries {
		a.zeroQueries[q.Query] += q.Count
	}
}

func (s AggregatedStats) String() string {
	return fmt.Sprintf("searches=%d zero=%d hits=%d misses=%d", s.TotalSearches, s.ZeroResultCount, s.CacheHits, s.CacheMisses)
}

// percentile uses the nearest-rank-below index into sorted.
func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[min(pct*len(sorted)/100, len(sorted)-1)]
}

// topN orders by count descending, then query ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	slices.SortFunc(out, func(x, y QueryCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Query, y.Query)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
