package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	gets int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:       "add",
		Tier:        ranker.TierExact,
		TotalHits:   1,
		Results:     []ranker.Match{{Tier: ranker.TierExact, FullPath: "simple_net::add"}},
		Fingerprint: "00000000000000aa",
	}
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, BuildKey("fp", "  Add ", 10), BuildKey("fp", "add", 10))
	assert.NotEqual(t, BuildKey("fp", "add", 10), BuildKey("fp", "add", 20))
	assert.NotEqual(t, BuildKey("fp", "add", 10), BuildKey("other", "add", 10))
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.New(nil)
	c := New(newMemStore(), time.Minute, m)
	ctx := context.Background()

	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return sampleResult(), nil
	}

	res, hit, err := c.GetOrCompute(ctx, "fp", "add", 10, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, res.TotalHits)

	res, hit, err = c.GetOrCompute(ctx, "fp", "ADD", 10, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, ranker.TierExact, res.Tier)
	assert.Equal(t, "simple_net::add", res.Results[0].FullPath)
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "fp", "add", 10, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestStoreFailureIsMiss(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	_, ok := c.Get(context.Background(), "fp", "add", 10)
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, "fp", "add", 10, sampleResult())
	c.Set(ctx, "fp", "dot", 10, sampleResult())
	store.data["unrelated"] = []byte("x")

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, store.data, "unrelated")
}

func TestMissesDoNotTripBreaker(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	for i := 0; i < 20; i++ {
		_, ok := c.Get(context.Background(), "fp", "nothing", 10)
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateClosed, c.Breaker().State())
}

func TestBreakerBypassesFailingStore(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	m := metrics.New(nil)
	c := New(store, time.Minute, m)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, ok := c.Get(ctx, "fp", "add", 10)
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateOpen, c.Breaker().State())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheBreakerOpen))

	res, hit, err := c.GetOrCompute(ctx, "fp", "add", 10, func() (*executor.SearchResult, error) {
		return sampleResult(), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "simple_net::add", res.Results[0].FullPath)
	assert.Equal(t, 5, store.gets, "open breaker keeps calls off the store")

	store.err = nil
	_, err = c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, c.Breaker().State())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CacheBreakerOpen))
}
