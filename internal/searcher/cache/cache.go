// Package cache memoises search results in Redis. Keys include the catalog
// fingerprint, so a reload makes earlier entries unreachable without an
// explicit flush. Redis calls go through a circuit breaker; while it is open
// every lookup is a miss and results are computed directly.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/tracing"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

const (
	keyPrefix = "search:"
	opTimeout = 250 * time.Millisecond
)

// Store is the subset of *pkgredis.Client the cache uses. A miss must be
// reported with an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var errMiss = errors.New("cache miss")

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         10 * time.Second,
		OnStateChange: func(_, to resilience.State) {
			if m == nil {
				return
			}
			if to == resilience.StateClosed {
				m.CacheBreakerOpen.Set(0)
			} else {
				m.CacheBreakerOpen.Set(1)
			}
		},
	})
	return c
}

// Breaker exposes the breaker guarding the store.
func (c *QueryCache) Breaker() *resilience.Breaker {
	return c.breaker
}

// fetch reads key from the store. A miss is not a store failure.
func (c *QueryCache) fetch(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	var miss bool
	err := c.breaker.Execute(func() error {
		var err error
		data, err = resilience.WithTimeout(ctx, opTimeout, "cache get", func(ctx context.Context) ([]byte, error) {
			return c.store.Get(ctx, key)
		})
		if err != nil && pkgredis.IsNilError(err) {
			miss = true
			return nil
		}
		return err
	})
	if miss {
		return nil, errMiss
	}
	return data, err
}

func (c *QueryCache) Get(ctx context.Context, fingerprint, query string, limit int) (*executor.SearchResult, bool) {
	key := BuildKey(fingerprint, query, limit)
	data, err := c.fetch(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, errMiss):
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache bypassed", "key", key, "error", err)
		default:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, fingerprint, query string, limit int, result *executor.SearchResult) {
	key := BuildKey(fingerprint, query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		_, err := resilience.WithTimeout(ctx, opTimeout, "cache set", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.store.Set(ctx, key, data, c.ttl)
		})
		return err
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key across
// concurrent callers. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	fingerprint, query string,
	limit int,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	ctx, span := tracing.Start(ctx, "cache")
	defer span.End()
	if result, ok := c.Get(ctx, fingerprint, query, limit); ok {
		span.Set("hit", true)
		return result, true, nil
	}
	span.Set("hit", false)
	key := BuildKey(fingerprint, query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, fingerprint, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.breaker.Reset()
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key. Queries that normalise to the same text
// share a key.
func BuildKey(fingerprint, query string, limit int) string {
	d := xxhash.New()
	d.WriteString(fingerprint)
	d.WriteString("\x00")
	d.WriteString(tokenizer.Normalize(query))
	d.WriteString("\x00")
	d.WriteString(strconv.Itoa(limit))
	return keyPrefix + fingerprint + ":" + strconv.FormatUint(d.Sum64(), 16)
}
