// Package redis is the go-redis/v9 store behind the search result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client exposes the get, set and bulk-invalidate calls the cache uses.
type Client struct {
	rdb *redis.Client
}

// NewClient connects and checks the server with PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ClientName:   "docindex",
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the stored bytes. A missing key yields redis.Nil; see
// IsNilError.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern removes every key matching the glob pattern. Keys are found
// with SCAN, never KEYS, and removed with UNLINK in pipelined chunks.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	const chunk = 256
	var (
		removed int64
		keys    []string
	)
	unlink := func() error {
		if len(keys) == 0 {
			return nil
		}
		n, err := c.rdb.Unlink(ctx, keys...).Result()
		removed += n
		keys = keys[:0]
		return err
	}

	it := c.rdb.Scan(ctx, 0, pattern, chunk).Iterator()
	for it.Next(ctx) {
		if keys = append(keys, it.Val()); len(keys) == chunk {
			if err := unlink(); err != nil {
				return removed, fmt.Errorf("unlinking %q: %w", pattern, err)
			}
		}
	}
	if err := it.Err(); err != nil {
		return removed, fmt.Errorf("scanning %q: %w", pattern, err)
	}
	if err := unlink(); err != nil {
		return removed, fmt.Errorf("unlinking %q: %w", pattern, err)
	}
	return removed, nil
}

// IsNilError reports a cache miss.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *Client) Close() error { return c.rdb.Close() }
