package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store persists encoded values with an absolute freshness window.
// Get reports ok=false for missing or expired keys.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache memoizes loader results per key. Concurrent misses for the same key
// share a single loader call.
type Cache struct {
	store Store
	group singleflight.Group
}

func New(store Store) *Cache {
	return &Cache{store: store}
}

// Cached returns the live value stored under key, or runs loader and stores
// its result for ttl. Loader errors are returned as-is and nothing is stored.
func Cached[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		log.Printf("cache: read %s failed: %v", key, err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		log.Printf("cache: discarding undecodable entry %s", key)
	}

	// The shared load outlives any single caller; each caller only stops
	// waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		v, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cache entry %s: %w", key, err)
		}
		if err := c.store.Set(loadCtx, key, raw, ttl); err != nil {
			log.Printf("cache: write %s failed: %v", key, err)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
