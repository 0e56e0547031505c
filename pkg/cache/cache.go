// Package cache provides a TTL-bounded get-or-compute cache over pluggable
// key/value stores.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrMiss is returned by a Store when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a byte-oriented key/value backend with per-entry expiry.
type Store interface {
	// Get returns the stored value or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. After ttl the entry is no longer returned.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Clear evicts every entry owned by the store.
	Clear(ctx context.Context) error
}

// Stats reports lookup counters since the cache was created.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Cache wraps a Store with JSON encoding and hit/miss accounting.
type Cache struct {
	store  Store
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache over store.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger}
}

// Clear evicts every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the hit/miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Option tunes a single GetOrCompute call.
type Option[T any] func(*callOptions[T])

type callOptions[T any] struct {
	storeIf func(T) bool
}

// StoreIf stores a computed value only when keep reports true. The value is
// still returned to the caller either way.
func StoreIf[T any](keep func(T) bool) Option[T] {
	return func(o *callOptions[T]) { o.storeIf = keep }
}

// GetOrCompute returns the value cached under key, or runs compute, stores its
// result for ttl and returns it. hit reports whether the value came from the
// store. A compute error is returned as is and nothing is stored.
//
// There is no coordination between callers: two concurrent misses on the same
// key both run compute and the last Set wins.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error), opts ...Option[T]) (value T, hit bool, err error) {
	var o callOptions[T]
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		decErr := json.Unmarshal(raw, &value)
		if decErr == nil {
			c.hits.Add(1)
			return value, true, nil
		}
		c.logger.Warn("[Cache] Discarding undecodable entry",
			slog.String("key", key),
			slog.String("error", decErr.Error()))
	case errors.Is(err, ErrMiss):
	default:
		return value, false, fmt.Errorf("cache get %s: %w", key, err)
	}

	c.misses.Add(1)

	value, err = compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if o.storeIf != nil && !o.storeIf(value) {
		return value, false, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value, false, fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
		return value, false, fmt.Errorf("cache set %s: %w", key, err)
	}

	return value, false, nil
}
