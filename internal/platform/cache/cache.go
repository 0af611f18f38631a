// Package cache provides whole-object caching behind a byte-oriented Store.
//
// Callers only see Remember and Forget; whether a store invalidates by tag or
// by flat key is the store's concern.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/cms-backend/internal/platform/logger"
)

var ErrStoreClosed = errors.New("cache store closed")

// Store is the backend contract. Values are opaque bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Delete(ctx context.Context, keys ...string) error
	DeleteTag(ctx context.Context, tag string) error
	Close() error
}

// Observer receives hit/miss signals.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
}

type noopObserver struct{}

func (noopObserver) CacheHit(string)  {}
func (noopObserver) CacheMiss(string) {}

type Cache struct {
	store Store
	log   *logger.Logger
	obs   Observer
	group singleflight.Group

	// epoch advances on every invalidation; a compute that started before an
	// invalidation must not write its result back.
	mu    sync.Mutex
	epoch uint64
}

func New(store Store, log *logger.Logger, obs Observer) *Cache {
	if obs == nil {
		obs = noopObserver{}
	}
	return &Cache{store: store, log: log.With("service", "Cache"), obs: obs}
}

func (c *Cache) Store() Store { return c.store }

func (c *Cache) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Cache) bump() {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
}

// storeIfCurrent writes back a computed value unless an invalidation ran
// since epoch. The compare and the write share c.mu with bump, so a value
// either lands before the invalidation deletes it or is never written.
func (c *Cache) storeIfCurrent(ctx context.Context, epoch uint64, key string, value []byte, ttl time.Duration, tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	if err := c.store.Set(ctx, key, value, ttl, tags...); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
}

// Remember returns the cached value for key or computes, stores and returns it.
// Concurrent misses for the same key share one compute.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, tags []string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil || c.store == nil {
		return compute(ctx)
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache get failed; computing", "key", key, "error", err)
	} else if ok {
		var out T
		if uerr := json.Unmarshal(raw, &out); uerr == nil {
			c.obs.CacheHit(key)
			return out, nil
		}
		c.log.Warn("cache entry undecodable; dropping", "key", key)
		_ = c.store.Delete(ctx, key)
	}
	c.obs.CacheMiss(key)

	// Computes are shared per epoch only: a reader arriving after an
	// invalidation never joins a compute that started before it.
	startEpoch := c.currentEpoch()
	flight := fmt.Sprintf("%s@%d", key, startEpoch)
	shared, err, _ := c.group.Do(flight, func() (interface{}, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cache encode %s: %w", key, err)
		}
		c.storeIfCurrent(ctx, startEpoch, key, encoded, ttl, tags)
		return encoded, nil
	})
	if err != nil {
		return zero, err
	}

	// Each caller decodes its own copy so cached trees are never shared mutably.
	var out T
	if err := json.Unmarshal(shared.([]byte), &out); err != nil {
		return zero, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return out, nil
}

// Forget removes keys and cancels write-back of any compute already in flight.
func (c *Cache) Forget(ctx context.Context, keys ...string) error {
	if c == nil || c.store == nil || len(keys) == 0 {
		return nil
	}
	c.bump()
	return c.store.Delete(ctx, keys...)
}

// ForgetTag removes every entry stored under tag and, like Forget, detaches
// readers from computes already in flight.
func (c *Cache) ForgetTag(ctx context.Context, tag string) error {
	if c == nil || c.store == nil {
		return nil
	}
	c.bump()
	return c.store.DeleteTag(ctx, tag)
}

// Has reports whether key currently holds a value.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	if c == nil || c.store == nil {
		return false, nil
	}
	_, ok, err := c.store.Get(ctx, key)
	return ok, err
}
