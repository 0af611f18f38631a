package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// MemoryStore is a single-process store used when no Redis address is configured.
type MemoryStore struct {
	c *ristretto.Cache[string, []byte]

	mu     sync.Mutex
	tags   map[string]map[string]struct{}
	closed bool
}

func NewMemoryStore(maxBytes int64) (*MemoryStore, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryStore{c: c, tags: map[string]map[string]struct{}{}}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.isClosed() {
		return nil, false, ErrStoreClosed
	}
	v, ok := s.c.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	s.c.SetWithTTL(key, value, cost, ttl)
	s.c.Wait()

	if len(tags) > 0 {
		s.mu.Lock()
		for _, tag := range tags {
			set, ok := s.tags[tag]
			if !ok {
				set = map[string]struct{}{}
				s.tags[tag] = set
			}
			set[key] = struct{}{}
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	for _, k := range keys {
		s.c.Del(k)
	}
	return nil
}

func (s *MemoryStore) DeleteTag(ctx context.Context, tag string) error {
	s.mu.Lock()
	set := s.tags[tag]
	delete(s.tags, tag)
	s.mu.Unlock()

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return s.Delete(ctx, keys...)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.c.Close()
	return nil
}

func (s *MemoryStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
