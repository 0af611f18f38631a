package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type payload struct {
	Names []string `json:"names"`
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) CacheHit(string)  { o.hits++ }
func (o *countingObserver) CacheMiss(string) { o.misses++ }

func newTestCache(t *testing.T) (*Cache, *countingObserver) {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	store, err := NewMemoryStore(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	obs := &countingObserver{}
	return New(store, log, obs), obs
}

func TestRememberComputesOnceThenHits(t *testing.T) {
	c, obs := newTestCache(t)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Names: []string{"a", "b"}}, nil
	}

	first, err := Remember(ctx, c, "k", time.Minute, nil, compute)
	require.NoError(t, err)
	second, err := Remember(ctx, c, "k", time.Minute, nil, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, obs.misses)
	assert.Equal(t, 1, obs.hits)
}

func TestRememberReturnsIndependentCopies(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	compute := func(context.Context) (payload, error) { return payload{Names: []string{"x"}}, nil }

	first, err := Remember(ctx, c, "copy", time.Minute, nil, compute)
	require.NoError(t, err)
	first.Names[0] = "mutated"

	second, err := Remember(ctx, c, "copy", time.Minute, nil, compute)
	require.NoError(t, err)
	assert.Equal(t, "x", second.Names[0])
}

func TestRememberPropagatesComputeError(t *testing.T) {
	c, _ := newTestCache(t)
	boom := errors.New("boom")
	_, err := Remember(context.Background(), c, "err", time.Minute, nil, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	has, err := c.Has(context.Background(), "err")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestForgetRemovesEntry(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	_, err := Remember(ctx, c, "tree", time.Minute, nil, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)

	has, err := c.Has(ctx, "tree")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, c.Forget(ctx, "tree"))
	has, err = c.Has(ctx, "tree")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInvalidationDuringComputeSkipsWriteBack(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	v, err := Remember(ctx, c, "racy", time.Minute, nil, func(ctx context.Context) (int, error) {
		require.NoError(t, c.Forget(ctx, "racy"))
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	has, err := c.Has(ctx, "racy")
	require.NoError(t, err)
	assert.False(t, has, "a compute overtaken by invalidation must not be cached")
}

func TestReadAfterForgetTagDoesNotJoinStaleCompute(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	staleDone := make(chan []string, 1)
	go func() {
		v, err := Remember(ctx, c, "tree", time.Minute, []string{"tree"}, func(context.Context) ([]string, error) {
			close(started)
			<-release
			return []string{"old"}, nil
		})
		assert.NoError(t, err)
		staleDone <- v
	}()
	<-started

	require.NoError(t, c.ForgetTag(ctx, "tree"))

	fresh, err := Remember(ctx, c, "tree", time.Minute, []string{"tree"}, func(context.Context) ([]string, error) {
		return []string{"old", "new"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, fresh)

	close(release)
	assert.Equal(t, []string{"old"}, <-staleDone)

	cached, err := Remember(ctx, c, "tree", time.Minute, []string{"tree"}, func(context.Context) ([]string, error) {
		return nil, errors.New("entry should be cached")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, cached, "the stale compute must not overwrite the fresh entry")
}

func TestForgetTag(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	for _, k := range []string{"a", "b"} {
		_, err := Remember(ctx, c, k, time.Minute, []string{"grp"}, func(context.Context) (string, error) { return k, nil })
		require.NoError(t, err)
	}
	_, err := Remember(ctx, c, "other", time.Minute, nil, func(context.Context) (string, error) { return "o", nil })
	require.NoError(t, err)

	require.NoError(t, c.ForgetTag(ctx, "grp"))

	for _, k := range []string{"a", "b"} {
		has, err := c.Has(ctx, k)
		require.NoError(t, err)
		assert.False(t, has, k)
	}
	has, err := c.Has(ctx, "other")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestNilCacheComputesDirectly(t *testing.T) {
	var c *Cache
	v, err := Remember(context.Background(), c, "k", 0, nil, func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	require.NoError(t, c.Forget(context.Background(), "k"))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis cache tests")
	}
	log, err := logger.New("test")
	require.NoError(t, err)
	store, err := NewRedisStore(RedisConfig{Addr: addr, Prefix: "cms-test"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k1", []byte(`1`), time.Minute, "t"))
	raw, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`1`), raw)

	require.NoError(t, store.DeleteTag(ctx, "t"))
	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}
