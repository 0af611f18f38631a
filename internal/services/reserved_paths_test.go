package services_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/services"
)

func reservedHarness(t *testing.T) *harness {
	return newHarness(t, harnessOpts{reserved: services.ReservedPathsConfig{
		Paths:    []string{" /Admin/ ", "login", "login/"},
		Prefixes: []string{"api/v1", "assets"},
	}})
}

func TestReservedAllNormalizesAndDedupes(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()
	require.NoError(t, h.reserved.Register(ctx, "/Feeds/", types.ReservedKindPath, "rss-plugin"))
	require.NoError(t, h.reserved.Register(ctx, "admin", types.ReservedKindPath, "core"))

	set, err := h.reserved.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "login", "feeds"}, set.Paths)
	assert.Equal(t, []string{"api/v1", "assets"}, set.Prefixes)
	assert.Equal(t, []string{"admin", "api", "assets", "feeds", "login"}, set.FirstSegments())
}

func TestIsReservedPrefixSegmentRules(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()

	cases := []struct {
		path string
		want bool
	}{
		{"assets", true},
		{"assets/css/site.css", true},
		{"assetsx", false},
		{"assets-old/x", false},
		{"api/v1/users", true},
		{"api", false},
		{"api/v2/users", false},
		{"/API/V1/Users/", true},
		{"", false},
	}
	for _, tc := range cases {
		got, err := h.reserved.IsReservedPrefix(ctx, tc.path)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "IsReservedPrefix(%q)", tc.path)
	}
}

func TestIsReservedPathAndSlug(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()

	ok, err := h.reserved.IsReservedPath(ctx, "ADMIN")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.reserved.IsReservedPath(ctx, "admin/users")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.reserved.IsReservedSlug(ctx, "assets")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.reserved.IsReservedSlug(ctx, "about-us")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlugRegexRejectsReservedFirstSegments(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()

	re, err := h.reserved.SlugRegex(ctx)
	require.NoError(t, err)

	cases := []struct {
		slug string
		want bool
	}{
		{"admin", false},
		{"api", false},
		{"login", false},
		{"assets", false},
		{"about", true},
		{"admin-panel", true},
		{"apis", true},
		{"a", true},
		{"post-42", true},
		{"-leading", false},
		{"trailing-", false},
		{"Upper", false},
		{"two/segments", false},
	}
	for _, tc := range cases {
		got, err := re.MatchString(tc.slug)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "slug %q", tc.slug)
	}
}

func TestSlugRegexIsMemoizedUntilInvalidate(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()

	first, err := h.reserved.SlugRegex(ctx)
	require.NoError(t, err)
	second, err := h.reserved.SlugRegex(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	ok, err := first.MatchString("shop")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, h.reserved.Register(ctx, "shop/cart", types.ReservedKindPrefix, "commerce"))
	third, err := h.reserved.SlugRegex(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	ok, err = third.MatchString("shop")
	require.NoError(t, err)
	assert.False(t, ok)
}

// gatedStore pauses one armed Get after reading the entry, so a caller can
// hold a pre-invalidation value while writers run.
type gatedStore struct {
	*cache.MemoryStore

	mu      sync.Mutex
	armed   bool
	read    chan struct{}
	release chan struct{}
}

func (g *gatedStore) arm() {
	g.mu.Lock()
	g.armed = true
	g.read = make(chan struct{})
	g.release = make(chan struct{})
	g.mu.Unlock()
}

func (g *gatedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := g.MemoryStore.Get(ctx, key)
	g.mu.Lock()
	hold := g.armed && key == services.ReservedPathsCacheKey
	if hold {
		g.armed = false
	}
	read, release := g.read, g.release
	g.mu.Unlock()
	if hold {
		close(read)
		<-release
	}
	return raw, ok, err
}

func TestSlugRegexCompiledBeforeInvalidateIsNotMemoized(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()
	mem, err := cache.NewMemoryStore(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })
	store := &gatedStore{MemoryStore: mem}
	reserved := services.NewReservedPathService(h.db, h.log, h.repos.ReservedRoute, cache.New(store, h.log, nil),
		services.ReservedPathsConfig{Paths: []string{"admin"}, CacheTTL: time.Minute}, h.metrics)

	_, err = reserved.All(ctx)
	require.NoError(t, err)
	store.arm()

	stale := make(chan bool, 1)
	go func() {
		re, err := reserved.SlugRegex(ctx)
		assert.NoError(t, err)
		ok, _ := re.MatchString("shop")
		stale <- ok
	}()
	<-store.read

	require.NoError(t, reserved.Register(ctx, "shop", types.ReservedKindPath, "commerce"))
	close(store.release)
	assert.True(t, <-stale, "the in-flight compile saw the set from before the write")

	re, err := reserved.SlugRegex(ctx)
	require.NoError(t, err)
	ok, err := re.MatchString("shop")
	require.NoError(t, err)
	assert.False(t, ok, "the regex compiled before Invalidate must not stay memoized")
}

func TestBuildSlugPattern(t *testing.T) {
	assert.Equal(t, `^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`, services.BuildSlugPattern(nil))
	assert.Equal(t, `^(?!^(?:admin|v1\.0)$)[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`, services.BuildSlugPattern([]string{"admin", "v1.0"}))
}

func TestRegisterValidatesInput(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()

	err := h.reserved.Register(ctx, "  / ", types.ReservedKindPath, "core")
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	err = h.reserved.Register(ctx, "x", "glob", "core")
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
	err = h.reserved.Register(ctx, "x", types.ReservedKindPath, " ")
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
}

func TestUnregisterRemovesStoredReservation(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()
	require.NoError(t, h.reserved.Register(ctx, "newsletter", "", "mailer"))

	ok, err := h.reserved.IsReservedPath(ctx, "newsletter")
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := h.reserved.Unregister(ctx, "newsletter", types.ReservedKindPath)
	require.NoError(t, err)
	assert.True(t, removed)
	ok, err = h.reserved.IsReservedPath(ctx, "newsletter")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = h.reserved.Unregister(ctx, "newsletter", types.ReservedKindPath)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSyncSourceReplacesOnlyThatSource(t *testing.T) {
	h := reservedHarness(t)
	ctx := bg()
	require.NoError(t, h.reserved.Register(ctx, "search", types.ReservedKindPath, "search-plugin"))

	require.NoError(t, h.reserved.SyncSource(ctx, "shop-plugin", []services.ReservedEntry{
		{Path: "cart", Kind: types.ReservedKindPath},
		{Path: "checkout", Kind: types.ReservedKindPrefix},
		{Path: "/Cart/", Kind: types.ReservedKindPath},
	}))
	rows, err := h.reserved.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	require.NoError(t, h.reserved.SyncSource(ctx, "shop-plugin", []services.ReservedEntry{{Path: "basket"}}))
	set, err := h.reserved.All(ctx)
	require.NoError(t, err)
	assert.Contains(t, set.Paths, "basket")
	assert.Contains(t, set.Paths, "search")
	assert.NotContains(t, set.Paths, "cart")
	assert.NotContains(t, set.Prefixes, "checkout")
}

func TestLoadReservedManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reserved.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: forum\npaths:\n  - forum\nprefixes:\n  - forum/api\n"), 0o600))

	m, err := services.LoadReservedManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "forum", m.Source)
	assert.Equal(t, []services.ReservedEntry{
		{Path: "forum", Kind: types.ReservedKindPath},
		{Path: "forum/api", Kind: types.ReservedKindPrefix},
	}, m.Entries())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("paths: [x]\n"), 0o600))
	_, err = services.LoadReservedManifest(bad)
	assert.Error(t, err)
}
