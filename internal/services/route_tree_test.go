package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/cms-backend/internal/data/aggregates"
	"github.com/yungbote/cms-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/services"
)

func countNodes(roots []*types.RouteTreeNode) (n, maxDepth int) {
	for _, r := range roots {
		r.Walk(func(_ *types.RouteTreeNode, depth int) bool {
			n++
			if depth > maxDepth {
				maxDepth = depth
			}
			return true
		})
	}
	return n, maxDepth
}

func TestGetTreeLoadsWholeTreeInOneQuery(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()

	// 1 + 2 + 20 + 280 nodes over four levels.
	root := testutil.SeedGroup(t, ctx, h.db, nil, "site", 0)
	for i := 0; i < 2; i++ {
		section := testutil.SeedGroup(t, ctx, h.db, testutil.PtrUUID(root.ID), "s", i)
		for j := 0; j < 10; j++ {
			group := testutil.SeedGroup(t, ctx, h.db, testutil.PtrUUID(section.ID), "g", j)
			for k := 0; k < 14; k++ {
				testutil.SeedRoute(t, ctx, h.db, testutil.PtrUUID(group.ID), "r", k)
			}
		}
	}

	h.queries.Reset()
	roots, err := h.routes.GetTree(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.queries.Count())

	require.Len(t, roots, 1)
	n, depth := countNodes(roots)
	assert.Equal(t, 303, n)
	assert.Equal(t, 3, depth)

	cached, err := h.cache.Has(ctx, services.RouteTreeCacheKeyAll)
	require.NoError(t, err)
	assert.True(t, cached)

	again, err := h.routes.GetTree(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, h.queries.Count(), "cache hit must not query")
	n2, _ := countNodes(again)
	assert.Equal(t, 303, n2)
}

func TestBuildRouteTreeOrdersSiblingsBySortOrderThenID(t *testing.T) {
	parent := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	first := uuid.MustParse("00000000-0000-0000-0000-0000000000ff")

	rows := []*types.RouteNode{
		{ID: high, ParentID: &parent, Kind: types.RouteNodeKindRoute, URI: "b", SortOrder: 5},
		{ID: parent, Kind: types.RouteNodeKindGroup},
		{ID: low, ParentID: &parent, Kind: types.RouteNodeKindRoute, URI: "a", SortOrder: 5},
		{ID: first, ParentID: &parent, Kind: types.RouteNodeKindRoute, URI: "c", SortOrder: 1},
	}

	roots := services.BuildRouteTree(rows)
	require.Len(t, roots, 1)
	var got []uuid.UUID
	for _, ch := range roots[0].Children {
		got = append(got, ch.ID)
	}
	assert.Equal(t, []uuid.UUID{first, low, high}, got)
}

func TestBuildRouteTreeDropsUnreachableNodes(t *testing.T) {
	missing := uuid.New()
	orphan := &types.RouteNode{ID: uuid.New(), ParentID: &missing, Kind: types.RouteNodeKindGroup}
	child := &types.RouteNode{ID: uuid.New(), ParentID: &orphan.ID, Kind: types.RouteNodeKindRoute, URI: "x"}
	root := &types.RouteNode{ID: uuid.New(), Kind: types.RouteNodeKindGroup}

	roots := services.BuildRouteTree([]*types.RouteNode{orphan, child, root})
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)
	assert.Empty(t, roots[0].Children)
}

func TestWriteInvalidatesTreeBeforeListeners(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()
	root := testutil.SeedGroup(t, ctx, h.db, nil, "blog", 0)

	_, err := h.routes.GetTree(ctx)
	require.NoError(t, err)
	_, err = h.routes.GetEnabledTree(ctx)
	require.NoError(t, err)

	var notified int
	h.routes.OnChange(func(ctx context.Context) {
		notified++
		for _, key := range []string{services.RouteTreeCacheKeyAll, services.RouteTreeCacheKeyEnabled} {
			has, err := h.cache.Has(ctx, key)
			assert.NoError(t, err)
			assert.False(t, has, "listener saw cached %s", key)
		}
	})

	created, err := h.routes.Create(ctx, &types.RouteNode{
		ParentID: testutil.PtrUUID(root.ID),
		Kind:     types.RouteNodeKindRoute,
		URI:      "{slug}",
		Methods:  []string{"GET"},
		Action:   "content.show",
		Enabled:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, notified)

	roots, err := h.routes.GetTree(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, created.ID, roots[0].Children[0].ID)

	_, err = h.routes.Update(ctx, created.ID, map[string]interface{}{"enabled": false})
	require.NoError(t, err)
	assert.Equal(t, 2, notified)

	enabled, err := h.routes.GetEnabledTree(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Empty(t, enabled[0].Children)
}

func TestFailedWriteKeepsCacheAndSkipsListeners(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()
	group := testutil.SeedGroup(t, ctx, h.db, nil, "docs", 0)
	child := testutil.SeedGroup(t, ctx, h.db, testutil.PtrUUID(group.ID), "v1", 0)

	_, err := h.routes.GetTree(ctx)
	require.NoError(t, err)
	called := false
	h.routes.OnChange(func(context.Context) { called = true })

	_, err = h.routes.Move(ctx, domainagg.MoveRouteNodeInput{NodeID: group.ID, ParentID: testutil.PtrUUID(child.ID)})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvariantViolation))
	assert.False(t, called)

	has, err := h.cache.Has(ctx, services.RouteTreeCacheKeyAll)
	require.NoError(t, err)
	assert.True(t, has)
}

// stuckTagStore keeps entries but refuses tag invalidation, like a Redis
// store that lost its connection between the read and the write.
type stuckTagStore struct {
	*cache.MemoryStore
}

func (stuckTagStore) DeleteTag(context.Context, string) error {
	return errors.New("redis: connection refused")
}

func TestWriteReportsFailedInvalidationAsRetryable(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()
	mem, err := cache.NewMemoryStore(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })
	c := cache.New(stuckTagStore{mem}, h.log, nil)

	agg := aggregates.NewRouteTreeAggregate(aggregates.RouteTreeAggregateDeps{
		Base:  aggregates.BaseDeps{DB: h.db, Log: h.log},
		Nodes: h.repos.RouteNode,
	})
	routes := services.NewRouteTreeService(h.log, h.repos.RouteNode, agg, c, time.Minute, h.metrics)
	root := testutil.SeedGroup(t, ctx, h.db, nil, "news", 0)

	_, err = routes.GetTree(ctx)
	require.NoError(t, err)
	notified := false
	routes.OnChange(func(context.Context) { notified = true })

	created, err := routes.Create(ctx, &types.RouteNode{
		ParentID: testutil.PtrUUID(root.ID),
		Kind:     types.RouteNodeKindRoute,
		URI:      "latest",
		Methods:  []string{"GET"},
		Action:   "content.show",
		Enabled:  true,
	})
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeRetryable), "got %v", err)
	require.NotNil(t, created, "the committed node is still returned")
	assert.False(t, notified, "listeners must not rebuild from the stale tree")

	rows, err := routes.ListAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestEnabledTreeOmitsDisabledAndTombstonedSubtrees(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()

	root := testutil.SeedGroup(t, ctx, h.db, nil, "", 0)
	live := testutil.SeedRoute(t, ctx, h.db, testutil.PtrUUID(root.ID), "about", 0)
	off := testutil.SeedRouteNode(t, ctx, h.db, &types.RouteNode{
		ParentID: testutil.PtrUUID(root.ID),
		Kind:     types.RouteNodeKindGroup,
		Prefix:   "admin",
		Enabled:  true,
	})
	testutil.SeedRoute(t, ctx, h.db, testutil.PtrUUID(off.ID), "users", 0)
	gone := testutil.SeedGroup(t, ctx, h.db, testutil.PtrUUID(root.ID), "legacy", 2)
	testutil.SeedRoute(t, ctx, h.db, testutil.PtrUUID(gone.ID), "old", 0)

	_, err := h.routes.Update(ctx, off.ID, map[string]interface{}{"enabled": false})
	require.NoError(t, err)
	require.NoError(t, h.routes.Delete(ctx, gone.ID))

	enabled, err := h.routes.GetEnabledTree(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.Len(t, enabled[0].Children, 1)
	assert.Equal(t, live.ID, enabled[0].Children[0].ID)

	all, err := h.routes.GetTree(ctx)
	require.NoError(t, err)
	n, _ := countNodes(all)
	assert.Equal(t, 4, n, "all variant keeps disabled nodes but not tombstones")

	withDeleted, err := h.routes.ListAll(ctx, true)
	require.NoError(t, err)
	assert.Len(t, withDeleted, 6)
	active, err := h.routes.ListAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 5)
}

func TestGetNodeWithAncestorsWiresParents(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()
	root := testutil.SeedGroup(t, ctx, h.db, nil, "shop", 0)
	mid := testutil.SeedGroup(t, ctx, h.db, testutil.PtrUUID(root.ID), "catalog", 0)
	leaf := testutil.SeedRoute(t, ctx, h.db, testutil.PtrUUID(mid.ID), "{slug}", 0)

	node, err := h.routes.GetNodeWithAncestors(ctx, leaf.ID)
	require.NoError(t, err)
	require.NotNil(t, node)
	chain := node.Ancestors()
	require.Len(t, chain, 2)
	assert.Equal(t, mid.ID, chain[0].ID)
	assert.Equal(t, root.ID, chain[1].ID)
	assert.Nil(t, chain[1].Parent)

	missing, err := h.routes.GetNodeWithAncestors(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetNodeWithAncestorsStopsOnCorruptCycle(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()
	a := testutil.SeedGroup(t, ctx, h.db, nil, "a", 0)
	b := testutil.SeedGroup(t, ctx, h.db, testutil.PtrUUID(a.ID), "b", 0)
	require.NoError(t, h.db.Model(&types.RouteNode{}).Where("id = ?", a.ID).Update("parent_id", b.ID).Error)

	_, err := h.routes.GetNodeWithAncestors(ctx, b.ID)
	require.Error(t, err)
	assert.True(t, domainagg.IsCode(err, domainagg.CodeInvariantViolation))
}

func TestDeleteLifecycleThroughService(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()
	node := testutil.SeedGroup(t, ctx, h.db, nil, "promo", 0)

	require.NoError(t, h.routes.Delete(ctx, node.ID))
	roots, err := h.routes.GetTree(ctx)
	require.NoError(t, err)
	assert.Empty(t, roots)

	restored, err := h.routes.Restore(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, node.ID, restored.ID)
	roots, err = h.routes.GetTree(ctx)
	require.NoError(t, err)
	assert.Len(t, roots, 1)

	require.NoError(t, h.routes.ForceDelete(ctx, node.ID))
	rows, err := h.routes.ListAll(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
