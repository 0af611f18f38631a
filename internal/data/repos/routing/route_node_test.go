package routing

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

func TestRouteNodeRepoVariants(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewRouteNodeRepo(db, testutil.Logger(t))

	api := testutil.SeedGroup(t, ctx, db, nil, "api", 0)
	users := testutil.SeedRoute(t, ctx, db, testutil.PtrUUID(api.ID), "users", 1)
	posts := testutil.SeedRoute(t, ctx, db, testutil.PtrUUID(api.ID), "posts", 0)
	hidden := testutil.SeedRouteNode(t, ctx, db, &types.RouteNode{
		ParentID: testutil.PtrUUID(api.ID),
		Kind:     types.RouteNodeKindRoute,
		URI:      "hidden",
		Enabled:  false,
	})

	all, err := repo.ListOrdered(dbc, ListFilter{})
	if err != nil || len(all) != 4 {
		t.Fatalf("ListOrdered: err=%v len=%d", err, len(all))
	}
	enabled, err := repo.ListOrdered(dbc, ListFilter{EnabledOnly: true})
	if err != nil || len(enabled) != 3 {
		t.Fatalf("ListOrdered(enabled): err=%v len=%d", err, len(enabled))
	}

	children, err := repo.ListChildren(dbc, api.ID, false)
	if err != nil || len(children) != 3 {
		t.Fatalf("ListChildren: err=%v len=%d", err, len(children))
	}
	if children[len(children)-1].ID != users.ID {
		t.Fatalf("ListChildren: expected users last, got %s", children[len(children)-1].URI)
	}
	if children[0].SortOrder != 0 || children[1].SortOrder != 0 {
		t.Fatalf("ListChildren: expected two sort_order=0 rows first")
	}

	if err := repo.SoftDelete(dbc, posts.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if got, err := repo.GetByID(dbc, posts.ID); err != nil || got != nil {
		t.Fatalf("GetByID after soft delete: err=%v got=%v", err, got)
	}
	if got, err := repo.GetByIDIncludingDeleted(dbc, posts.ID); err != nil || got == nil || !got.DeletedAt.Valid {
		t.Fatalf("GetByIDIncludingDeleted: err=%v got=%v", err, got)
	}
	withDeleted, err := repo.ListOrdered(dbc, ListFilter{IncludeDeleted: true})
	if err != nil || len(withDeleted) != 4 {
		t.Fatalf("ListOrdered(include deleted): err=%v len=%d", err, len(withDeleted))
	}

	if err := repo.Restore(dbc, posts.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got, err := repo.GetByID(dbc, posts.ID); err != nil || got == nil {
		t.Fatalf("GetByID after restore: err=%v got=%v", err, got)
	}

	parentID, ok, err := repo.ParentIDOf(dbc, users.ID)
	if err != nil || !ok || parentID == nil || *parentID != api.ID {
		t.Fatalf("ParentIDOf: err=%v ok=%v parent=%v", err, ok, parentID)
	}
	if _, ok, err := repo.ParentIDOf(dbc, uuid.New()); err != nil || ok {
		t.Fatalf("ParentIDOf(missing): err=%v ok=%v", err, ok)
	}

	if err := repo.ForceDelete(dbc, hidden.ID); err != nil {
		t.Fatalf("ForceDelete: %v", err)
	}
	if got, err := repo.GetByIDIncludingDeleted(dbc, hidden.ID); err != nil || got != nil {
		t.Fatalf("GetByIDIncludingDeleted after force delete: err=%v got=%v", err, got)
	}
}

func TestReservedRouteRepoUpsert(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewReservedRouteRepo(db, testutil.Logger(t))

	if err := repo.Upsert(dbc, []*types.ReservedRoute{
		{Path: "shop", Kind: types.ReservedKindPrefix, Source: "plugin:shop"},
		{Path: "cart", Kind: types.ReservedKindPath, Source: "plugin:shop"},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(dbc, []*types.ReservedRoute{
		{Path: "cart", Kind: types.ReservedKindPath, Source: "system"},
	}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	rows, err := repo.List(dbc)
	if err != nil || len(rows) != 2 {
		t.Fatalf("List: err=%v len=%d", err, len(rows))
	}
	bySource, err := repo.ListBySource(dbc, "system")
	if err != nil || len(bySource) != 1 || bySource[0].Path != "cart" {
		t.Fatalf("ListBySource: err=%v rows=%v", err, bySource)
	}

	removed, err := repo.DeleteBySource(dbc, "plugin:shop")
	if err != nil || removed != 1 {
		t.Fatalf("DeleteBySource: err=%v removed=%d", err, removed)
	}
	if ok, err := repo.Delete(dbc, "cart", types.ReservedKindPath); err != nil || !ok {
		t.Fatalf("Delete: err=%v ok=%v", err, ok)
	}
}
