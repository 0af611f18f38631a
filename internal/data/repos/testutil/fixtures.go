package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
)

func SeedTaxonomy(tb testing.TB, ctx context.Context, tx *gorm.DB, code string) *types.Taxonomy {
	tb.Helper()
	row := &types.Taxonomy{
		ID:           uuid.New(),
		Code:         code,
		Name:         code,
		Hierarchical: true,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed taxonomy: %v", err)
	}
	return row
}

// SeedTerm creates a term with its self-edge only.
func SeedTerm(tb testing.TB, ctx context.Context, tx *gorm.DB, taxonomyID uuid.UUID, slug string) *types.TaxonomyTerm {
	tb.Helper()
	row := &types.TaxonomyTerm{
		ID:         uuid.New(),
		TaxonomyID: taxonomyID,
		Name:       slug,
		Slug:       slug,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed term: %v", err)
	}
	edge := &types.TermClosure{AncestorID: row.ID, DescendantID: row.ID, Depth: 0}
	if err := tx.WithContext(ctx).Create(edge).Error; err != nil {
		tb.Fatalf("seed term self-edge: %v", err)
	}
	return row
}

func SeedGroup(tb testing.TB, ctx context.Context, tx *gorm.DB, parentID *uuid.UUID, prefix string, sortOrder int) *types.RouteNode {
	tb.Helper()
	return SeedRouteNode(tb, ctx, tx, &types.RouteNode{
		ParentID:  parentID,
		Kind:      types.RouteNodeKindGroup,
		Name:      prefix,
		Prefix:    prefix,
		SortOrder: sortOrder,
		Enabled:   true,
	})
}

func SeedRoute(tb testing.TB, ctx context.Context, tx *gorm.DB, parentID *uuid.UUID, uri string, sortOrder int) *types.RouteNode {
	tb.Helper()
	return SeedRouteNode(tb, ctx, tx, &types.RouteNode{
		ParentID:   parentID,
		Kind:       types.RouteNodeKindRoute,
		Name:       uri,
		URI:        uri,
		Methods:    []string{"GET"},
		Action:     "content.show",
		ActionType: "content",
		SortOrder:  sortOrder,
		Enabled:    true,
	})
}

func SeedRouteNode(tb testing.TB, ctx context.Context, tx *gorm.DB, node *types.RouteNode) *types.RouteNode {
	tb.Helper()
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	if err := tx.WithContext(ctx).Create(node).Error; err != nil {
		tb.Fatalf("seed route node: %v", err)
	}
	return node
}

func SeedBlueprint(tb testing.TB, ctx context.Context, tx *gorm.DB, code string) *types.Blueprint {
	tb.Helper()
	row := &types.Blueprint{ID: uuid.New(), Code: code, Name: code}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed blueprint: %v", err)
	}
	return row
}

// SeedPath creates an authored path. fullPath defaults to the parent's full
// path joined with name.
func SeedPath(tb testing.TB, ctx context.Context, tx *gorm.DB, blueprintID uuid.UUID, parent *types.BlueprintPath, name, dataType string) *types.BlueprintPath {
	tb.Helper()
	row := &types.BlueprintPath{
		ID:          uuid.New(),
		BlueprintID: blueprintID,
		Name:        name,
		FullPath:    name,
		DataType:    dataType,
	}
	if parent != nil {
		row.ParentID = PtrUUID(parent.ID)
		row.FullPath = parent.FullPath + "." + name
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed blueprint path: %v", err)
	}
	return row
}
