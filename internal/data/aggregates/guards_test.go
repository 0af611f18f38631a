package aggregates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/cms-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

func TestUniqueSortedIDs(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	got := uniqueSortedIDs([]uuid.UUID{a, uuid.Nil, b, a})
	if len(got) != 2 || got[0] != b || got[1] != a {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestLockGuardRequireLocked(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	tax := testutil.SeedTaxonomy(t, ctx, db, "topics")
	term := testutil.SeedTerm(t, ctx, db, tax.ID, "news")

	if SupportsRowLocks(db) != (db.Dialector.Name() == "postgres") {
		t.Fatalf("unexpected row lock support for %s", db.Dialector.Name())
	}

	guard := NewLockGuard(db)
	err := db.Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := guard.RequireLocked(dbc, "op", termTable, term.ID); err != nil {
			t.Fatalf("lock existing term: %v", err)
		}
		missing := uuid.New()
		err := guard.RequireLocked(dbc, "op", termTable, term.ID, missing)
		if !domainagg.IsCode(err, domainagg.CodeNotFound) {
			t.Fatalf("expected not_found for missing row, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestLockGuardRequiresTable(t *testing.T) {
	guard := NewLockGuard(testutil.DB(t))
	if _, err := guard.LockIDs(dbctx.Context{Ctx: context.Background()}, " ", uuid.New()); err == nil {
		t.Fatalf("expected error for empty table")
	}
}

func TestLockGuardStaysInsideContract(t *testing.T) {
	guard := NewLockGuard(testutil.DB(t)).For(domainagg.RouteTreeAggregateContract)
	dbc := dbctx.Context{Ctx: context.Background()}

	if _, err := guard.LockIDs(dbc, routeNodeTable, uuid.New()); err != nil {
		t.Fatalf("route_node is owned by the route tree: %v", err)
	}
	_, err := guard.LockIDs(dbc, termTable, uuid.New())
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("expected internal error for foreign table, got %v", err)
	}
}

func TestContractsCoverLockedTables(t *testing.T) {
	owned := map[string]string{
		termTable:           domainagg.TermHierarchyAggregateContract.Name,
		routeNodeTable:      domainagg.RouteTreeAggregateContract.Name,
		blueprintTable:      domainagg.BlueprintAggregateContract.Name,
		blueprintEmbedTable: domainagg.BlueprintAggregateContract.Name,
	}
	for table, name := range owned {
		var owners []string
		for _, c := range domainagg.Contracts() {
			if c.Owns(table) {
				owners = append(owners, c.Name)
			}
			if !c.RowLocks() {
				t.Fatalf("%s should lock rows", c.Name)
			}
		}
		if len(owners) != 1 || owners[0] != name {
			t.Fatalf("%s owners=%v want %s", table, owners, name)
		}
	}
}
