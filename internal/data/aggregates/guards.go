package aggregates

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

// LockGuard serializes writers on the rows an invariant check reads. A guard
// bound to a contract only locks tables inside that contract.
type LockGuard struct {
	db       *gorm.DB
	contract *domainagg.Contract
}

func NewLockGuard(db *gorm.DB) LockGuard {
	return LockGuard{db: db}
}

// For binds the guard to an aggregate contract.
func (g LockGuard) For(c domainagg.Contract) LockGuard {
	g.contract = &c
	return g
}

func (g LockGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.DB(nil), nil
	}
	if g.db != nil {
		return dbc.DB(g.db), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// SupportsRowLocks is false for SQLite, which serializes writers with a
// database-level lock and rejects FOR UPDATE.
func SupportsRowLocks(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	return db.Dialector.Name() != "sqlite"
}

// LockIDs selects the given rows FOR UPDATE, in ascending id order so
// concurrent writers acquire locks in the same sequence. Soft-deleted rows are
// locked too. It returns the ids that exist.
func (g LockGuard) LockIDs(dbc dbctx.Context, table string, ids ...uuid.UUID) (map[uuid.UUID]bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return nil, err
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, ValidationError("table is required for LockIDs")
	}
	if g.contract != nil && !g.contract.Owns(table) {
		return nil, domainagg.NewError(domainagg.CodeInternal, "aggregate.lock",
			fmt.Sprintf("%s does not own table %s", g.contract.Name, table), nil)
	}
	ids = uniqueSortedIDs(ids)
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	q := db.Table(table).Select("id").Where("id IN ?", ids).Order("id ASC")
	if SupportsRowLocks(db) && (g.contract == nil || g.contract.RowLocks()) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []uuid.UUID
	if err := q.Pluck("id", &rows).Error; err != nil {
		return nil, fmt.Errorf("lock %s: %w", table, err)
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

// RequireLocked locks ids and fails with not_found when any is missing.
func (g LockGuard) RequireLocked(dbc dbctx.Context, op, table string, ids ...uuid.UUID) error {
	found, err := g.LockIDs(dbc, table, ids...)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id != uuid.Nil && !found[id] {
			return notFound(op, table, id)
		}
	}
	return nil
}

func uniqueSortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
