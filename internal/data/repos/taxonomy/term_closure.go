package taxonomy

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

// TermClosureRepo is the table access layer for taxonomy_term_closure. Edge
// rewrites that must stay consistent are composed by the term hierarchy aggregate.
type TermClosureRepo interface {
	Insert(dbc dbctx.Context, edges []*types.TermClosure) error
	DeleteForTerm(dbc dbctx.Context, termID uuid.UUID) error
	DeleteCrossEdges(dbc dbctx.Context, subtree []uuid.UUID) error

	ListForTerm(dbc dbctx.Context, termID uuid.UUID) ([]*types.TermClosure, error)
	ListAncestors(dbc dbctx.Context, termID uuid.UUID) ([]*types.TermClosure, error)
	ListDescendants(dbc dbctx.Context, termID uuid.UUID) ([]*types.TermClosure, error)
	ListChildren(dbc dbctx.Context, termID uuid.UUID) ([]uuid.UUID, error)
	ParentOf(dbc dbctx.Context, termID uuid.UUID) (*uuid.UUID, error)
	IsDescendant(dbc dbctx.Context, ancestorID, descendantID uuid.UUID) (bool, error)
	Depth(dbc dbctx.Context, termID uuid.UUID) (int, error)
}

type termClosureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTermClosureRepo(db *gorm.DB, baseLog *logger.Logger) TermClosureRepo {
	return &termClosureRepo{db: db, log: baseLog.With("repo", "TermClosureRepo")}
}

func (r *termClosureRepo) Insert(dbc dbctx.Context, edges []*types.TermClosure) error {
	if len(edges) == 0 {
		return nil
	}
	return dbc.DB(r.db).CreateInBatches(edges, 500).Error
}

// DeleteForTerm removes every edge where the term is ancestor or descendant.
func (r *termClosureRepo) DeleteForTerm(dbc dbctx.Context, termID uuid.UUID) error {
	if termID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Where("ancestor_id = ? OR descendant_id = ?", termID, termID).
		Delete(&types.TermClosure{}).Error
}

// DeleteCrossEdges removes edges linking the subtree to ancestors outside it.
func (r *termClosureRepo) DeleteCrossEdges(dbc dbctx.Context, subtree []uuid.UUID) error {
	if len(subtree) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Where("descendant_id IN ? AND ancestor_id NOT IN ?", subtree, subtree).
		Delete(&types.TermClosure{}).Error
}

func (r *termClosureRepo) ListForTerm(dbc dbctx.Context, termID uuid.UUID) ([]*types.TermClosure, error) {
	var out []*types.TermClosure
	if termID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("ancestor_id = ? OR descendant_id = ?", termID, termID).
		Order("ancestor_id ASC, descendant_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListAncestors returns the edges above the term (depth > 0), nearest first.
func (r *termClosureRepo) ListAncestors(dbc dbctx.Context, termID uuid.UUID) ([]*types.TermClosure, error) {
	var out []*types.TermClosure
	if termID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("descendant_id = ? AND depth > 0", termID).
		Order("depth ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListDescendants returns the term's subtree edges including the self-edge.
func (r *termClosureRepo) ListDescendants(dbc dbctx.Context, termID uuid.UUID) ([]*types.TermClosure, error) {
	var out []*types.TermClosure
	if termID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("ancestor_id = ?", termID).
		Order("depth ASC, descendant_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *termClosureRepo) ListChildren(dbc dbctx.Context, termID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	if termID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Model(&types.TermClosure{}).
		Where("ancestor_id = ? AND depth = 1", termID).
		Order("descendant_id ASC").
		Pluck("descendant_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *termClosureRepo) ParentOf(dbc dbctx.Context, termID uuid.UUID) (*uuid.UUID, error) {
	if termID == uuid.Nil {
		return nil, nil
	}
	var rows []*types.TermClosure
	if err := dbc.DB(r.db).
		Where("descendant_id = ? AND depth = 1", termID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	id := rows[0].AncestorID
	return &id, nil
}

// IsDescendant reports whether an edge (ancestor, descendant, depth > 0) exists.
func (r *termClosureRepo) IsDescendant(dbc dbctx.Context, ancestorID, descendantID uuid.UUID) (bool, error) {
	if ancestorID == uuid.Nil || descendantID == uuid.Nil {
		return false, nil
	}
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.TermClosure{}).
		Where("ancestor_id = ? AND descendant_id = ? AND depth > 0", ancestorID, descendantID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Depth is the distance from the term to its farthest ancestor (0 for roots).
func (r *termClosureRepo) Depth(dbc dbctx.Context, termID uuid.UUID) (int, error) {
	if termID == uuid.Nil {
		return 0, nil
	}
	var row struct {
		Depth *int
	}
	if err := dbc.DB(r.db).
		Model(&types.TermClosure{}).
		Where("descendant_id = ?", termID).
		Select("MAX(depth) AS depth").
		Scan(&row).Error; err != nil {
		return 0, err
	}
	if row.Depth == nil {
		return 0, nil
	}
	return *row.Depth, nil
}
