package taxonomy

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type TermRepo interface {
	Create(dbc dbctx.Context, row *types.TaxonomyTerm) (*types.TaxonomyTerm, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TaxonomyTerm, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.TaxonomyTerm, error)
	ListByTaxonomy(dbc dbctx.Context, taxonomyID uuid.UUID) ([]*types.TaxonomyTerm, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
}

type termRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTermRepo(db *gorm.DB, baseLog *logger.Logger) TermRepo {
	return &termRepo{db: db, log: baseLog.With("repo", "TermRepo")}
}

func (r *termRepo) Create(dbc dbctx.Context, row *types.TaxonomyTerm) (*types.TaxonomyTerm, error) {
	if row == nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *termRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.TaxonomyTerm, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *termRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.TaxonomyTerm, error) {
	var out []*types.TaxonomyTerm
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *termRepo) ListByTaxonomy(dbc dbctx.Context, taxonomyID uuid.UUID) ([]*types.TaxonomyTerm, error) {
	var out []*types.TaxonomyTerm
	if taxonomyID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("taxonomy_id = ?", taxonomyID).
		Order("sort_order ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *termRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.TaxonomyTerm{}).Where("id = ?", id).Updates(updates).Error
}

func (r *termRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.TaxonomyTerm{}).Error
}
