package taxonomy

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type TaxonomyRepo interface {
	Create(dbc dbctx.Context, row *types.Taxonomy) (*types.Taxonomy, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Taxonomy, error)
	GetByCode(dbc dbctx.Context, code string) (*types.Taxonomy, error)
	List(dbc dbctx.Context) ([]*types.Taxonomy, error)
}

type taxonomyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaxonomyRepo(db *gorm.DB, baseLog *logger.Logger) TaxonomyRepo {
	return &taxonomyRepo{db: db, log: baseLog.With("repo", "TaxonomyRepo")}
}

func (r *taxonomyRepo) Create(dbc dbctx.Context, row *types.Taxonomy) (*types.Taxonomy, error) {
	if row == nil {
		return nil, nil
	}
	row.Code = strings.TrimSpace(row.Code)
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *taxonomyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Taxonomy, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.Taxonomy
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *taxonomyRepo) GetByCode(dbc dbctx.Context, code string) (*types.Taxonomy, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var rows []*types.Taxonomy
	if err := dbc.DB(r.db).Where("code = ?", code).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *taxonomyRepo) List(dbc dbctx.Context) ([]*types.Taxonomy, error) {
	var out []*types.Taxonomy
	if err := dbc.DB(r.db).Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
