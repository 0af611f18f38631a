package blueprints

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type BlueprintRepo interface {
	Create(dbc dbctx.Context, row *types.Blueprint) (*types.Blueprint, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Blueprint, error)
	GetByCode(dbc dbctx.Context, code string) (*types.Blueprint, error)
	List(dbc dbctx.Context) ([]*types.Blueprint, error)
}

type blueprintRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlueprintRepo(db *gorm.DB, baseLog *logger.Logger) BlueprintRepo {
	return &blueprintRepo{db: db, log: baseLog.With("repo", "BlueprintRepo")}
}

func (r *blueprintRepo) Create(dbc dbctx.Context, row *types.Blueprint) (*types.Blueprint, error) {
	if row == nil {
		return nil, nil
	}
	row.Code = strings.TrimSpace(row.Code)
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *blueprintRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Blueprint, error) {
	return r.first(dbc.DB(r.db).Where("id = ?", id), id != uuid.Nil)
}

func (r *blueprintRepo) GetByCode(dbc dbctx.Context, code string) (*types.Blueprint, error) {
	code = strings.TrimSpace(code)
	return r.first(dbc.DB(r.db).Where("code = ?", code), code != "")
}

func (r *blueprintRepo) first(q *gorm.DB, ok bool) (*types.Blueprint, error) {
	if !ok {
		return nil, nil
	}
	var rows []*types.Blueprint
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *blueprintRepo) List(dbc dbctx.Context) ([]*types.Blueprint, error) {
	var out []*types.Blueprint
	if err := dbc.DB(r.db).Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
