package blueprints

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type BlueprintPathRepo interface {
	Create(dbc dbctx.Context, rows []*types.BlueprintPath) ([]*types.BlueprintPath, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BlueprintPath, error)
	ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintPath, error)
	ListByEmbed(dbc dbctx.Context, embedID uuid.UUID) ([]*types.BlueprintPath, error)
	ListByFullPaths(dbc dbctx.Context, blueprintID uuid.UUID, fullPaths []string) ([]*types.BlueprintPath, error)
	ListUnder(dbc dbctx.Context, blueprintID uuid.UUID, fullPath string) ([]*types.BlueprintPath, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	DeleteByEmbed(dbc dbctx.Context, embedID uuid.UUID) (int64, error)
}

type blueprintPathRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlueprintPathRepo(db *gorm.DB, baseLog *logger.Logger) BlueprintPathRepo {
	return &blueprintPathRepo{db: db, log: baseLog.With("repo", "BlueprintPathRepo")}
}

func (r *blueprintPathRepo) Create(dbc dbctx.Context, rows []*types.BlueprintPath) ([]*types.BlueprintPath, error) {
	if len(rows) == 0 {
		return []*types.BlueprintPath{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *blueprintPathRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BlueprintPath, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.BlueprintPath
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *blueprintPathRepo) ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintPath, error) {
	var out []*types.BlueprintPath
	if blueprintID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("blueprint_id = ?", blueprintID).
		Order("full_path ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *blueprintPathRepo) ListByEmbed(dbc dbctx.Context, embedID uuid.UUID) ([]*types.BlueprintPath, error) {
	var out []*types.BlueprintPath
	if embedID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("blueprint_embed_id = ?", embedID).
		Order("full_path ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *blueprintPathRepo) ListByFullPaths(dbc dbctx.Context, blueprintID uuid.UUID, fullPaths []string) ([]*types.BlueprintPath, error) {
	var out []*types.BlueprintPath
	if blueprintID == uuid.Nil || len(fullPaths) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("blueprint_id = ? AND full_path IN ?", blueprintID, fullPaths).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListUnder returns the paths nested below fullPath, not including it.
func (r *blueprintPathRepo) ListUnder(dbc dbctx.Context, blueprintID uuid.UUID, fullPath string) ([]*types.BlueprintPath, error) {
	var out []*types.BlueprintPath
	if blueprintID == uuid.Nil || fullPath == "" {
		return out, nil
	}
	prefix := fullPath + "."
	if err := dbc.DB(r.db).
		Where("blueprint_id = ? AND substr(full_path, 1, ?) = ?", blueprintID, len(prefix), prefix).
		Order("full_path ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *blueprintPathRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.BlueprintPath{}).Where("id = ?", id).Updates(updates).Error
}

func (r *blueprintPathRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.BlueprintPath{}).Error
}

func (r *blueprintPathRepo) DeleteByEmbed(dbc dbctx.Context, embedID uuid.UUID) (int64, error) {
	if embedID == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("blueprint_embed_id = ?", embedID).Delete(&types.BlueprintPath{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
