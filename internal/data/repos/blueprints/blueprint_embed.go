package blueprints

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type BlueprintEmbedRepo interface {
	Create(dbc dbctx.Context, row *types.BlueprintEmbed) (*types.BlueprintEmbed, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BlueprintEmbed, error)
	ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintEmbed, error)
	ListByEmbedded(dbc dbctx.Context, embeddedBlueprintID uuid.UUID) ([]*types.BlueprintEmbed, error)
	ListByHostPaths(dbc dbctx.Context, hostPathIDs []uuid.UUID) ([]*types.BlueprintEmbed, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type blueprintEmbedRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBlueprintEmbedRepo(db *gorm.DB, baseLog *logger.Logger) BlueprintEmbedRepo {
	return &blueprintEmbedRepo{db: db, log: baseLog.With("repo", "BlueprintEmbedRepo")}
}

func (r *blueprintEmbedRepo) Create(dbc dbctx.Context, row *types.BlueprintEmbed) (*types.BlueprintEmbed, error) {
	if row == nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *blueprintEmbedRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.BlueprintEmbed, error) {
	return r.first(dbc.DB(r.db), id)
}

func (r *blueprintEmbedRepo) first(q *gorm.DB, id uuid.UUID) (*types.BlueprintEmbed, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.BlueprintEmbed
	if err := q.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *blueprintEmbedRepo) ListByBlueprint(dbc dbctx.Context, blueprintID uuid.UUID) ([]*types.BlueprintEmbed, error) {
	var out []*types.BlueprintEmbed
	if blueprintID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("blueprint_id = ?", blueprintID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByEmbedded returns the embeds that copy fields from embeddedBlueprintID,
// one row per embed even when a host embeds the same blueprint twice.
func (r *blueprintEmbedRepo) ListByEmbedded(dbc dbctx.Context, embeddedBlueprintID uuid.UUID) ([]*types.BlueprintEmbed, error) {
	var out []*types.BlueprintEmbed
	if embeddedBlueprintID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("embedded_blueprint_id = ?", embeddedBlueprintID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *blueprintEmbedRepo) ListByHostPaths(dbc dbctx.Context, hostPathIDs []uuid.UUID) ([]*types.BlueprintEmbed, error) {
	var out []*types.BlueprintEmbed
	if len(hostPathIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("host_path_id IN ?", hostPathIDs).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *blueprintEmbedRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.BlueprintEmbed{}).Error
}
