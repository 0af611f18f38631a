package routing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type ReservedRouteRepo interface {
	List(dbc dbctx.Context) ([]*types.ReservedRoute, error)
	ListBySource(dbc dbctx.Context, source string) ([]*types.ReservedRoute, error)
	Upsert(dbc dbctx.Context, rows []*types.ReservedRoute) error
	Delete(dbc dbctx.Context, path, kind string) (bool, error)
	DeleteBySource(dbc dbctx.Context, source string) (int64, error)
}

type reservedRouteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReservedRouteRepo(db *gorm.DB, baseLog *logger.Logger) ReservedRouteRepo {
	return &reservedRouteRepo{db: db, log: baseLog.With("repo", "ReservedRouteRepo")}
}

func (r *reservedRouteRepo) List(dbc dbctx.Context) ([]*types.ReservedRoute, error) {
	var out []*types.ReservedRoute
	if err := dbc.DB(r.db).Order("kind ASC, path ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reservedRouteRepo) ListBySource(dbc dbctx.Context, source string) ([]*types.ReservedRoute, error) {
	var out []*types.ReservedRoute
	if err := dbc.DB(r.db).
		Where("source = ?", source).
		Order("kind ASC, path ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert inserts rows keyed by (path, kind); an existing row takes the new source.
func (r *reservedRouteRepo) Upsert(dbc dbctx.Context, rows []*types.ReservedRoute) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "updated_at"}),
	}).Create(&rows).Error
}

func (r *reservedRouteRepo) Delete(dbc dbctx.Context, path, kind string) (bool, error) {
	res := dbc.DB(r.db).Where("path = ? AND kind = ?", path, kind).Delete(&types.ReservedRoute{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *reservedRouteRepo) DeleteBySource(dbc dbctx.Context, source string) (int64, error) {
	res := dbc.DB(r.db).Where("source = ?", source).Delete(&types.ReservedRoute{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
