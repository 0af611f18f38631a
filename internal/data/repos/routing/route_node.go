package routing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

// ListFilter selects one of the route node query variants.
type ListFilter struct {
	EnabledOnly    bool
	IncludeDeleted bool
}

type RouteNodeRepo interface {
	Create(dbc dbctx.Context, node *types.RouteNode) (*types.RouteNode, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RouteNode, error)
	GetByIDIncludingDeleted(dbc dbctx.Context, id uuid.UUID) (*types.RouteNode, error)
	ListOrdered(dbc dbctx.Context, filter ListFilter) ([]*types.RouteNode, error)
	ListChildren(dbc dbctx.Context, parentID uuid.UUID, includeDeleted bool) ([]*types.RouteNode, error)
	ParentIDOf(dbc dbctx.Context, id uuid.UUID) (*uuid.UUID, bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
	Restore(dbc dbctx.Context, id uuid.UUID) error
	ForceDelete(dbc dbctx.Context, id uuid.UUID) error
}

type routeNodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRouteNodeRepo(db *gorm.DB, baseLog *logger.Logger) RouteNodeRepo {
	return &routeNodeRepo{db: db, log: baseLog.With("repo", "RouteNodeRepo")}
}

func (r *routeNodeRepo) Create(dbc dbctx.Context, node *types.RouteNode) (*types.RouteNode, error) {
	if node == nil {
		return nil, nil
	}
	if err := dbc.DB(r.db).Create(node).Error; err != nil {
		return nil, err
	}
	return node, nil
}

func (r *routeNodeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RouteNode, error) {
	return r.get(dbc.DB(r.db), id)
}

func (r *routeNodeRepo) GetByIDIncludingDeleted(dbc dbctx.Context, id uuid.UUID) (*types.RouteNode, error) {
	return r.get(dbc.DB(r.db).Unscoped(), id)
}

func (r *routeNodeRepo) get(q *gorm.DB, id uuid.UUID) (*types.RouteNode, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.RouteNode
	if err := q.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListOrdered is the single bulk read behind tree assembly:
// ORDER BY parent_id, sort_order, id.
func (r *routeNodeRepo) ListOrdered(dbc dbctx.Context, filter ListFilter) ([]*types.RouteNode, error) {
	q := dbc.DB(r.db)
	if filter.IncludeDeleted {
		q = q.Unscoped()
	}
	if filter.EnabledOnly {
		q = q.Where("enabled = ?", true)
	}
	var out []*types.RouteNode
	if err := q.Order("parent_id ASC, sort_order ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *routeNodeRepo) ListChildren(dbc dbctx.Context, parentID uuid.UUID, includeDeleted bool) ([]*types.RouteNode, error) {
	q := dbc.DB(r.db)
	if includeDeleted {
		q = q.Unscoped()
	}
	var out []*types.RouteNode
	if err := q.Where("parent_id = ?", parentID).
		Order("sort_order ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ParentIDOf returns the parent link of an active node. The bool is false when
// the node does not exist.
func (r *routeNodeRepo) ParentIDOf(dbc dbctx.Context, id uuid.UUID) (*uuid.UUID, bool, error) {
	if id == uuid.Nil {
		return nil, false, nil
	}
	var rows []struct {
		ParentID *uuid.UUID
	}
	if err := dbc.DB(r.db).
		Model(&types.RouteNode{}).
		Select("parent_id").
		Where("id = ?", id).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0].ParentID, true, nil
}

func (r *routeNodeRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.RouteNode{}).Where("id = ?", id).Updates(updates).Error
}

func (r *routeNodeRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.RouteNode{}).Error
}

func (r *routeNodeRepo) Restore(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Unscoped().
		Model(&types.RouteNode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"deleted_at": nil,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *routeNodeRepo) ForceDelete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Unscoped().Where("id = ?", id).Delete(&types.RouteNode{}).Error
}
