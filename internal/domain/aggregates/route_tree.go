package aggregates

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/cms-backend/internal/domain"
)

var RouteTreeAggregateContract = Contract{
	Name:       "Routing.RouteTreeAggregate",
	Tables:     []string{"route_node"},
	LockPolicy: LockPolicyRowForUpdate,
	Notes:      "Owns route_node writes. Parent links must stay acyclic and point at group nodes. Tree projections are cached by the service layer.",
}

type MoveRouteNodeInput struct {
	NodeID    uuid.UUID
	ParentID  *uuid.UUID
	SortOrder *int
}

// RouteTreeAggregate serializes writes to the route tree. Callers invalidate
// derived tree projections after each successful call.
type RouteTreeAggregate interface {
	Aggregate
	Create(ctx context.Context, node *types.RouteNode) (*types.RouteNode, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*types.RouteNode, error)
	Move(ctx context.Context, in MoveRouteNodeInput) (*types.RouteNode, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*types.RouteNode, error)
	ForceDelete(ctx context.Context, id uuid.UUID) error
}
