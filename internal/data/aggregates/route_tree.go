package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/data/repos"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

const routeNodeTable = "route_node"

// Columns writable through Update. Parent links go through Move.
var routeNodeUpdatable = map[string]bool{
	"name":        true,
	"sort_order":  true,
	"enabled":     true,
	"prefix":      true,
	"domain":      true,
	"namespace":   true,
	"middleware":  true,
	"uri":         true,
	"methods":     true,
	"action":      true,
	"action_type": true,
}

type RouteTreeAggregateDeps struct {
	Base BaseDeps

	Nodes repos.RouteNodeRepo
}

type routeTreeAggregate struct {
	deps RouteTreeAggregateDeps
}

func NewRouteTreeAggregate(deps RouteTreeAggregateDeps) domainagg.RouteTreeAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Locks = deps.Base.Locks.For(domainagg.RouteTreeAggregateContract)
	return &routeTreeAggregate{deps: deps}
}

func (a *routeTreeAggregate) Contract() domainagg.Contract {
	return domainagg.RouteTreeAggregateContract
}

func (a *routeTreeAggregate) Create(ctx context.Context, node *types.RouteNode) (*types.RouteNode, error) {
	const op = "Routing.RouteTree.Create"
	if a.deps.Nodes == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "route tree repos not configured", nil)
	}
	if node == nil {
		return nil, domainagg.ValidationError(op, "missing node")
	}
	if err := validateRouteNode(op, node); err != nil {
		return nil, err
	}
	var out *types.RouteNode
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if node.ParentID != nil {
			if err := a.requireGroupParent(dbc, op, *node.ParentID); err != nil {
				return err
			}
		}
		created, err := a.deps.Nodes.Create(dbc, node)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

func (a *routeTreeAggregate) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*types.RouteNode, error) {
	const op = "Routing.RouteTree.Update"
	if a.deps.Nodes == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "route tree repos not configured", nil)
	}
	clean := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		k = strings.TrimSpace(k)
		if !routeNodeUpdatable[k] {
			return nil, domainagg.ValidationError(op, fmt.Sprintf("field %q is not updatable", k))
		}
		clean[k] = v
	}
	var out *types.RouteNode
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Base.Locks.RequireLocked(dbc, op, routeNodeTable, id); err != nil {
			return err
		}
		current, err := a.deps.Nodes.GetByID(dbc, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound(op, "route node", id)
		}
		if len(clean) > 0 {
			if err := a.deps.Nodes.UpdateFields(dbc, id, clean); err != nil {
				return err
			}
		}
		out, err = a.deps.Nodes.GetByID(dbc, id)
		if err != nil {
			return err
		}
		return validateRouteNode(op, out)
	})
	return out, err
}

// Move reparents a node (nil parent makes it a root) and optionally sets its
// sort order. The new parent must be an active group outside the node's subtree.
func (a *routeTreeAggregate) Move(ctx context.Context, in domainagg.MoveRouteNodeInput) (*types.RouteNode, error) {
	const op = "Routing.RouteTree.Move"
	if a.deps.Nodes == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "route tree repos not configured", nil)
	}
	var out *types.RouteNode
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ids := []uuid.UUID{in.NodeID}
		if in.ParentID != nil {
			ids = append(ids, *in.ParentID)
		}
		if err := a.deps.Base.Locks.RequireLocked(dbc, op, routeNodeTable, ids...); err != nil {
			return err
		}
		node, err := a.deps.Nodes.GetByID(dbc, in.NodeID)
		if err != nil {
			return err
		}
		if node == nil {
			return notFound(op, "route node", in.NodeID)
		}
		if in.ParentID != nil {
			if *in.ParentID == node.ID {
				return domainagg.CycleError(op, "node cannot be its own parent")
			}
			if err := a.requireGroupParent(dbc, op, *in.ParentID); err != nil {
				return err
			}
			below, err := a.isAncestor(dbc, node.ID, *in.ParentID)
			if err != nil {
				return err
			}
			if below {
				return domainagg.CycleError(op, "parent is a descendant of node")
			}
		}
		updates := map[string]interface{}{"parent_id": nil}
		if in.ParentID != nil {
			updates["parent_id"] = *in.ParentID
		}
		if in.SortOrder != nil {
			updates["sort_order"] = *in.SortOrder
		}
		if err := a.deps.Nodes.UpdateFields(dbc, node.ID, updates); err != nil {
			return err
		}
		out, err = a.deps.Nodes.GetByID(dbc, node.ID)
		return err
	})
	return out, err
}

func (a *routeTreeAggregate) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const op = "Routing.RouteTree.SoftDelete"
	if a.deps.Nodes == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "route tree repos not configured", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Base.Locks.RequireLocked(dbc, op, routeNodeTable, id); err != nil {
			return err
		}
		node, err := a.deps.Nodes.GetByID(dbc, id)
		if err != nil {
			return err
		}
		if node == nil {
			return notFound(op, "route node", id)
		}
		return a.deps.Nodes.SoftDelete(dbc, id)
	})
}

func (a *routeTreeAggregate) Restore(ctx context.Context, id uuid.UUID) (*types.RouteNode, error) {
	const op = "Routing.RouteTree.Restore"
	if a.deps.Nodes == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "route tree repos not configured", nil)
	}
	var out *types.RouteNode
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Base.Locks.RequireLocked(dbc, op, routeNodeTable, id); err != nil {
			return err
		}
		node, err := a.deps.Nodes.GetByIDIncludingDeleted(dbc, id)
		if err != nil {
			return err
		}
		if node == nil {
			return notFound(op, "route node", id)
		}
		if node.DeletedAt.Valid {
			if err := a.deps.Nodes.Restore(dbc, id); err != nil {
				return err
			}
		}
		out, err = a.deps.Nodes.GetByID(dbc, id)
		return err
	})
	return out, err
}

// ForceDelete removes the row permanently. Nodes that still have children,
// active or tombstoned, are rejected.
func (a *routeTreeAggregate) ForceDelete(ctx context.Context, id uuid.UUID) error {
	const op = "Routing.RouteTree.ForceDelete"
	if a.deps.Nodes == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "route tree repos not configured", nil)
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Base.Locks.RequireLocked(dbc, op, routeNodeTable, id); err != nil {
			return err
		}
		children, err := a.deps.Nodes.ListChildren(dbc, id, true)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return domainagg.PreconditionError(op, fmt.Sprintf("route node has %d children", len(children)), domainagg.ErrHasChildren)
		}
		return a.deps.Nodes.ForceDelete(dbc, id)
	})
}

func (a *routeTreeAggregate) requireGroupParent(dbc dbctx.Context, op string, parentID uuid.UUID) error {
	parent, err := a.deps.Nodes.GetByID(dbc, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return notFound(op, "parent route node", parentID)
	}
	if !parent.IsGroup() {
		return domainagg.PreconditionError(op, "parent must be a group", domainagg.ErrParentNotGroup)
	}
	return nil
}

// isAncestor walks parent links upward from start looking for nodeID.
func (a *routeTreeAggregate) isAncestor(dbc dbctx.Context, nodeID, start uuid.UUID) (bool, error) {
	seen := map[uuid.UUID]bool{}
	cur := &start
	for cur != nil {
		if *cur == nodeID {
			return true, nil
		}
		if seen[*cur] {
			return false, InvariantError("route tree already contains a cycle")
		}
		seen[*cur] = true
		parent, ok, err := a.deps.Nodes.ParentIDOf(dbc, *cur)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		cur = parent
	}
	return false, nil
}

func validateRouteNode(op string, node *types.RouteNode) error {
	switch node.Kind {
	case types.RouteNodeKindGroup:
		return nil
	case types.RouteNodeKindRoute:
		if strings.TrimSpace(node.URI) == "" && strings.TrimSpace(node.Action) == "" {
			return domainagg.ValidationError(op, "route requires uri or action")
		}
		return nil
	default:
		return domainagg.ValidationError(op, fmt.Sprintf("unknown node kind %q", node.Kind))
	}
}
