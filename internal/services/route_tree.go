package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/data/repos"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

const (
	RouteTreeCacheKeyAll     = "route_tree:v1:all"
	RouteTreeCacheKeyEnabled = "route_tree:v1:enabled"
	RouteTreeCacheTag        = "route_tree"
)

// RouteTreeListener runs after every committed route tree write, once the
// cache entry is gone.
type RouteTreeListener func(ctx context.Context)

type RouteTreeService interface {
	GetTree(ctx context.Context) ([]*types.RouteTreeNode, error)
	GetEnabledTree(ctx context.Context) ([]*types.RouteTreeNode, error)
	GetNodeWithAncestors(ctx context.Context, id uuid.UUID) (*types.RouteTreeNode, error)
	ListAll(ctx context.Context, includeDeleted bool) ([]*types.RouteNode, error)

	Create(ctx context.Context, node *types.RouteNode) (*types.RouteNode, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*types.RouteNode, error)
	Move(ctx context.Context, in domainagg.MoveRouteNodeInput) (*types.RouteNode, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*types.RouteNode, error)
	ForceDelete(ctx context.Context, id uuid.UUID) error

	Invalidate(ctx context.Context) error
	OnChange(fn RouteTreeListener)
}

type routeTreeService struct {
	log     *logger.Logger
	nodes   repos.RouteNodeRepo
	agg     domainagg.RouteTreeAggregate
	cache   *cache.Cache
	ttl     time.Duration
	metrics *observability.Metrics

	mu        sync.RWMutex
	listeners []RouteTreeListener
}

func NewRouteTreeService(
	baseLog *logger.Logger,
	nodes repos.RouteNodeRepo,
	agg domainagg.RouteTreeAggregate,
	c *cache.Cache,
	ttl time.Duration,
	metrics *observability.Metrics,
) RouteTreeService {
	return &routeTreeService{
		log:     baseLog.With("service", "RouteTreeService"),
		nodes:   nodes,
		agg:     agg,
		cache:   c,
		ttl:     ttl,
		metrics: metrics,
	}
}

func (s *routeTreeService) GetTree(ctx context.Context) ([]*types.RouteTreeNode, error) {
	return s.tree(ctx, RouteTreeCacheKeyAll, false)
}

func (s *routeTreeService) GetEnabledTree(ctx context.Context) ([]*types.RouteTreeNode, error) {
	return s.tree(ctx, RouteTreeCacheKeyEnabled, true)
}

func (s *routeTreeService) tree(ctx context.Context, key string, enabledOnly bool) ([]*types.RouteTreeNode, error) {
	return cache.Remember(ctx, s.cache, key, s.ttl, []string{RouteTreeCacheTag}, func(ctx context.Context) ([]*types.RouteTreeNode, error) {
		variant := "all"
		if enabledOnly {
			variant = "enabled"
		}
		ctx, span := observability.StartSpan(ctx, "services", "RouteTree.build", observability.AttrTreeVariant.String(variant))
		start := time.Now()
		rows, err := s.nodes.ListOrdered(dbctx.Context{Ctx: ctx}, repos.RouteNodeListFilter{EnabledOnly: enabledOnly})
		if err != nil {
			err = fmt.Errorf("load route nodes: %w", err)
			observability.EndSpan(span, err)
			return nil, err
		}
		roots := BuildRouteTree(rows)
		span.SetAttributes(observability.AttrTreeNodes.Int(len(rows)))
		observability.EndSpan(span, nil)
		s.metrics.ObserveTreeBuild(variant, len(rows), time.Since(start))
		s.log.Debug("route tree built", "variant", variant, "nodes", len(rows), "roots", len(roots))
		return roots, nil
	})
}

// BuildRouteTree assembles rows into a forest in one pass over a lookup by id.
// Rows whose parent is absent from rows (filtered, tombstoned or missing) are
// unreachable and dropped with their subtrees. Siblings are ordered by
// (sort_order, id).
func BuildRouteTree(rows []*types.RouteNode) []*types.RouteTreeNode {
	byID := make(map[uuid.UUID]*types.RouteTreeNode, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		byID[r.ID] = &types.RouteTreeNode{RouteNode: *r, Children: []*types.RouteTreeNode{}}
	}

	roots := make([]*types.RouteTreeNode, 0)
	for _, r := range rows {
		if r == nil {
			continue
		}
		n := byID[r.ID]
		if r.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if p, ok := byID[*r.ParentID]; ok {
			p.Children = append(p.Children, n)
		}
	}

	sortSiblings(roots)
	for _, n := range byID {
		sortSiblings(n.Children)
	}
	return roots
}

func sortSiblings(nodes []*types.RouteTreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].SortOrder != nodes[j].SortOrder {
			return nodes[i].SortOrder < nodes[j].SortOrder
		}
		return bytes.Compare(nodes[i].ID[:], nodes[j].ID[:]) < 0
	})
}

// GetNodeWithAncestors loads the node and walks parent links one row at a time,
// wiring Parent. It returns nil when the node does not exist.
func (s *routeTreeService) GetNodeWithAncestors(ctx context.Context, id uuid.UUID) (*types.RouteTreeNode, error) {
	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.nodes.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	node := &types.RouteTreeNode{RouteNode: *row}
	seen := map[uuid.UUID]bool{row.ID: true}
	cur := node
	for cur.ParentID != nil {
		pid := *cur.ParentID
		if seen[pid] {
			s.log.Warn("route tree parent cycle", "node_id", id, "at", pid)
			return nil, domainagg.CycleError("Routing.RouteTree.GetNodeWithAncestors", "parent chain loops at "+pid.String())
		}
		seen[pid] = true
		parent, err := s.nodes.GetByID(dbc, pid)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		cur.Parent = &types.RouteTreeNode{RouteNode: *parent}
		cur = cur.Parent
	}
	return node, nil
}

func (s *routeTreeService) ListAll(ctx context.Context, includeDeleted bool) ([]*types.RouteNode, error) {
	return s.nodes.ListOrdered(dbctx.Context{Ctx: ctx}, repos.RouteNodeListFilter{IncludeDeleted: includeDeleted})
}

func (s *routeTreeService) Create(ctx context.Context, node *types.RouteNode) (*types.RouteNode, error) {
	out, err := s.agg.Create(ctx, node)
	if err != nil {
		return nil, err
	}
	return out, s.changed(ctx, "create", out.ID)
}

func (s *routeTreeService) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*types.RouteNode, error) {
	out, err := s.agg.Update(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	return out, s.changed(ctx, "update", id)
}

func (s *routeTreeService) Move(ctx context.Context, in domainagg.MoveRouteNodeInput) (*types.RouteNode, error) {
	out, err := s.agg.Move(ctx, in)
	if err != nil {
		return nil, err
	}
	return out, s.changed(ctx, "move", in.NodeID)
}

func (s *routeTreeService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.agg.SoftDelete(ctx, id); err != nil {
		return err
	}
	return s.changed(ctx, "delete", id)
}

func (s *routeTreeService) Restore(ctx context.Context, id uuid.UUID) (*types.RouteNode, error) {
	out, err := s.agg.Restore(ctx, id)
	if err != nil {
		return nil, err
	}
	return out, s.changed(ctx, "restore", id)
}

func (s *routeTreeService) ForceDelete(ctx context.Context, id uuid.UUID) error {
	if err := s.agg.ForceDelete(ctx, id); err != nil {
		return err
	}
	return s.changed(ctx, "force_delete", id)
}

func (s *routeTreeService) Invalidate(ctx context.Context) error {
	return s.cache.ForgetTag(ctx, RouteTreeCacheTag)
}

func (s *routeTreeService) OnChange(fn RouteTreeListener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// changed runs after commit: drop the whole-tree entries, then notify. A
// failed invalidation is returned as retryable because the committed write is
// not visible through the cache yet; listeners are not run against the stale
// entry.
func (s *routeTreeService) changed(ctx context.Context, action string, id uuid.UUID) error {
	if err := s.Invalidate(ctx); err != nil {
		s.log.Error("route tree cache invalidation failed", "action", action, "node_id", id, "error", err)
		return domainagg.NewError(domainagg.CodeRetryable, "Routing.RouteTree."+action, "route tree cache invalidation failed", err)
	}
	s.mu.RLock()
	listeners := append([]RouteTreeListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}
	return nil
}
