package routing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NodeKindGroup = "group"
	NodeKindRoute = "route"
)

const (
	ActionTypeController = "controller"
	ActionTypeView       = "view"
	ActionTypeRedirect   = "redirect"
	ActionTypeContent    = "content"
)

// RouteNode is one persisted node of the dynamic route tree. Groups carry
// prefix/domain/namespace/middleware; routes carry uri/methods/action.
type RouteNode struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index:idx_route_node_parent_order,priority:1" json:"parent_id,omitempty"`
	Kind      string     `gorm:"column:kind;not null;index" json:"kind"`
	Name      string     `gorm:"column:name" json:"name,omitempty"`
	SortOrder int        `gorm:"column:sort_order;not null;index:idx_route_node_parent_order,priority:2" json:"sort_order"`
	Enabled   bool       `gorm:"column:enabled;not null;index" json:"enabled"`

	Prefix     string                      `gorm:"column:prefix" json:"prefix,omitempty"`
	Domain     string                      `gorm:"column:domain" json:"domain,omitempty"`
	Namespace  string                      `gorm:"column:namespace" json:"namespace,omitempty"`
	Middleware datatypes.JSONSlice[string] `gorm:"column:middleware" json:"middleware,omitempty"`

	URI        string                      `gorm:"column:uri" json:"uri,omitempty"`
	Methods    datatypes.JSONSlice[string] `gorm:"column:methods" json:"methods,omitempty"`
	Action     string                      `gorm:"column:action" json:"action,omitempty"`
	ActionType string                      `gorm:"column:action_type" json:"action_type,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RouteNode) TableName() string { return "route_node" }

func (n *RouteNode) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

func (n *RouteNode) IsGroup() bool { return n != nil && n.Kind == NodeKindGroup }
func (n *RouteNode) IsRoute() bool { return n != nil && n.Kind == NodeKindRoute }

// TreeNode is the assembled, read-only projection served from the tree cache.
// Parent is only wired by ancestor-chain lookups and never serialized.
type TreeNode struct {
	RouteNode
	Children []*TreeNode `json:"children"`
	Parent   *TreeNode   `json:"-"`
}

// Walk visits n and its descendants depth-first, parents before children.
func (n *TreeNode) Walk(fn func(node *TreeNode, depth int) bool) {
	var visit func(node *TreeNode, depth int) bool
	visit = func(node *TreeNode, depth int) bool {
		if !fn(node, depth) {
			return false
		}
		for _, ch := range node.Children {
			if !visit(ch, depth+1) {
				return false
			}
		}
		return true
	}
	visit(n, 0)
}

// Ancestors returns the parent chain, nearest first.
func (n *TreeNode) Ancestors() []*TreeNode {
	var out []*TreeNode
	for p := n.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}
