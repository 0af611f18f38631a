package domain

import (
	"github.com/yungbote/cms-backend/internal/domain/blueprints"
	"github.com/yungbote/cms-backend/internal/domain/routing"
	"github.com/yungbote/cms-backend/internal/domain/taxonomy"
)

const (
	RouteNodeKindGroup = routing.NodeKindGroup
	RouteNodeKindRoute = routing.NodeKindRoute

	ReservedKindPath   = routing.ReservedKindPath
	ReservedKindPrefix = routing.ReservedKindPrefix

	ReservedSourceAdmin = routing.ReservedSourceAdmin
)

type Taxonomy = taxonomy.Taxonomy
type TaxonomyTerm = taxonomy.Term
type TermClosure = taxonomy.TermClosure

type RouteNode = routing.RouteNode
type RouteTreeNode = routing.TreeNode
type ReservedRoute = routing.ReservedRoute

type Blueprint = blueprints.Blueprint
type BlueprintPath = blueprints.Path
type BlueprintEmbed = blueprints.Embed

// Models lists every persisted entity in migration order.
func Models() []interface{} {
	return []interface{}{
		&Taxonomy{},
		&TaxonomyTerm{},
		&TermClosure{},

		&RouteNode{},
		&ReservedRoute{},

		&Blueprint{},
		&BlueprintPath{},
		&BlueprintEmbed{},
	}
}
