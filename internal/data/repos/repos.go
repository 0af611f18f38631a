package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/cms-backend/internal/data/repos/blueprints"
	"github.com/yungbote/cms-backend/internal/data/repos/routing"
	"github.com/yungbote/cms-backend/internal/data/repos/taxonomy"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

type TaxonomyRepo = taxonomy.TaxonomyRepo
type TermRepo = taxonomy.TermRepo
type TermClosureRepo = taxonomy.TermClosureRepo

type RouteNodeRepo = routing.RouteNodeRepo
type RouteNodeListFilter = routing.ListFilter
type ReservedRouteRepo = routing.ReservedRouteRepo

type BlueprintRepo = blueprints.BlueprintRepo
type BlueprintPathRepo = blueprints.BlueprintPathRepo
type BlueprintEmbedRepo = blueprints.BlueprintEmbedRepo

// Set bundles every table repo over one database handle.
type Set struct {
	Taxonomy    TaxonomyRepo
	Term        TermRepo
	TermClosure TermClosureRepo

	RouteNode     RouteNodeRepo
	ReservedRoute ReservedRouteRepo

	Blueprint      BlueprintRepo
	BlueprintPath  BlueprintPathRepo
	BlueprintEmbed BlueprintEmbedRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Taxonomy:    taxonomy.NewTaxonomyRepo(db, log),
		Term:        taxonomy.NewTermRepo(db, log),
		TermClosure: taxonomy.NewTermClosureRepo(db, log),

		RouteNode:     routing.NewRouteNodeRepo(db, log),
		ReservedRoute: routing.NewReservedRouteRepo(db, log),

		Blueprint:      blueprints.NewBlueprintRepo(db, log),
		BlueprintPath:  blueprints.NewBlueprintPathRepo(db, log),
		BlueprintEmbed: blueprints.NewBlueprintEmbedRepo(db, log),
	}
}
