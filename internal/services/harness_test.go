package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/cms-backend/internal/data/aggregates"
	"github.com/yungbote/cms-backend/internal/data/repos"
	"github.com/yungbote/cms-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/services"
)

type harness struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Set
	cache   *cache.Cache
	metrics *observability.Metrics
	queries *testutil.QueryCounter

	routes     services.RouteTreeService
	reserved   services.ReservedPathService
	cascade    services.BlueprintCascade
	blueprints services.BlueprintService
	taxonomy   services.TaxonomyService

	bpAgg domainagg.BlueprintAggregate
}

type harnessOpts struct {
	reserved services.ReservedPathsConfig
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.NewMetrics()
	store, err := cache.NewMemoryStore(8 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	set := repos.NewSet(db, log)
	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: aggregates.NewMetricsHooks(metrics)}

	h := &harness{
		db:      db,
		log:     log,
		repos:   set,
		cache:   cache.New(store, log, metrics),
		metrics: metrics,
		queries: testutil.CountQueries(t, db),
	}

	routeAgg := aggregates.NewRouteTreeAggregate(aggregates.RouteTreeAggregateDeps{Base: base, Nodes: set.RouteNode})
	h.routes = services.NewRouteTreeService(log, set.RouteNode, routeAgg, h.cache, time.Minute, metrics)

	if opts.reserved.CacheTTL == 0 {
		opts.reserved.CacheTTL = time.Minute
	}
	h.reserved = services.NewReservedPathService(db, log, set.ReservedRoute, h.cache, opts.reserved, metrics)

	h.bpAgg = aggregates.NewBlueprintAggregate(aggregates.BlueprintAggregateDeps{
		Base:       base,
		Blueprints: set.Blueprint,
		Paths:      set.BlueprintPath,
		Embeds:     set.BlueprintEmbed,
	})
	h.cascade = services.NewBlueprintCascade(log, set.BlueprintEmbed, h.bpAgg, metrics)
	h.blueprints = services.NewBlueprintService(log, set.Blueprint, set.BlueprintPath, set.BlueprintEmbed, h.bpAgg, services.NewSyncDispatcher(h.cascade, metrics))

	termAgg := aggregates.NewTermHierarchyAggregate(aggregates.TermHierarchyAggregateDeps{
		Base:       base,
		Taxonomies: set.Taxonomy,
		Terms:      set.Term,
		Closure:    set.TermClosure,
	})
	h.taxonomy = services.NewTaxonomyService(log, set.Taxonomy, set.Term, set.TermClosure, termAgg)
	return h
}

// counter reads one labelled series from the metrics registry.
func (h *harness) counter(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := h.metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func bg() context.Context { return context.Background() }
