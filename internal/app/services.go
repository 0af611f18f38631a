package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/cms-backend/internal/data/aggregates"
	"github.com/yungbote/cms-backend/internal/data/repos"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/services"
	"github.com/yungbote/cms-backend/internal/temporalx/cascaderun"
)

type Services struct {
	Routes     services.RouteTreeService
	Reserved   services.ReservedPathService
	Cascade    services.BlueprintCascade
	Dispatcher services.CascadeDispatcher
	Blueprints services.BlueprintService
	Taxonomy   services.TaxonomyService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, set repos.Set, c *cache.Cache, metrics *observability.Metrics, tc temporalsdkclient.Client) (Services, error) {
	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: aggregates.NewMetricsHooks(metrics)}

	routeAgg := aggregates.NewRouteTreeAggregate(aggregates.RouteTreeAggregateDeps{Base: base, Nodes: set.RouteNode})
	termAgg := aggregates.NewTermHierarchyAggregate(aggregates.TermHierarchyAggregateDeps{
		Base:       base,
		Taxonomies: set.Taxonomy,
		Terms:      set.Term,
		Closure:    set.TermClosure,
	})
	bpAgg := aggregates.NewBlueprintAggregate(aggregates.BlueprintAggregateDeps{
		Base:       base,
		Blueprints: set.Blueprint,
		Paths:      set.BlueprintPath,
		Embeds:     set.BlueprintEmbed,
	})

	out := Services{
		Routes: services.NewRouteTreeService(log, set.RouteNode, routeAgg, c, cfg.Cache.RouteTreeTTL, metrics),
		Reserved: services.NewReservedPathService(db, log, set.ReservedRoute, c, services.ReservedPathsConfig{
			Paths:    cfg.Reserved.Paths,
			Prefixes: cfg.Reserved.Prefixes,
			CacheTTL: cfg.Reserved.CacheTTL,
		}, metrics),
		Cascade:  services.NewBlueprintCascade(log, set.BlueprintEmbed, bpAgg, metrics),
		Taxonomy: services.NewTaxonomyService(log, set.Taxonomy, set.Term, set.TermClosure, termAgg),
	}

	switch cfg.Cascade.Dispatcher {
	case DispatcherTemporal:
		if tc == nil {
			return out, fmt.Errorf("cascade dispatcher %q needs a temporal client", cfg.Cascade.Dispatcher)
		}
		out.Dispatcher = cascaderun.NewDispatcher(log, tc, cfg.Temporal.TaskQueue, metrics)
	default:
		out.Dispatcher = services.NewSyncDispatcher(out.Cascade, metrics)
	}
	out.Blueprints = services.NewBlueprintService(log, set.Blueprint, set.BlueprintPath, set.BlueprintEmbed, bpAgg, out.Dispatcher)
	return out, nil
}

// syncReservedManifests replaces each manifest source's stored reservations.
func syncReservedManifests(ctx context.Context, log *logger.Logger, reserved services.ReservedPathService, paths []string) error {
	for _, p := range paths {
		m, err := services.LoadReservedManifest(p)
		if err != nil {
			return err
		}
		if err := reserved.SyncSource(ctx, m.Source, m.Entries()); err != nil {
			return fmt.Errorf("sync reserved manifest %s: %w", p, err)
		}
		log.Info("reserved manifest synced", "file", p, "source", m.Source)
	}
	return nil
}

func newCache(cfg Config, log *logger.Logger, metrics *observability.Metrics) (*cache.Cache, cache.Store, error) {
	var (
		store cache.Store
		err   error
	)
	switch cfg.Cache.Backend {
	case CacheBackendRedis:
		store, err = cache.NewRedisStore(cfg.Cache.Redis, log)
	default:
		store, err = cache.NewMemoryStore(cfg.Cache.MemoryMaxBytes)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("init %s cache: %w", cfg.Cache.Backend, err)
	}
	var obs cache.Observer
	if metrics != nil {
		obs = metrics
	}
	return cache.New(store, log, obs), store, nil
}
