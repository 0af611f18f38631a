package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/cms-backend/internal/data/db"
	"github.com/yungbote/cms-backend/internal/data/repos"
	cmshttp "github.com/yungbote/cms-backend/internal/http"
	httpH "github.com/yungbote/cms-backend/internal/http/handlers"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/routing"
	"github.com/yungbote/cms-backend/internal/temporalx"
	"github.com/yungbote/cms-backend/internal/temporalx/temporalworker"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Cache    *cache.Cache
	Metrics  *observability.Metrics
	Repos    repos.Set
	Services Services
	Registry *routing.Registry
	Table    *routing.Table
	Server   *cmshttp.Server
	Temporal temporalsdkclient.Client

	store        cache.Store
	shutdownOtel func(context.Context) error
	cancel       context.CancelFunc
}

// New loads config and wires every component. Nothing is started yet.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, log := a.Cfg, a.Log

	a.shutdownOtel = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})
	if cfg.Metrics.Enabled {
		a.Metrics = observability.NewMetrics()
	}

	dbs, err := db.Open(cfg.DB, log)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	a.DB = dbs
	if cfg.DB.AutoMigrate {
		if err := db.Migrate(dbs.DB()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	a.Cache, a.store, err = newCache(cfg, log, a.Metrics)
	if err != nil {
		return err
	}

	if cfg.Cascade.Dispatcher == DispatcherTemporal {
		a.Temporal, err = temporalx.NewClient(ctx, log, cfg.Temporal)
		if err != nil {
			return fmt.Errorf("init temporal: %w", err)
		}
	}

	a.Repos = repos.NewSet(dbs.DB(), log)
	a.Services, err = wireServices(dbs.DB(), log, cfg, a.Repos, a.Cache, a.Metrics, a.Temporal)
	if err != nil {
		return err
	}

	a.Registry = routing.NewRegistry()
	a.Registry.Action(routing.ContentFallbackAction, contentNotFound)
	a.Table = routing.NewTable(routing.TableDeps{
		Log:      log,
		Routes:   a.Services.Routes,
		Reserved: a.Services.Reserved,
		Registry: a.Registry,
		Metrics:  a.Metrics,
	})
	a.Table.Watch()

	a.Server = cmshttp.NewServer(cmshttp.RouterConfig{
		Log:              log,
		Metrics:          a.Metrics,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		Tracing:          cfg.Otel.Enabled,
		HealthHandler:    httpH.NewHealthHandler(dbs.DB()),
		RouteNodeHandler: httpH.NewRouteNodeHandler(a.Services.Routes, a.Table),
		TaxonomyHandler:  httpH.NewTaxonomyHandler(a.Services.Taxonomy),
		BlueprintHandler: httpH.NewBlueprintHandler(a.Services.Blueprints),
		ReservedHandler:  httpH.NewReservedPathHandler(a.Services.Reserved),
		Table:            a.Table,
	})
	return nil
}

// contentNotFound answers slugs no content resolver claimed.
func contentNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "content_not_found", "message": "no content for " + c.GetString(routing.CtxSlug)}})
}

// Start syncs reserved manifests, compiles the route table and starts the
// background collectors and, when configured, the cascade worker.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := syncReservedManifests(ctx, a.Log, a.Services.Reserved, a.Cfg.Reserved.Manifests); err != nil {
		return err
	}
	if _, err := a.Table.Rebuild(ctx); err != nil {
		return fmt.Errorf("compile route table: %w", err)
	}

	interval := a.Cfg.Metrics.CollectInterval
	a.Metrics.StartDBCollector(ctx, a.Log, a.DB.DB(), interval)
	if rs, ok := a.store.(*cache.RedisStore); ok {
		a.Metrics.StartRedisCollector(ctx, a.Log, rs.Client(), interval)
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)

	if a.Temporal != nil && a.Cfg.Cascade.RunWorker {
		runner, err := temporalworker.NewRunner(a.Log, a.Cfg.Temporal, a.Temporal, a.Services.Cascade)
		if err != nil {
			return err
		}
		if err := runner.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx, a.Cfg.HTTP.Addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.shutdownOtel != nil {
		_ = a.shutdownOtel(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
