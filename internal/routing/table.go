package routing

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cms-backend/internal/http/response"
	"github.com/yungbote/cms-backend/internal/normalization"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/ctxutil"
	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/services"
)

// ContentFallbackAction is the registry entry the catch-all delegates to for
// slugs no compiled route claimed.
const ContentFallbackAction = "content.fallback"

type TableDeps struct {
	Log      *logger.Logger
	Routes   services.RouteTreeService
	Reserved services.ReservedPathService
	Registry *Registry
	Metrics  *observability.Metrics
	// Middleware runs ahead of every compiled route and the catch-all.
	Middleware []gin.HandlerFunc
}

// Table serves the route table compiled from the enabled route tree. Rebuild
// compiles a new engine and swaps it in atomically; requests in flight keep
// the engine they started on.
type Table struct {
	deps    TableDeps
	log     *logger.Logger
	current atomic.Pointer[gin.Engine]
	last    atomic.Pointer[Report]
	mu      sync.Mutex
}

func NewTable(deps TableDeps) *Table {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	return &Table{deps: deps, log: deps.Log.With("component", "RouteTable")}
}

// Watch recompiles after every route tree write.
func (t *Table) Watch() {
	t.deps.Routes.OnChange(func(ctx context.Context) {
		if _, err := t.Rebuild(ctx); err != nil {
			t.log.Error("route table rebuild failed", "error", err)
		}
	})
}

func (t *Table) Rebuild(ctx context.Context) (Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	roots, err := t.deps.Routes.GetEnabledTree(ctx)
	if err != nil {
		t.deps.Metrics.ObserveRouteCompile("error", 0)
		return Report{}, err
	}
	engine := gin.New()
	engine.Use(t.deps.Middleware...)
	report := Compile(engine, roots, t.deps.Registry)
	engine.NoRoute(t.catchAll)

	t.current.Store(engine)
	t.last.Store(&report)
	t.deps.Metrics.ObserveRouteCompile("success", report.Routes)
	if len(report.Skipped) > 0 {
		t.log.Warn("route table compiled with skipped nodes", "routes", report.Routes, "skipped", len(report.Skipped))
	} else {
		t.log.Info("route table compiled", "routes", report.Routes, "groups", report.Groups)
	}
	return report, nil
}

// LastReport returns the report of the engine currently serving.
func (t *Table) LastReport() (Report, bool) {
	r := t.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

func (t *Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	engine := t.current.Load()
	if engine == nil {
		http.Error(w, "route table not compiled", http.StatusServiceUnavailable)
		return
	}
	engine.ServeHTTP(w, r)
}

// catchAll hands unclaimed paths to the content fallback unless the leading
// segment is reserved or not a valid slug.
func (t *Table) catchAll(c *gin.Context) {
	ctx := c.Request.Context()
	path := normalization.Path(c.Request.URL.Path)
	seg := normalization.FirstSegment(path)
	if seg == "" {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	if t.deps.Reserved != nil {
		reserved, err := t.deps.Reserved.IsReservedSlug(ctx, path)
		if err == nil && !reserved {
			reserved, err = t.deps.Reserved.IsReservedPath(ctx, seg)
		}
		if err != nil {
			t.log.Error("reserved path lookup failed", "path", path, "error", err)
			response.RespondError(c, http.StatusInternalServerError, "internal", nil)
			return
		}
		if reserved {
			response.RespondError(c, http.StatusNotFound, "reserved_path", nil)
			return
		}
		re, err := t.deps.Reserved.SlugRegex(ctx)
		if err != nil {
			t.log.Error("slug regex unavailable", "error", err)
			response.RespondError(c, http.StatusInternalServerError, "internal", nil)
			return
		}
		if ok, _ := re.MatchString(seg); !ok {
			response.RespondError(c, http.StatusNotFound, "invalid_slug", nil)
			return
		}
	}
	h, ok := t.deps.Registry.lookupAction("", ContentFallbackAction)
	if !ok {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	c.Set(CtxSlug, path)
	ctxutil.Scope(ctx).Resolve("", ContentFallbackAction)
	h(c)
}
