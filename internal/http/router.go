package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/cms-backend/internal/http/handlers"
	httpMW "github.com/yungbote/cms-backend/internal/http/middleware"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/routing"
)

const serviceName = "cms-backend"

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	// Tracing wraps requests in otelgin spans.
	Tracing bool

	HealthHandler    *httpH.HealthHandler
	RouteNodeHandler *httpH.RouteNodeHandler
	TaxonomyHandler  *httpH.TaxonomyHandler
	BlueprintHandler *httpH.BlueprintHandler
	ReservedHandler  *httpH.ReservedPathHandler

	// Table serves every request the admin API does not match.
	Table *routing.Table
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(httpMW.AttachRequestScope())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	admin := r.Group("/api/admin")
	{
		// Route tree
		if h := cfg.RouteNodeHandler; h != nil {
			admin.GET("/routes", h.List)
			admin.POST("/routes", h.Create)
			admin.GET("/routes/tree", h.Tree)
			admin.GET("/routes/table", h.TableReport)
			admin.POST("/routes/table/rebuild", h.RebuildTable)
			admin.GET("/routes/:id", h.Get)
			admin.PATCH("/routes/:id", h.Update)
			admin.DELETE("/routes/:id", h.Delete)
			admin.POST("/routes/:id/move", h.Move)
			admin.POST("/routes/:id/restore", h.Restore)
		}

		// Taxonomies
		if h := cfg.TaxonomyHandler; h != nil {
			admin.GET("/taxonomies", h.List)
			admin.POST("/taxonomies", h.Create)
			admin.GET("/taxonomies/:code/terms", h.ListTerms)
			admin.POST("/taxonomies/:code/terms", h.CreateTerm)
			admin.PUT("/terms/:id/parent", h.SetParent)
			admin.DELETE("/terms/:id/tree", h.RemoveFromTree)
			admin.DELETE("/terms/:id", h.DeleteTerm)
			admin.GET("/terms/:id/ancestors", h.Ancestors)
			admin.GET("/terms/:id/descendants", h.Descendants)
			admin.GET("/terms/:id/children", h.Children)
		}

		// Blueprints
		if h := cfg.BlueprintHandler; h != nil {
			admin.GET("/blueprints", h.List)
			admin.POST("/blueprints", h.Create)
			admin.GET("/blueprints/:id", h.Get)
			admin.POST("/blueprints/:id/paths", h.AddPath)
			admin.POST("/blueprints/:id/embeds", h.Embed)
			admin.POST("/blueprints/:id/cascade", h.Cascade)
			admin.PATCH("/blueprint-paths/:id", h.UpdatePath)
			admin.DELETE("/blueprint-paths/:id", h.RemovePath)
			admin.POST("/blueprint-embeds/:id/materialize", h.Materialize)
			admin.DELETE("/blueprint-embeds/:id", h.RemoveEmbed)
		}

		// Reserved paths
		if h := cfg.ReservedHandler; h != nil {
			admin.GET("/reserved", h.All)
			admin.POST("/reserved", h.Register)
			admin.DELETE("/reserved", h.Unregister)
			admin.GET("/reserved/check", h.Check)
			admin.GET("/reserved/slug-pattern", h.SlugPattern)
			admin.PUT("/reserved/sources/:source", h.SyncSource)
		}
	}

	if cfg.Table != nil {
		table := cfg.Table
		r.NoRoute(func(c *gin.Context) {
			table.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}
