package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cms-backend/internal/platform/ctxutil"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

// RequestLogger logs one line per request after it completes. Requests the
// compiled route table answered are logged with its route and route node.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}
		status := c.Writer.Status()
		scope := ctxutil.Scope(c.Request.Context())

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", c.Request.URL.Path,
			"route", routeLabel(c, scope),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if scope != nil {
			fields = append(fields, "trace_id", scope.TraceID, "request_id", scope.RequestID)
			if scope.RouteNodeID != "" {
				fields = append(fields, "route_node_id", scope.RouteNodeID)
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// routeLabel keeps label cardinality bounded: admin routes use the gin
// pattern, dynamic ones the compiled pattern.
func routeLabel(c *gin.Context, scope *ctxutil.RequestScope) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	if scope.Delegated() {
		return scope.Route
	}
	return "unmatched"
}
