package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/cms-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachRequestScope puts a ctxutil.RequestScope on the request context and
// echoes its ids as response headers. An active otel span wins over an
// incoming X-Trace-Id.
func AttachRequestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := &ctxutil.RequestScope{
			RequestID: headerOrNewID(c.GetHeader(headerRequestID)),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			scope.TraceID = sc.TraceID().String()
		} else {
			scope.TraceID = headerOrNewID(c.GetHeader(headerTraceID))
		}

		c.Request = c.Request.WithContext(ctxutil.WithScope(c.Request.Context(), scope))
		c.Header(headerTraceID, scope.TraceID)
		c.Header(headerRequestID, scope.RequestID)
		c.Next()
	}
}

// headerOrNewID returns the trimmed header value or a fresh id.
func headerOrNewID(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return uuid.NewString()
}
