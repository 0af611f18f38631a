package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/cms-backend/internal/platform/ctxutil"
)

func TestAttachRequestScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachRequestScope())
	var seen *ctxutil.RequestScope
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.Scope(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("keeps incoming ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(headerRequestID, " req-1 ")
		req.Header.Set(headerTraceID, "trace-1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.NotNil(t, seen)
		assert.Equal(t, "req-1", seen.RequestID)
		assert.Equal(t, "trace-1", seen.TraceID)
		assert.Equal(t, "trace-1", rec.Header().Get(headerTraceID))
	})

	t.Run("generates missing ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

		require.NotNil(t, seen)
		assert.NotEmpty(t, seen.TraceID)
		assert.NotEqual(t, seen.TraceID, seen.RequestID)
		assert.Equal(t, seen.RequestID, rec.Header().Get(headerRequestID))
		assert.False(t, seen.Delegated())
	})
}
