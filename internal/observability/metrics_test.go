package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveAggregateOperation("op", "success", time.Millisecond)
	m.IncAggregateConflict("op")
	m.CacheHit("route_tree:v1:all")
	m.IncCascadeStep("rematerialized")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRecordAndExpose(t *testing.T) {
	m := NewMetrics()
	m.CacheHit("route_tree:v1:all")
	m.CacheHit("route_tree:v1:enabled")
	m.CacheMiss("reserved_paths:v1")
	m.ObserveAggregateOperation("Taxonomy.TermHierarchy.SetParent", "success", 2*time.Millisecond)
	m.IncAggregateConflict("Blueprints.Materialize")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("route_tree", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("reserved_paths", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.aggregateConflicts.WithLabelValues("Blueprints.Materialize")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cms_aggregate_operations_total"))
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders(" a=1, b = 2 ,bad, =x")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, h)
	assert.Nil(t, ParseHeaders(""))
}

func TestSpanHelpersAreSafeWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "services", "RouteTree.build", AttrTreeVariant.String("enabled"))
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
	assert.Equal(t, 0.1, clampRatio(0))
	assert.Equal(t, 1.0, clampRatio(3))
	assert.Equal(t, "cms-backend", serviceName(OtelConfig{ServiceName: " "}))
}
