package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeRoundTripAndResolve(t *testing.T) {
	assert.Nil(t, Scope(context.Background()))

	var missing *RequestScope
	missing.Resolve("n1", "/x")
	assert.False(t, missing.Delegated())

	s := &RequestScope{TraceID: "t", RequestID: "r"}
	ctx := WithScope(context.Background(), s)
	assert.Same(t, s, Scope(ctx))
	assert.False(t, s.Delegated())

	Scope(ctx).Resolve("n1", "/blog/:slug")
	assert.True(t, s.Delegated())
	assert.Equal(t, "n1", s.RouteNodeID)
	assert.Equal(t, "/blog/:slug", s.Route)
}
