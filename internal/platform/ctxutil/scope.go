package ctxutil

import "context"

type scopeKey struct{}

// RequestScope travels on the request context. The admin engine creates it;
// the compiled route table fills in the route that answered, so both engines
// see the same values for one request.
type RequestScope struct {
	TraceID   string
	RequestID string

	// RouteNodeID is empty for the content fallback.
	RouteNodeID string
	// Route is the matched pattern, or the fallback action name.
	Route string
}

func WithScope(ctx context.Context, s *RequestScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func Scope(ctx context.Context) *RequestScope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*RequestScope)
	return s
}

// Resolve records the dynamic route serving the request. No-op without a scope.
func (s *RequestScope) Resolve(nodeID, route string) {
	if s == nil {
		return
	}
	s.RouteNodeID = nodeID
	s.Route = route
}

// Delegated reports whether the compiled route table answered the request.
func (s *RequestScope) Delegated() bool {
	return s != nil && s.Route != ""
}
