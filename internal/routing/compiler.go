package routing

import (
	"fmt"
	"net"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/cms-backend/internal/domain"
	domainrouting "github.com/yungbote/cms-backend/internal/domain/routing"
	"github.com/yungbote/cms-backend/internal/platform/ctxutil"
)

// Context keys set on every compiled route.
const (
	CtxRouteNodeID = "route_node_id"
	CtxSlug        = "slug"
)

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\*|\?)?\}`)

// Skipped records a node left out of the compiled table.
type Skipped struct {
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

// Report summarizes one compile.
type Report struct {
	Routes  int       `json:"routes"`
	Groups  int       `json:"groups"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

type compiler struct {
	registry *Registry
	report   Report

	// mounted lists every method/path pair registered so far. trial mirrors
	// it so a node is checked as a whole before any of its methods is
	// registered on the real engine.
	mounted []methodPath
	trial   *gin.Engine
}

type methodPath struct {
	method string
	path   string
}

// anyMethods is what a route with method ANY expands to.
var anyMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodHead, http.MethodOptions, http.MethodDelete,
	http.MethodConnect, http.MethodTrace,
}

// Compile mounts the given forest on a fresh engine. Nodes that cannot be
// mounted (unknown action or middleware, conflicting path) are skipped with
// their subtrees and listed in the report.
func Compile(engine *gin.Engine, roots []*types.RouteTreeNode, registry *Registry) Report {
	c := &compiler{registry: registry}
	for _, n := range roots {
		c.mount(&engine.RouterGroup, n)
	}
	return c.report
}

func (c *compiler) skip(n *types.RouteTreeNode, format string, args ...interface{}) {
	c.report.Skipped = append(c.report.Skipped, Skipped{NodeID: n.ID.String(), Reason: fmt.Sprintf(format, args...)})
}

func (c *compiler) mount(parent *gin.RouterGroup, n *types.RouteTreeNode) {
	switch n.Kind {
	case types.RouteNodeKindGroup:
		mws, err := c.registry.resolveMiddleware(n.Middleware)
		if err != nil {
			c.skip(n, "%v", err)
			return
		}
		if d := strings.TrimSpace(n.Domain); d != "" {
			mws = append([]gin.HandlerFunc{hostOnly(d)}, mws...)
		}
		g := parent.Group(ginPath(n.Prefix), mws...)
		c.report.Groups++
		for _, ch := range n.Children {
			c.mount(g, withNamespace(ch, n.Namespace))
		}
	case types.RouteNodeKindRoute:
		h, err := c.handlerFor(n)
		if err != nil {
			c.skip(n, "%v", err)
			return
		}
		if err := c.handle(parent, n, h); err != nil {
			c.skip(n, "%v", err)
			return
		}
		c.report.Routes++
	default:
		c.skip(n, "unknown node kind %q", n.Kind)
	}
}

// withNamespace pushes a group namespace down to children that have none.
func withNamespace(n *types.RouteTreeNode, ns string) *types.RouteTreeNode {
	if ns == "" || n.Namespace != "" {
		return n
	}
	cp := *n
	cp.Namespace = ns
	return &cp
}

func (c *compiler) handlerFor(n *types.RouteTreeNode) (gin.HandlerFunc, error) {
	switch n.ActionType {
	case domainrouting.ActionTypeRedirect:
		target := strings.TrimSpace(n.Action)
		if target == "" {
			return nil, fmt.Errorf("redirect without target")
		}
		return func(ctx *gin.Context) { ctx.Redirect(http.StatusFound, target) }, nil
	default:
		h, ok := c.registry.lookupAction(n.Namespace, n.Action)
		if !ok {
			return nil, fmt.Errorf("unknown action %q", n.Action)
		}
		return h, nil
	}
}

func (c *compiler) handle(g *gin.RouterGroup, n *types.RouteTreeNode, h gin.HandlerFunc) error {
	rel := ginPath(n.URI)
	abs := g.BasePath()
	if rel != "" {
		abs = path.Join(abs, rel)
	}
	wanted := routeMethods(n.Methods)
	candidate := make([]methodPath, 0, len(wanted))
	for _, m := range wanted {
		candidate = append(candidate, methodPath{method: m, path: abs})
	}
	if err := c.fits(candidate); err != nil {
		return fmt.Errorf("mount %s: %w", n.URI, err)
	}
	c.mounted = append(c.mounted, candidate...)

	id := n.ID.String()
	chain := []gin.HandlerFunc{func(ctx *gin.Context) {
		ctx.Set(CtxRouteNodeID, id)
		ctxutil.Scope(ctx.Request.Context()).Resolve(id, ctx.FullPath())
		ctx.Next()
	}, h}
	for _, m := range wanted {
		g.Handle(m, rel, chain...)
	}
	return nil
}

// fits registers candidate on the trial engine. A rejected candidate may have
// left some of its methods behind, so the trial engine is rebuilt from
// mounted on the next call.
func (c *compiler) fits(candidate []methodPath) error {
	if c.trial == nil {
		c.trial = gin.New()
		if err := register(c.trial, c.mounted); err != nil {
			return err
		}
	}
	if err := register(c.trial, candidate); err != nil {
		c.trial = nil
		return err
	}
	return nil
}

func register(e *gin.Engine, routes []methodPath) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	noop := func(*gin.Context) {}
	for _, r := range routes {
		e.Handle(r.method, r.path, noop)
	}
	return nil
}

// routeMethods upper-cases, expands ANY and drops duplicates. No methods
// means GET.
func routeMethods(in []string) []string {
	if len(in) == 0 {
		return []string{http.MethodGet}
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range in {
		m = strings.ToUpper(strings.TrimSpace(m))
		expanded := []string{m}
		if m == "ANY" {
			expanded = anyMethods
		}
		for _, e := range expanded {
			if e != "" && !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	if len(out) == 0 {
		return []string{http.MethodGet}
	}
	return out
}

// ginPath converts {name} placeholders to :name and {name*} to *name.
// {name?} is treated as required. An empty result mounts on the parent path.
func ginPath(uri string) string {
	uri = strings.Trim(strings.TrimSpace(uri), "/")
	if uri == "" {
		return ""
	}
	out := placeholderRE.ReplaceAllStringFunc(uri, func(m string) string {
		sub := placeholderRE.FindStringSubmatch(m)
		if sub[2] == "*" {
			return "*" + sub[1]
		}
		return ":" + sub[1]
	})
	return "/" + out
}

func hostOnly(domain string) gin.HandlerFunc {
	domain = strings.ToLower(domain)
	return func(ctx *gin.Context) {
		host := ctx.Request.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if !strings.EqualFold(host, domain) {
			ctx.AbortWithStatus(http.StatusNotFound)
			return
		}
		ctx.Next()
	}
}
