package routing

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Registry maps the action and middleware names stored on route nodes to
// handlers. Plugins register into it before the first compile.
type Registry struct {
	mu         sync.RWMutex
	actions    map[string]gin.HandlerFunc
	middleware map[string]gin.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		actions:    map[string]gin.HandlerFunc{},
		middleware: map[string]gin.HandlerFunc{},
	}
}

func (r *Registry) Action(name string, h gin.HandlerFunc) {
	name = strings.TrimSpace(name)
	if name == "" || h == nil {
		return
	}
	r.mu.Lock()
	r.actions[name] = h
	r.mu.Unlock()
}

func (r *Registry) Middleware(name string, h gin.HandlerFunc) {
	name = strings.TrimSpace(name)
	if name == "" || h == nil {
		return
	}
	r.mu.Lock()
	r.middleware[name] = h
	r.mu.Unlock()
}

// lookupAction tries the namespaced name first.
func (r *Registry) lookupAction(namespace, action string) (gin.HandlerFunc, bool) {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ns := strings.Trim(strings.TrimSpace(namespace), "."); ns != "" {
		if h, ok := r.actions[ns+"."+action]; ok {
			return h, true
		}
	}
	h, ok := r.actions[action]
	return h, ok
}

func (r *Registry) resolveMiddleware(names []string) ([]gin.HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]gin.HandlerFunc, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		h, ok := r.middleware[n]
		if !ok {
			return nil, fmt.Errorf("unknown middleware %q", n)
		}
		out = append(out, h)
	}
	return out, nil
}

// Actions lists registered action names, sorted.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for k := range r.actions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
