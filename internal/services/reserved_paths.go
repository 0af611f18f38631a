package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/yungbote/cms-backend/internal/data/repos"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/normalization"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/cache"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

const (
	ReservedPathsCacheKey = "reserved_routes:v1:all"
	ReservedPathsCacheTag = "reserved_routes"

	slugShape = `[a-z0-9](?:[a-z0-9-]*[a-z0-9])?`
)

// ReservedSet is the merged, normalized view of configured and stored
// reservations.
type ReservedSet struct {
	Paths    []string `json:"paths"`
	Prefixes []string `json:"prefixes"`
}

// FirstSegments returns the sorted, de-duplicated leading segments of every
// reserved path and prefix.
func (r ReservedSet) FirstSegments() []string {
	seen := map[string]bool{}
	for _, p := range append(append([]string{}, r.Paths...), r.Prefixes...) {
		if seg := normalization.FirstSegment(p); seg != "" {
			seen[seg] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type ReservedEntry struct {
	Path string `json:"path" yaml:"path"`
	Kind string `json:"kind" yaml:"kind"`
}

type ReservedPathsConfig struct {
	Paths    []string
	Prefixes []string
	CacheTTL time.Duration
}

type ReservedPathService interface {
	All(ctx context.Context) (ReservedSet, error)
	IsReservedPath(ctx context.Context, path string) (bool, error)
	IsReservedPrefix(ctx context.Context, path string) (bool, error)
	IsReservedSlug(ctx context.Context, slug string) (bool, error)
	SlugPattern(ctx context.Context) (string, error)
	SlugRegex(ctx context.Context) (*regexp2.Regexp, error)

	List(ctx context.Context) ([]*types.ReservedRoute, error)
	Register(ctx context.Context, path, kind, source string) error
	Unregister(ctx context.Context, path, kind string) (bool, error)
	SyncSource(ctx context.Context, source string, entries []ReservedEntry) error
	Invalidate(ctx context.Context) error
}

type reservedPathService struct {
	db      *gorm.DB
	log     *logger.Logger
	routes  repos.ReservedRouteRepo
	cache   *cache.Cache
	cfg     ReservedPathsConfig
	metrics *observability.Metrics

	// gen advances on Invalidate; a regex compiled from a set read before the
	// bump is returned to its caller but never memoized.
	mu    sync.Mutex
	regex *regexp2.Regexp
	gen   uint64
}

func NewReservedPathService(
	db *gorm.DB,
	baseLog *logger.Logger,
	routes repos.ReservedRouteRepo,
	c *cache.Cache,
	cfg ReservedPathsConfig,
	metrics *observability.Metrics,
) ReservedPathService {
	return &reservedPathService{
		db:      db,
		log:     baseLog.With("service", "ReservedPathService"),
		routes:  routes,
		cache:   c,
		cfg:     cfg,
		metrics: metrics,
	}
}

func (s *reservedPathService) All(ctx context.Context) (ReservedSet, error) {
	return cache.Remember(ctx, s.cache, ReservedPathsCacheKey, s.cfg.CacheTTL, []string{ReservedPathsCacheTag}, s.load)
}

func (s *reservedPathService) load(ctx context.Context) (ReservedSet, error) {
	paths := newOrderedSet()
	prefixes := newOrderedSet()
	for _, p := range s.cfg.Paths {
		paths.add(normalization.Path(p))
	}
	for _, p := range s.cfg.Prefixes {
		prefixes.add(normalization.Path(p))
	}
	rows, err := s.routes.List(dbctx.Context{Ctx: ctx})
	if err != nil {
		return ReservedSet{}, fmt.Errorf("load reserved routes: %w", err)
	}
	for _, r := range rows {
		switch r.Kind {
		case types.ReservedKindPrefix:
			prefixes.add(normalization.Path(r.Path))
		default:
			paths.add(normalization.Path(r.Path))
		}
	}
	return ReservedSet{Paths: paths.items, Prefixes: prefixes.items}, nil
}

func (s *reservedPathService) IsReservedPath(ctx context.Context, path string) (bool, error) {
	set, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	ok := matchPath(set, normalization.Path(path))
	s.metrics.IncReservedCheck("path", ok)
	return ok, nil
}

func (s *reservedPathService) IsReservedPrefix(ctx context.Context, path string) (bool, error) {
	set, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	ok := matchPrefix(set, normalization.Path(path))
	s.metrics.IncReservedCheck("prefix", ok)
	return ok, nil
}

func (s *reservedPathService) IsReservedSlug(ctx context.Context, slug string) (bool, error) {
	set, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	p := normalization.Path(slug)
	ok := matchPath(set, p) || matchPrefix(set, p)
	s.metrics.IncReservedCheck("slug", ok)
	return ok, nil
}

func matchPath(set ReservedSet, p string) bool {
	if p == "" {
		return false
	}
	for _, r := range set.Paths {
		if r == p {
			return true
		}
	}
	return false
}

// matchPrefix: a single segment must equal a prefix; deeper paths must start
// with prefix + "/".
func matchPrefix(set ReservedSet, p string) bool {
	if p == "" {
		return false
	}
	single := !strings.Contains(p, "/")
	for _, r := range set.Prefixes {
		if single {
			if r == p {
				return true
			}
			continue
		}
		if strings.HasPrefix(p, r+"/") {
			return true
		}
	}
	return false
}

// SlugPattern builds ^(?!^(?:a|b)$)<slug>$ over the reserved first segments.
// The lookahead is left out when nothing is reserved.
func (s *reservedPathService) SlugPattern(ctx context.Context) (string, error) {
	set, err := s.All(ctx)
	if err != nil {
		return "", err
	}
	return BuildSlugPattern(set.FirstSegments()), nil
}

func BuildSlugPattern(segments []string) string {
	if len(segments) == 0 {
		return "^" + slugShape + "$"
	}
	quoted := make([]string, 0, len(segments))
	for _, seg := range segments {
		quoted = append(quoted, regexp2.Escape(seg))
	}
	return "^(?!^(?:" + strings.Join(quoted, "|") + ")$)" + slugShape + "$"
}

// SlugRegex is memoized until Invalidate.
func (s *reservedPathService) SlugRegex(ctx context.Context) (*regexp2.Regexp, error) {
	s.mu.Lock()
	if s.regex != nil {
		re := s.regex
		s.mu.Unlock()
		return re, nil
	}
	gen := s.gen
	s.mu.Unlock()

	expr, err := s.SlugPattern(ctx)
	if err != nil {
		return nil, err
	}
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile slug regex: %w", err)
	}
	s.mu.Lock()
	if s.gen == gen {
		s.regex = re
	}
	s.mu.Unlock()
	s.log.Debug("slug regex compiled", "pattern", expr)
	return re, nil
}

func (s *reservedPathService) List(ctx context.Context) ([]*types.ReservedRoute, error) {
	return s.routes.List(dbctx.Context{Ctx: ctx})
}

func (s *reservedPathService) Register(ctx context.Context, path, kind, source string) error {
	const op = "Routing.ReservedPaths.Register"
	entry, err := normalizeEntry(op, ReservedEntry{Path: path, Kind: kind})
	if err != nil {
		return err
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return domainagg.ValidationError(op, "missing source")
	}
	if err := s.routes.Upsert(dbctx.Context{Ctx: ctx}, []*types.ReservedRoute{{Path: entry.Path, Kind: entry.Kind, Source: source}}); err != nil {
		return err
	}
	s.log.Info("reserved route registered", "path", entry.Path, "kind", entry.Kind, "source", source)
	return s.Invalidate(ctx)
}

func (s *reservedPathService) Unregister(ctx context.Context, path, kind string) (bool, error) {
	const op = "Routing.ReservedPaths.Unregister"
	entry, err := normalizeEntry(op, ReservedEntry{Path: path, Kind: kind})
	if err != nil {
		return false, err
	}
	removed, err := s.routes.Delete(dbctx.Context{Ctx: ctx}, entry.Path, entry.Kind)
	if err != nil {
		return false, err
	}
	if removed {
		if err := s.Invalidate(ctx); err != nil {
			return true, err
		}
	}
	return removed, nil
}

// SyncSource replaces every stored reservation owned by source with entries.
func (s *reservedPathService) SyncSource(ctx context.Context, source string, entries []ReservedEntry) error {
	const op = "Routing.ReservedPaths.SyncSource"
	source = strings.TrimSpace(source)
	if source == "" {
		return domainagg.ValidationError(op, "missing source")
	}
	rows := make([]*types.ReservedRoute, 0, len(entries))
	seen := map[ReservedEntry]bool{}
	for _, e := range entries {
		n, err := normalizeEntry(op, e)
		if err != nil {
			return err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		rows = append(rows, &types.ReservedRoute{Path: n.Path, Kind: n.Kind, Source: source})
	}

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		if removed, err = s.routes.DeleteBySource(dbc, source); err != nil {
			return err
		}
		return s.routes.Upsert(dbc, rows)
	})
	if err != nil {
		return fmt.Errorf("sync reserved routes for %s: %w", source, err)
	}
	s.log.Info("reserved routes synced", "source", source, "removed", removed, "entries", len(rows))
	return s.Invalidate(ctx)
}

// Invalidate drops the cached set before the memoized regex, so a compile
// that starts after the bump can only read the new set.
func (s *reservedPathService) Invalidate(ctx context.Context) error {
	err := s.cache.ForgetTag(ctx, ReservedPathsCacheTag)
	s.mu.Lock()
	s.gen++
	s.regex = nil
	s.mu.Unlock()
	return err
}

func normalizeEntry(op string, e ReservedEntry) (ReservedEntry, error) {
	out := ReservedEntry{Path: normalization.Path(e.Path), Kind: strings.ToLower(strings.TrimSpace(e.Kind))}
	if out.Kind == "" {
		out.Kind = types.ReservedKindPath
	}
	if out.Path == "" {
		return out, domainagg.ValidationError(op, "missing path")
	}
	if out.Kind != types.ReservedKindPath && out.Kind != types.ReservedKindPrefix {
		return out, domainagg.ValidationError(op, fmt.Sprintf("unknown reserved kind %q", e.Kind))
	}
	return out, nil
}

// ReservedManifest is the on-disk form a plugin ships its reservations in.
type ReservedManifest struct {
	Source   string   `yaml:"source"`
	Paths    []string `yaml:"paths"`
	Prefixes []string `yaml:"prefixes"`
}

func (m ReservedManifest) Entries() []ReservedEntry {
	out := make([]ReservedEntry, 0, len(m.Paths)+len(m.Prefixes))
	for _, p := range m.Paths {
		out = append(out, ReservedEntry{Path: p, Kind: types.ReservedKindPath})
	}
	for _, p := range m.Prefixes {
		out = append(out, ReservedEntry{Path: p, Kind: types.ReservedKindPrefix})
	}
	return out
}

func LoadReservedManifest(path string) (ReservedManifest, error) {
	var m ReservedManifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read reserved manifest: %w", err)
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("parse reserved manifest %s: %w", path, err)
	}
	m.Source = strings.TrimSpace(m.Source)
	if m.Source == "" {
		return m, fmt.Errorf("reserved manifest %s: missing source", path)
	}
	return m, nil
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]bool{}, items: []string{}}
}

func (o *orderedSet) add(v string) {
	if v == "" || o.seen[v] {
		return
	}
	o.seen[v] = true
	o.items = append(o.items, v)
}
