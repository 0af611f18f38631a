package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/data/repos"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

// TermWithDepth is a term positioned relative to the term a query started from.
type TermWithDepth struct {
	*types.TaxonomyTerm
	Depth int `json:"depth"`
}

type TaxonomyService interface {
	CreateTaxonomy(ctx context.Context, code, name string, hierarchical bool) (*types.Taxonomy, error)
	GetTaxonomy(ctx context.Context, code string) (*types.Taxonomy, error)
	ListTaxonomies(ctx context.Context) ([]*types.Taxonomy, error)
	ListTerms(ctx context.Context, taxonomyID uuid.UUID) ([]*types.TaxonomyTerm, error)

	CreateTerm(ctx context.Context, in domainagg.CreateTermInput) (domainagg.TermHierarchyResult, error)
	SetParent(ctx context.Context, termID uuid.UUID, parentID *uuid.UUID) (domainagg.TermHierarchyResult, error)
	MoveSubtree(ctx context.Context, termID uuid.UUID, parentID *uuid.UUID) (domainagg.TermHierarchyResult, error)
	RemoveFromTree(ctx context.Context, termID uuid.UUID) error
	DeleteTerm(ctx context.Context, termID uuid.UUID) (domainagg.DeleteTermResult, error)

	Ancestors(ctx context.Context, termID uuid.UUID) ([]TermWithDepth, error)
	Descendants(ctx context.Context, termID uuid.UUID) ([]TermWithDepth, error)
	Children(ctx context.Context, termID uuid.UUID) ([]*types.TaxonomyTerm, error)
	Parent(ctx context.Context, termID uuid.UUID) (*types.TaxonomyTerm, error)
	Depth(ctx context.Context, termID uuid.UUID) (int, error)
}

type taxonomyService struct {
	log        *logger.Logger
	taxonomies repos.TaxonomyRepo
	terms      repos.TermRepo
	closure    repos.TermClosureRepo
	agg        domainagg.TermHierarchyAggregate
}

func NewTaxonomyService(
	baseLog *logger.Logger,
	taxonomies repos.TaxonomyRepo,
	terms repos.TermRepo,
	closure repos.TermClosureRepo,
	agg domainagg.TermHierarchyAggregate,
) TaxonomyService {
	return &taxonomyService{
		log:        baseLog.With("service", "TaxonomyService"),
		taxonomies: taxonomies,
		terms:      terms,
		closure:    closure,
		agg:        agg,
	}
}

func (s *taxonomyService) CreateTaxonomy(ctx context.Context, code, name string, hierarchical bool) (*types.Taxonomy, error) {
	const op = "Taxonomy.Taxonomy.Create"
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, domainagg.ValidationError(op, "missing code")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}
	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.taxonomies.GetByCode(dbc, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domainagg.NewError(domainagg.CodeConflict, op, "taxonomy code already exists: "+code, nil)
	}
	return s.taxonomies.Create(dbc, &types.Taxonomy{Code: code, Name: name, Hierarchical: hierarchical})
}

func (s *taxonomyService) GetTaxonomy(ctx context.Context, code string) (*types.Taxonomy, error) {
	return s.taxonomies.GetByCode(dbctx.Context{Ctx: ctx}, strings.ToLower(strings.TrimSpace(code)))
}

func (s *taxonomyService) ListTaxonomies(ctx context.Context) ([]*types.Taxonomy, error) {
	return s.taxonomies.List(dbctx.Context{Ctx: ctx})
}

func (s *taxonomyService) ListTerms(ctx context.Context, taxonomyID uuid.UUID) ([]*types.TaxonomyTerm, error) {
	return s.terms.ListByTaxonomy(dbctx.Context{Ctx: ctx}, taxonomyID)
}

func (s *taxonomyService) CreateTerm(ctx context.Context, in domainagg.CreateTermInput) (domainagg.TermHierarchyResult, error) {
	return s.agg.CreateTerm(ctx, in)
}

func (s *taxonomyService) SetParent(ctx context.Context, termID uuid.UUID, parentID *uuid.UUID) (domainagg.TermHierarchyResult, error) {
	return s.agg.SetParent(ctx, domainagg.SetParentInput{TermID: termID, ParentID: parentID})
}

func (s *taxonomyService) MoveSubtree(ctx context.Context, termID uuid.UUID, parentID *uuid.UUID) (domainagg.TermHierarchyResult, error) {
	return s.agg.MoveSubtree(ctx, domainagg.SetParentInput{TermID: termID, ParentID: parentID})
}

func (s *taxonomyService) RemoveFromTree(ctx context.Context, termID uuid.UUID) error {
	return s.agg.RemoveFromTree(ctx, termID)
}

func (s *taxonomyService) DeleteTerm(ctx context.Context, termID uuid.UUID) (domainagg.DeleteTermResult, error) {
	return s.agg.DeleteTerm(ctx, termID)
}

// Ancestors returns the chain above the term, nearest first.
func (s *taxonomyService) Ancestors(ctx context.Context, termID uuid.UUID) ([]TermWithDepth, error) {
	dbc := dbctx.Context{Ctx: ctx}
	edges, err := s.closure.ListAncestors(dbc, termID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(edges))
	depths := make(map[uuid.UUID]int, len(edges))
	for _, e := range edges {
		ids = append(ids, e.AncestorID)
		depths[e.AncestorID] = e.Depth
	}
	return s.withDepth(dbc, ids, depths)
}

// Descendants returns everything below the term, shallowest first.
func (s *taxonomyService) Descendants(ctx context.Context, termID uuid.UUID) ([]TermWithDepth, error) {
	dbc := dbctx.Context{Ctx: ctx}
	edges, err := s.closure.ListDescendants(dbc, termID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(edges))
	depths := make(map[uuid.UUID]int, len(edges))
	for _, e := range edges {
		if e.Depth == 0 {
			continue
		}
		ids = append(ids, e.DescendantID)
		depths[e.DescendantID] = e.Depth
	}
	return s.withDepth(dbc, ids, depths)
}

func (s *taxonomyService) withDepth(dbc dbctx.Context, ids []uuid.UUID, depths map[uuid.UUID]int) ([]TermWithDepth, error) {
	if len(ids) == 0 {
		return []TermWithDepth{}, nil
	}
	rows, err := s.terms.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.TaxonomyTerm, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]TermWithDepth, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, TermWithDepth{TaxonomyTerm: t, Depth: depths[id]})
		}
	}
	return out, nil
}

func (s *taxonomyService) Children(ctx context.Context, termID uuid.UUID) ([]*types.TaxonomyTerm, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ids, err := s.closure.ListChildren(dbc, termID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*types.TaxonomyTerm{}, nil
	}
	return s.terms.GetByIDs(dbc, ids)
}

func (s *taxonomyService) Parent(ctx context.Context, termID uuid.UUID) (*types.TaxonomyTerm, error) {
	dbc := dbctx.Context{Ctx: ctx}
	pid, err := s.closure.ParentOf(dbc, termID)
	if err != nil || pid == nil {
		return nil, err
	}
	return s.terms.GetByID(dbc, *pid)
}

func (s *taxonomyService) Depth(ctx context.Context, termID uuid.UUID) (int, error) {
	return s.closure.Depth(dbctx.Context{Ctx: ctx}, termID)
}
