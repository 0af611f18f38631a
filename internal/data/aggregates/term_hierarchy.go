package aggregates

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/data/repos"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

const termTable = "taxonomy_term"

type TermHierarchyAggregateDeps struct {
	Base BaseDeps

	Taxonomies repos.TaxonomyRepo
	Terms      repos.TermRepo
	Closure    repos.TermClosureRepo
}

type termHierarchyAggregate struct {
	deps TermHierarchyAggregateDeps
}

func NewTermHierarchyAggregate(deps TermHierarchyAggregateDeps) domainagg.TermHierarchyAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Locks = deps.Base.Locks.For(domainagg.TermHierarchyAggregateContract)
	return &termHierarchyAggregate{deps: deps}
}

func (a *termHierarchyAggregate) Contract() domainagg.Contract {
	return domainagg.TermHierarchyAggregateContract
}

func (a *termHierarchyAggregate) configured(op string) error {
	if a.deps.Taxonomies == nil || a.deps.Terms == nil || a.deps.Closure == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "term hierarchy repos not configured", nil)
	}
	return nil
}

// CreateTerm inserts the term with its self-edge and, when ParentID is set,
// attaches it under the parent in the same transaction.
func (a *termHierarchyAggregate) CreateTerm(ctx context.Context, in domainagg.CreateTermInput) (domainagg.TermHierarchyResult, error) {
	const op = "Taxonomy.TermHierarchy.CreateTerm"
	var out domainagg.TermHierarchyResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(in.Slug)
	if in.TaxonomyID == uuid.Nil {
		return out, domainagg.ValidationError(op, "missing taxonomy_id")
	}
	if name == "" || slug == "" {
		return out, domainagg.ValidationError(op, "name and slug are required")
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		tax, err := a.deps.Taxonomies.GetByID(dbc, in.TaxonomyID)
		if err != nil {
			return err
		}
		if tax == nil {
			return notFound(op, "taxonomy", in.TaxonomyID)
		}
		term, err := a.deps.Terms.Create(dbc, &types.TaxonomyTerm{
			TaxonomyID: tax.ID,
			Name:       name,
			Slug:       slug,
			SortOrder:  in.SortOrder,
		})
		if err != nil {
			return err
		}
		if err := a.attach(dbc, term.ID); err != nil {
			return err
		}
		if in.ParentID != nil {
			if err := a.setParent(dbc, op, term, *in.ParentID); err != nil {
				return err
			}
		}
		out, err = a.result(dbc, term)
		return err
	})
	return out, err
}

// AttachTerm inserts the self-edge for a term created elsewhere. It is a no-op
// when the term already has its edges.
func (a *termHierarchyAggregate) AttachTerm(ctx context.Context, termID uuid.UUID) (domainagg.TermHierarchyResult, error) {
	const op = "Taxonomy.TermHierarchy.AttachTerm"
	var out domainagg.TermHierarchyResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		term, err := a.lockTerm(dbc, op, termID)
		if err != nil {
			return err
		}
		edges, err := a.deps.Closure.ListForTerm(dbc, term.ID)
		if err != nil {
			return err
		}
		if !hasSelfEdge(edges, term.ID) {
			if err := a.attach(dbc, term.ID); err != nil {
				return err
			}
		}
		out, err = a.result(dbc, term)
		return err
	})
	return out, err
}

func (a *termHierarchyAggregate) SetParent(ctx context.Context, in domainagg.SetParentInput) (domainagg.TermHierarchyResult, error) {
	const op = "Taxonomy.TermHierarchy.SetParent"
	var out domainagg.TermHierarchyResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.lockPair(dbc, op, in.TermID, in.ParentID); err != nil {
			return err
		}
		term, err := a.loadTerm(dbc, op, in.TermID)
		if err != nil {
			return err
		}
		if in.ParentID == nil {
			if err := a.deps.Closure.DeleteForTerm(dbc, term.ID); err != nil {
				return err
			}
			if err := a.attach(dbc, term.ID); err != nil {
				return err
			}
		} else if err := a.setParent(dbc, op, term, *in.ParentID); err != nil {
			return err
		}
		out, err = a.result(dbc, term)
		return err
	})
	return out, err
}

// setParent rewrites the term's own edges under parentID. Every precondition
// is checked before the first delete.
func (a *termHierarchyAggregate) setParent(dbc dbctx.Context, op string, term *types.TaxonomyTerm, parentID uuid.UUID) error {
	parent, err := a.checkParent(dbc, op, term, parentID)
	if err != nil {
		return err
	}
	parentAncestors, err := a.deps.Closure.ListAncestors(dbc, parent.ID)
	if err != nil {
		return err
	}

	if err := a.deps.Closure.DeleteForTerm(dbc, term.ID); err != nil {
		return err
	}
	edges := []*types.TermClosure{
		{AncestorID: term.ID, DescendantID: term.ID, Depth: 0},
		{AncestorID: parent.ID, DescendantID: term.ID, Depth: 1},
	}
	for _, e := range parentAncestors {
		if e.AncestorID == parent.ID {
			continue
		}
		edges = append(edges, &types.TermClosure{
			AncestorID:   e.AncestorID,
			DescendantID: term.ID,
			Depth:        e.Depth + 1,
		})
	}
	return a.deps.Closure.Insert(dbc, edges)
}

// MoveSubtree reparents the term together with everything below it. Edges
// inside the subtree are kept; edges to the old ancestors are replaced by the
// cross product of the new ancestor chain and the subtree.
func (a *termHierarchyAggregate) MoveSubtree(ctx context.Context, in domainagg.SetParentInput) (domainagg.TermHierarchyResult, error) {
	const op = "Taxonomy.TermHierarchy.MoveSubtree"
	var out domainagg.TermHierarchyResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.lockPair(dbc, op, in.TermID, in.ParentID); err != nil {
			return err
		}
		term, err := a.loadTerm(dbc, op, in.TermID)
		if err != nil {
			return err
		}
		if err := a.moveSubtree(dbc, op, term, in.ParentID); err != nil {
			return err
		}
		out, err = a.result(dbc, term)
		return err
	})
	return out, err
}

func (a *termHierarchyAggregate) moveSubtree(dbc dbctx.Context, op string, term *types.TaxonomyTerm, parentID *uuid.UUID) error {
	var parentChain []*types.TermClosure
	if parentID != nil {
		parent, err := a.checkParent(dbc, op, term, *parentID)
		if err != nil {
			return err
		}
		parentChain, err = a.deps.Closure.ListAncestors(dbc, parent.ID)
		if err != nil {
			return err
		}
		parentChain = append([]*types.TermClosure{{AncestorID: parent.ID, DescendantID: parent.ID, Depth: 0}}, parentChain...)
	}

	subtree, err := a.deps.Closure.ListDescendants(dbc, term.ID)
	if err != nil {
		return err
	}
	if len(subtree) == 0 {
		subtree = []*types.TermClosure{{AncestorID: term.ID, DescendantID: term.ID, Depth: 0}}
		if err := a.attach(dbc, term.ID); err != nil {
			return err
		}
	}
	ids := make([]uuid.UUID, 0, len(subtree))
	for _, e := range subtree {
		ids = append(ids, e.DescendantID)
	}
	if err := a.deps.Closure.DeleteCrossEdges(dbc, ids); err != nil {
		return err
	}

	edges := make([]*types.TermClosure, 0, len(parentChain)*len(subtree))
	for _, up := range parentChain {
		for _, down := range subtree {
			edges = append(edges, &types.TermClosure{
				AncestorID:   up.AncestorID,
				DescendantID: down.DescendantID,
				Depth:        up.Depth + down.Depth + 1,
			})
		}
	}
	return a.deps.Closure.Insert(dbc, edges)
}

func (a *termHierarchyAggregate) RemoveFromTree(ctx context.Context, termID uuid.UUID) error {
	const op = "Taxonomy.TermHierarchy.RemoveFromTree"
	if err := a.configured(op); err != nil {
		return err
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.lockTerm(dbc, op, termID); err != nil {
			return err
		}
		return a.deps.Closure.DeleteForTerm(dbc, termID)
	})
}

// DeleteTerm moves the term's direct children (with their subtrees) to the
// term's parent, drops the term's edges and soft-deletes the row.
func (a *termHierarchyAggregate) DeleteTerm(ctx context.Context, termID uuid.UUID) (domainagg.DeleteTermResult, error) {
	const op = "Taxonomy.TermHierarchy.DeleteTerm"
	out := domainagg.DeleteTermResult{TermID: termID}
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		term, err := a.lockTerm(dbc, op, termID)
		if err != nil {
			return err
		}
		parentID, err := a.deps.Closure.ParentOf(dbc, term.ID)
		if err != nil {
			return err
		}
		children, err := a.deps.Closure.ListChildren(dbc, term.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			if _, err := a.deps.Base.Locks.LockIDs(dbc, termTable, children...); err != nil {
				return err
			}
		}
		for _, childID := range children {
			child, err := a.loadTerm(dbc, op, childID)
			if err != nil {
				return err
			}
			if err := a.moveSubtree(dbc, op, child, parentID); err != nil {
				return err
			}
			out.ReparentedChildren = append(out.ReparentedChildren, childID)
		}
		if err := a.deps.Closure.DeleteForTerm(dbc, term.ID); err != nil {
			return err
		}
		return a.deps.Terms.SoftDelete(dbc, term.ID)
	})
	return out, err
}

// checkParent enforces the reparenting preconditions: the parent exists, lives
// in the same hierarchical taxonomy, and is neither the term nor below it.
func (a *termHierarchyAggregate) checkParent(dbc dbctx.Context, op string, term *types.TaxonomyTerm, parentID uuid.UUID) (*types.TaxonomyTerm, error) {
	if parentID == term.ID {
		return nil, domainagg.CycleError(op, "term cannot be its own parent")
	}
	parent, err := a.deps.Terms.GetByID(dbc, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, notFound(op, "parent term", parentID)
	}
	if parent.TaxonomyID != term.TaxonomyID {
		return nil, domainagg.PreconditionError(op, "parent belongs to a different taxonomy", domainagg.ErrInvalidTaxonomyRelation)
	}
	tax, err := a.deps.Taxonomies.GetByID(dbc, term.TaxonomyID)
	if err != nil {
		return nil, err
	}
	if tax != nil && !tax.Hierarchical {
		return nil, domainagg.PreconditionError(op, "taxonomy does not allow parents", domainagg.ErrInvalidTaxonomyRelation)
	}
	below, err := a.deps.Closure.IsDescendant(dbc, term.ID, parent.ID)
	if err != nil {
		return nil, err
	}
	if below {
		return nil, domainagg.CycleError(op, "parent is a descendant of term")
	}
	return parent, nil
}

func (a *termHierarchyAggregate) lockPair(dbc dbctx.Context, op string, termID uuid.UUID, parentID *uuid.UUID) error {
	if termID == uuid.Nil {
		return domainagg.ValidationError(op, "missing term_id")
	}
	ids := []uuid.UUID{termID}
	if parentID != nil {
		ids = append(ids, *parentID)
	}
	_, err := a.deps.Base.Locks.LockIDs(dbc, termTable, ids...)
	return err
}

func (a *termHierarchyAggregate) lockTerm(dbc dbctx.Context, op string, termID uuid.UUID) (*types.TaxonomyTerm, error) {
	if termID == uuid.Nil {
		return nil, domainagg.ValidationError(op, "missing term_id")
	}
	if _, err := a.deps.Base.Locks.LockIDs(dbc, termTable, termID); err != nil {
		return nil, err
	}
	return a.loadTerm(dbc, op, termID)
}

func (a *termHierarchyAggregate) loadTerm(dbc dbctx.Context, op string, termID uuid.UUID) (*types.TaxonomyTerm, error) {
	term, err := a.deps.Terms.GetByID(dbc, termID)
	if err != nil {
		return nil, err
	}
	if term == nil {
		return nil, notFound(op, "term", termID)
	}
	return term, nil
}

func (a *termHierarchyAggregate) attach(dbc dbctx.Context, termID uuid.UUID) error {
	return a.deps.Closure.Insert(dbc, []*types.TermClosure{{AncestorID: termID, DescendantID: termID, Depth: 0}})
}

func (a *termHierarchyAggregate) result(dbc dbctx.Context, term *types.TaxonomyTerm) (domainagg.TermHierarchyResult, error) {
	edges, err := a.deps.Closure.ListForTerm(dbc, term.ID)
	if err != nil {
		return domainagg.TermHierarchyResult{}, err
	}
	return domainagg.TermHierarchyResult{Term: term, Edges: edges}, nil
}

func hasSelfEdge(edges []*types.TermClosure, id uuid.UUID) bool {
	for _, e := range edges {
		if e.AncestorID == id && e.DescendantID == id && e.Depth == 0 {
			return true
		}
	}
	return false
}
