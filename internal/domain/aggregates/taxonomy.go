package aggregates

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/cms-backend/internal/domain"
)

var TermHierarchyAggregateContract = Contract{
	Name:       "Taxonomy.TermHierarchyAggregate",
	Tables:     []string{"taxonomy_term", "taxonomy_term_closure"},
	LockPolicy: LockPolicyRowForUpdate,
	Notes:      "Owns taxonomy_term_closure edges. Cycle and cross-taxonomy checks run before any edge mutation.",
}

type CreateTermInput struct {
	TaxonomyID uuid.UUID
	Name       string
	Slug       string
	SortOrder  int
	ParentID   *uuid.UUID
}

type SetParentInput struct {
	TermID   uuid.UUID
	ParentID *uuid.UUID
}

type TermHierarchyResult struct {
	Term  *types.TaxonomyTerm
	Edges []*types.TermClosure
}

type DeleteTermResult struct {
	TermID             uuid.UUID
	ReparentedChildren []uuid.UUID
}

// TermHierarchyAggregate maintains the closure table of one taxonomy.
//
// SetParent rewrites only the edges of the term itself. Descendants keep their
// own edges, so a subtree under a moved term is detached from the old ancestors
// and not linked to the new ones. MoveSubtree moves the term with its subtree.
type TermHierarchyAggregate interface {
	Aggregate
	CreateTerm(ctx context.Context, in CreateTermInput) (TermHierarchyResult, error)
	AttachTerm(ctx context.Context, termID uuid.UUID) (TermHierarchyResult, error)
	SetParent(ctx context.Context, in SetParentInput) (TermHierarchyResult, error)
	MoveSubtree(ctx context.Context, in SetParentInput) (TermHierarchyResult, error)
	RemoveFromTree(ctx context.Context, termID uuid.UUID) error
	DeleteTerm(ctx context.Context, termID uuid.UUID) (DeleteTermResult, error)
}
