package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	cases := []error{
		ConflictError("taken"),
		gorm.ErrDuplicatedKey,
		&pgconn.PgError{Code: "23505"},
		errors.New("UNIQUE constraint failed: blueprint_path.blueprint_id, blueprint_path.full_path"),
	}
	for _, in := range cases {
		if err := MapError("op", in); !domainagg.IsCode(err, domainagg.CodeConflict) {
			t.Fatalf("%v: expected conflict code, got %q", in, domainagg.CodeOf(err))
		}
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_StructuralSentinels(t *testing.T) {
	if err := MapError("op", fmt.Errorf("set parent: %w", domainagg.ErrCycleDetected)); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("cycle: got %q", domainagg.CodeOf(err))
	}
	if err := MapError("op", domainagg.ErrInvalidTaxonomyRelation); !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("taxonomy relation: got %q", domainagg.CodeOf(err))
	}
	if err := MapError("op", fmt.Errorf("force delete: %w", domainagg.ErrHasChildren)); !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("has children: got %q", domainagg.CodeOf(err))
	}
	err := MapError("op", domainagg.ErrSelfEmbed)
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) || !errors.Is(err, domainagg.ErrSelfEmbed) {
		t.Fatalf("self embed: got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Retryable(t *testing.T) {
	for _, in := range []error{
		&pgconn.PgError{Code: "40P01"},
		errors.New("database is locked"),
	} {
		if err := MapError("op", in); !domainagg.IsCode(err, domainagg.CodeRetryable) {
			t.Fatalf("%v: expected retryable, got %q", in, domainagg.CodeOf(err))
		}
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}
