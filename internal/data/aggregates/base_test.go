package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

// countingRunner runs the body without a database and counts attempts.
type countingRunner struct{ calls int }

func (r *countingRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.calls++
	if fn == nil {
		return nil
	}
	return fn(dbctx.Context{Ctx: ctx})
}

type hookLog struct {
	ops       []string // "name=status"
	conflicts int
	retries   int
}

func (h *hookLog) ObserveOperation(name, status string, _ time.Duration) {
	h.ops = append(h.ops, name+"="+status)
}
func (h *hookLog) IncConflict(string) { h.conflicts++ }
func (h *hookLog) IncRetry(string)    { h.retries++ }

func TestExecuteWriteOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		op        string
		attempts  int
		body      func(calls int) error
		wantCode  domainagg.ErrorCode
		wantOp    string
		wantCalls int
		conflicts int
		retries   int
	}{
		{
			name:      "success",
			op:        "Routing.RouteTree.Create",
			body:      func(int) error { return nil },
			wantOp:    "Routing.RouteTree.Create=success",
			wantCalls: 1,
		},
		{
			name: "cycle",
			op:   "Taxonomy.TermHierarchy.SetParent",
			body: func(int) error {
				return domainagg.CycleError("Taxonomy.TermHierarchy.SetParent", "parent is a descendant")
			},
			wantCode:  domainagg.CodeInvariantViolation,
			wantOp:    "Taxonomy.TermHierarchy.SetParent=invariant_violation",
			wantCalls: 1,
		},
		{
			name:      "conflict is not retried",
			op:        "Blueprints.Blueprint.Embed",
			body:      func(int) error { return ConflictError(`full path "seo.title" already exists`) },
			wantCode:  domainagg.CodeConflict,
			wantOp:    "Blueprints.Blueprint.Embed=conflict",
			wantCalls: 1,
			conflicts: 1,
		},
		{
			name:      "busy database exhausts attempts",
			op:        "Routing.RouteTree.Move",
			attempts:  2,
			body:      func(int) error { return errors.New("database is locked") },
			wantCode:  domainagg.CodeRetryable,
			wantOp:    "Routing.RouteTree.Move=retryable",
			wantCalls: 2,
			retries:   2,
		},
		{
			name: "serialization failure succeeds on retry",
			op:   "Taxonomy.TermHierarchy.MoveSubtree",
			body: func(calls int) error {
				if calls == 1 {
					return errors.New("ERROR: serialization failure (SQLSTATE 40001)")
				}
				return nil
			},
			wantOp:    "Taxonomy.TermHierarchy.MoveSubtree=success",
			wantCalls: 2,
			retries:   1,
		},
		{
			name:      "blank op name",
			op:        "  ",
			body:      func(int) error { return errors.New("boom") },
			wantCode:  domainagg.CodeInternal,
			wantOp:    "aggregate.write=internal",
			wantCalls: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &countingRunner{}
			hooks := &hookLog{}
			err := executeWrite(context.Background(), BaseDeps{
				Runner:       runner,
				Hooks:        hooks,
				Attempts:     tc.attempts,
				RetryBackoff: time.Millisecond,
			}, tc.op, func(dbctx.Context) error { return tc.body(runner.calls) })

			if tc.wantCode == "" {
				require.NoError(t, err)
			} else {
				assert.True(t, domainagg.IsCode(err, tc.wantCode), "got %v", err)
			}
			assert.Equal(t, tc.wantCalls, runner.calls)
			assert.Equal(t, []string{tc.wantOp}, hooks.ops)
			assert.Equal(t, tc.conflicts, hooks.conflicts)
			assert.Equal(t, tc.retries, hooks.retries)
		})
	}
}

func TestExecuteWriteStopsRetryingWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &countingRunner{}
	err := executeWrite(ctx, BaseDeps{
		Runner:       runner,
		Hooks:        &hookLog{},
		Attempts:     5,
		RetryBackoff: time.Hour,
	}, "Routing.RouteTree.Create", func(dbctx.Context) error {
		cancel()
		return RetryableError("busy")
	})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeRetryable))
	assert.Equal(t, 1, runner.calls)
}

func TestAggregateErrorStatus(t *testing.T) {
	for in, want := range map[error]string{
		InvariantError("x"):       string(domainagg.CodeInvariantViolation),
		ConflictError("x"):        string(domainagg.CodeConflict),
		RetryableError("x"):       string(domainagg.CodeRetryable),
		context.DeadlineExceeded:  string(domainagg.CodeRetryable),
		ValidationError("bad id"): string(domainagg.CodeValidation),
	} {
		assert.Equal(t, want, aggregateErrorStatus(in), "%v", in)
	}
	assert.Equal(t, "success", aggregateErrorStatus(nil))
}
