package cascaderun

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/services"
)

// graphCascade answers Step from an in-memory embed graph: owners[x] lists
// the blueprints that embed x, once per embed.
type graphCascade struct {
	services.BlueprintCascade
	owners map[uuid.UUID][]uuid.UUID
	calls  []uuid.UUID
	fail   error
}

func (g *graphCascade) Step(_ context.Context, ev services.StructureChanged) (services.CascadeStep, error) {
	g.calls = append(g.calls, ev.BlueprintID)
	if g.fail != nil {
		return services.CascadeStep{}, g.fail
	}
	for _, p := range ev.Processed {
		if p == ev.BlueprintID {
			return services.CascadeStep{Guarded: true}, nil
		}
	}
	processed := append(append([]uuid.UUID(nil), ev.Processed...), ev.BlueprintID)
	var out services.CascadeStep
	for _, owner := range g.owners[ev.BlueprintID] {
		out.Affected = appendUnique(out.Affected, owner)
		out.Next = append(out.Next, services.StructureChanged{BlueprintID: owner, Processed: processed})
	}
	return out, nil
}

type CascadeWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env     *testsuite.TestWorkflowEnvironment
	cascade *graphCascade
}

func (s *CascadeWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.cascade = &graphCascade{owners: map[uuid.UUID][]uuid.UUID{}}
	acts := &Activities{Cascade: s.cascade}
	s.env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	s.env.RegisterActivityWithOptions(acts.Step, activity.RegisterOptions{Name: ActivityStep})
}

func (s *CascadeWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *CascadeWorkflowSuite) TestChainCollectsAffected() {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	s.cascade.owners[c] = []uuid.UUID{b}
	s.cascade.owners[b] = []uuid.UUID{a}

	s.env.ExecuteWorkflow(WorkflowName, WorkflowInput{Pending: []services.StructureChanged{{BlueprintID: c}}})
	require.True(s.T(), s.env.IsWorkflowCompleted())
	require.NoError(s.T(), s.env.GetWorkflowError())

	var res WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&res))
	assert.Equal(s.T(), []uuid.UUID{b, a}, res.Affected)
	assert.Equal(s.T(), 3, res.Steps)
	assert.Equal(s.T(), 0, res.Guarded)
	assert.Equal(s.T(), []uuid.UUID{c, b, a}, s.cascade.calls)
}

func (s *CascadeWorkflowSuite) TestMutualEmbedTerminates() {
	a, b := uuid.New(), uuid.New()
	s.cascade.owners[a] = []uuid.UUID{b}
	s.cascade.owners[b] = []uuid.UUID{a}

	s.env.ExecuteWorkflow(WorkflowName, WorkflowInput{Pending: []services.StructureChanged{{BlueprintID: a}}})
	require.True(s.T(), s.env.IsWorkflowCompleted())
	require.NoError(s.T(), s.env.GetWorkflowError())

	var res WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&res))
	assert.ElementsMatch(s.T(), []uuid.UUID{a, b}, res.Affected)
	assert.Equal(s.T(), 1, res.Guarded)
	assert.Equal(s.T(), 3, res.Steps)
}

func (s *CascadeWorkflowSuite) TestDuplicateEmbedsFanOut() {
	a, b := uuid.New(), uuid.New()
	s.cascade.owners[b] = []uuid.UUID{a, a}

	s.env.ExecuteWorkflow(WorkflowName, WorkflowInput{Pending: []services.StructureChanged{{BlueprintID: b}}})
	require.NoError(s.T(), s.env.GetWorkflowError())

	var res WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&res))
	assert.Equal(s.T(), []uuid.UUID{a}, res.Affected)
	assert.Equal(s.T(), 3, res.Steps)
}

func (s *CascadeWorkflowSuite) TestStepLimitContinuesAsNew() {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	s.cascade.owners[c] = []uuid.UUID{b}
	s.cascade.owners[b] = []uuid.UUID{a}

	s.env.ExecuteWorkflow(WorkflowName, WorkflowInput{Pending: []services.StructureChanged{{BlueprintID: c}}, StepLimit: 1})
	require.True(s.T(), s.env.IsWorkflowCompleted())
	var can *workflow.ContinueAsNewError
	assert.True(s.T(), errors.As(s.env.GetWorkflowError(), &can))
}

func (s *CascadeWorkflowSuite) TestValidationFailureIsNotRetried() {
	s.cascade.fail = domainagg.ValidationError("test", "missing blueprint_id")

	s.env.ExecuteWorkflow(WorkflowName, WorkflowInput{Pending: []services.StructureChanged{{BlueprintID: uuid.New()}}})
	require.True(s.T(), s.env.IsWorkflowCompleted())
	require.Error(s.T(), s.env.GetWorkflowError())
	assert.Len(s.T(), s.cascade.calls, 1)
}

func TestCascadeWorkflowSuite(t *testing.T) {
	suite.Run(t, new(CascadeWorkflowSuite))
}
