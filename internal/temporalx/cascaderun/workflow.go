package cascaderun

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/cms-backend/internal/services"
)

const continueHistoryLimit = 10000

// Workflow drains the cascade worklist one Step activity at a time. Each step
// re-materializes the embeds of one blueprint and pushes one follow-up event
// per embed; events whose blueprint is already in their processed set stop.
func Workflow(ctx workflow.Context, in WorkflowInput) (WorkflowResult, error) {
	if len(in.Pending) == 0 && in.Steps == 0 {
		return WorkflowResult{}, fmt.Errorf("cascaderun: empty worklist")
	}
	limit := in.StepLimit
	if limit <= 0 {
		limit = defaultStepLimit
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})
	log := workflow.GetLogger(ctx)

	pending := append([]services.StructureChanged(nil), in.Pending...)
	affected := append([]uuid.UUID(nil), in.Affected...)
	steps, guarded := in.Steps, in.Guarded
	ran := 0

	for len(pending) > 0 {
		ev := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		var step services.CascadeStep
		if err := workflow.ExecuteActivity(ctx, ActivityStep, ev).Get(ctx, &step); err != nil {
			return WorkflowResult{Affected: affected, Steps: steps, Guarded: guarded}, err
		}
		steps++
		ran++
		if step.Guarded {
			guarded++
		}
		for _, id := range step.Affected {
			affected = appendUnique(affected, id)
		}
		for i := len(step.Next) - 1; i >= 0; i-- {
			pending = append(pending, step.Next[i])
		}

		if len(pending) > 0 && shouldContinueAsNew(ctx, ran, limit) {
			log.Info("cascade continuing as new", "steps", steps, "pending", len(pending))
			return WorkflowResult{}, workflow.NewContinueAsNewError(ctx, WorkflowName, WorkflowInput{
				Pending:   pending,
				Affected:  affected,
				Steps:     steps,
				Guarded:   guarded,
				StepLimit: in.StepLimit,
			})
		}
	}

	if affected == nil {
		affected = []uuid.UUID{}
	}
	return WorkflowResult{Affected: affected, Steps: steps, Guarded: guarded}, nil
}

func shouldContinueAsNew(ctx workflow.Context, ran, limit int) bool {
	if ran >= limit {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= continueHistoryLimit
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}
