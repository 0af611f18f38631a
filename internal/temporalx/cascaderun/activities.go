package cascaderun

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/services"
)

type Activities struct {
	Log     *logger.Logger
	Cascade services.BlueprintCascade
}

// Step runs one cascade step. Failures that cannot heal on retry are reported
// as non-retryable.
func (a *Activities) Step(ctx context.Context, ev services.StructureChanged) (services.CascadeStep, error) {
	if a == nil || a.Cascade == nil {
		return services.CascadeStep{}, fmt.Errorf("cascaderun: activity not configured")
	}
	info := activity.GetInfo(ctx)
	step, err := a.Cascade.Step(ctx, ev)
	if err != nil {
		if a.Log != nil {
			a.Log.Warn("cascade step failed", "blueprint_id", ev.BlueprintID, "workflow_id", info.WorkflowExecution.ID, "attempt", info.Attempt, "error", err)
		}
		if domainagg.Permanent(err) {
			return step, temporal.NewNonRetryableApplicationError(err.Error(), string(domainagg.CodeOf(err)), err)
		}
		return step, err
	}
	return step, nil
}
