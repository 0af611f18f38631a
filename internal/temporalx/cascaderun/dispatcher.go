package cascaderun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/services"
)

type dispatcher struct {
	log       *logger.Logger
	tc        temporalsdkclient.Client
	taskQueue string
	metrics   *observability.Metrics
}

// NewDispatcher starts one workflow per raised change and returns without
// waiting for it.
func NewDispatcher(log *logger.Logger, tc temporalsdkclient.Client, taskQueue string, metrics *observability.Metrics) services.CascadeDispatcher {
	return &dispatcher{
		log:       log.With("component", "TemporalCascadeDispatcher"),
		tc:        tc,
		taskQueue: taskQueue,
		metrics:   metrics,
	}
}

func (d *dispatcher) Name() string { return "temporal" }

func (d *dispatcher) Dispatch(ctx context.Context, ev services.StructureChanged) (services.CascadeOutcome, error) {
	const op = "Blueprints.Cascade.Dispatch"
	out := services.CascadeOutcome{Dispatcher: d.Name(), Deferred: true, Affected: []uuid.UUID{}}
	if d.tc == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "temporal client not configured", nil)
	}
	start := time.Now()
	run, err := d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        workflowIDPrefix + ev.BlueprintID.String() + "-" + uuid.NewString(),
		TaskQueue: d.taskQueue,
	}, WorkflowName, WorkflowInput{Pending: []services.StructureChanged{ev}})
	if err != nil {
		return out, domainagg.NewError(domainagg.CodeRetryable, op, "start cascade workflow", err)
	}
	out.WorkflowID = run.GetID()
	d.metrics.ObserveCascade(d.Name(), 0, time.Since(start))
	d.log.Info("cascade workflow started", "blueprint_id", ev.BlueprintID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return out, nil
}

// Await blocks until the cascade workflow finishes and returns its result.
func Await(ctx context.Context, tc temporalsdkclient.Client, workflowID string) (WorkflowResult, error) {
	var res WorkflowResult
	if tc == nil {
		return res, fmt.Errorf("cascaderun: temporal client not configured")
	}
	if err := tc.GetWorkflow(ctx, workflowID, "").Get(ctx, &res); err != nil {
		return res, err
	}
	return res, nil
}
