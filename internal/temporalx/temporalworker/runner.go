package temporalworker

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/cms-backend/internal/platform/logger"
	"github.com/yungbote/cms-backend/internal/services"
	"github.com/yungbote/cms-backend/internal/temporalx"
	"github.com/yungbote/cms-backend/internal/temporalx/cascaderun"
)

// Runner polls the blueprint cascade task queue.
type Runner struct {
	log     *logger.Logger
	cfg     temporalx.Config
	tc      temporalsdkclient.Client
	cascade services.BlueprintCascade
}

func NewRunner(log *logger.Logger, cfg temporalx.Config, tc temporalsdkclient.Client, cascade services.BlueprintCascade) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if cascade == nil {
		return nil, fmt.Errorf("temporal worker needs a blueprint cascade")
	}
	return &Runner{log: log.With("component", "CascadeWorker"), cfg: cfg, tc: tc, cascade: cascade}, nil
}

// Start registers the cascade workflow and step activity and starts polling,
// retrying until WorkerStartWait. A missing namespace is registered on the
// way when AutoRegisterNamespace is set. The worker stops when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	cfg := r.cfg
	r.log.Info("Starting cascade worker", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "concurrency", cfg.WorkerConcurrency)

	return temporalx.Retry(ctx, cfg, cfg.WorkerStartWait, func(attempt int) (bool, error) {
		w := r.newWorker()
		err := w.Start()
		if err == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Cascade worker started", "task_queue", cfg.TaskQueue, "attempts", attempt)
			return false, nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			if !cfg.AutoRegisterNamespace {
				return false, fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, err)
			}
			if ensureErr := temporalx.EnsureNamespace(ctx, cfg, r.log); ensureErr != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", cfg.Namespace, "error", ensureErr)
			}
		}
		r.log.Warn("Cascade worker failed to start; retrying", "task_queue", cfg.TaskQueue, "attempt", attempt, "error", err)
		return true, err
	})
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	acts := &cascaderun.Activities{Log: r.log, Cascade: r.cascade}
	w.RegisterWorkflowWithOptions(cascaderun.Workflow, workflow.RegisterOptions{Name: cascaderun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Step, activity.RegisterOptions{Name: cascaderun.ActivityStep})
	return w
}
