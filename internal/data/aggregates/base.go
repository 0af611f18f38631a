package aggregates

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

const (
	defaultWriteAttempts = 3
	defaultRetryBackoff  = 20 * time.Millisecond
)

// TxRunner is the transaction boundary every aggregate write runs inside.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

// Hooks receives one ObserveOperation per write, plus a conflict or retry
// signal for each attempt that ended that way.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
	IncRetry(name string)
}

type BaseDeps struct {
	DB     *gorm.DB
	Log    *logger.Logger
	Runner TxRunner
	Hooks  Hooks
	Locks  LockGuard

	// Attempts bounds how often a write is re-run after a retryable failure
	// (serialization failure, deadlock, busy SQLite file). Zero means 3.
	Attempts int
	// RetryBackoff is multiplied by the attempt number between attempts.
	RetryBackoff time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Locks.db == nil {
		d.Locks = NewLockGuard(d.DB)
	}
	if d.Attempts <= 0 {
		d.Attempts = defaultWriteAttempts
	}
	if d.RetryBackoff <= 0 {
		d.RetryBackoff = defaultRetryBackoff
	}
	return d
}

// executeWrite runs fn in its own transaction, re-running the whole
// transaction while the mapped error stays retryable.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	ctx, span := observability.StartSpan(ctx, "aggregates", op)

	var (
		mapped   error
		attempts int
	)
	for attempts = 1; ; attempts++ {
		mapped = MapError(op, deps.Runner.InTx(ctx, fn))
		if mapped == nil {
			break
		}
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		if !domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			break
		}
		deps.Hooks.IncRetry(op)
		if attempts >= deps.Attempts || !sleepCtx(ctx, time.Duration(attempts)*deps.RetryBackoff) {
			break
		}
		if deps.Log != nil {
			deps.Log.Debug("retrying aggregate write", "op", op, "attempt", attempts+1, "error", mapped)
		}
	}

	status := aggregateErrorStatus(mapped)
	span.SetAttributes(observability.AttrWriteStatus.String(status), observability.AttrWriteAttempts.Int(attempts))
	observability.EndSpan(span, mapped)
	if deps.Log != nil && domainagg.IsCode(mapped, domainagg.CodeInternal) {
		deps.Log.Error("aggregate write failed", "op", op, "attempts", attempts, "error", mapped)
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

type metricsHooks struct {
	metrics *observability.Metrics
}

// NewMetricsHooks reports aggregate outcomes to Prometheus. A nil metrics
// value yields no-op hooks.
func NewMetricsHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &metricsHooks{metrics: metrics}
}

func (h *metricsHooks) ObserveOperation(name, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(name, status, dur)
}

func (h *metricsHooks) IncConflict(name string) { h.metrics.IncAggregateConflict(name) }

func (h *metricsHooks) IncRetry(name string) { h.metrics.IncAggregateRetry(name) }
