// Package testutil holds fakes for exercising aggregate writes against a real
// transaction boundary.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/cms-backend/internal/data/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

// FaultyTx wraps an optional real runner and fails at a configured stage.
// CommitErr is returned from inside Inner's transaction, so the database
// rolls back together with the fake.
type FaultyTx struct {
	Inner aggregates.TxRunner

	BeginErr  error
	BodyErr   error
	CommitErr error

	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
}

var _ aggregates.TxRunner = (*FaultyTx)(nil)

func (f *FaultyTx) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	f.mu.Lock()
	f.begins++
	f.mu.Unlock()

	if f.BeginErr != nil {
		return f.BeginErr
	}
	if f.BodyErr != nil {
		f.finish(false)
		return f.BodyErr
	}

	run := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return f.CommitErr
	}
	var err error
	if f.Inner != nil {
		err = f.Inner.InTx(ctx, run)
	} else {
		err = run(dbctx.Context{Ctx: ctx})
	}
	f.finish(err == nil)
	return err
}

func (f *FaultyTx) finish(committed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if committed {
		f.commits++
	} else {
		f.rollbacks++
	}
}

// Counts reports begin, commit and rollback totals.
func (f *FaultyTx) Counts() (begins, commits, rollbacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begins, f.commits, f.rollbacks
}

type SignalKind string

const (
	SignalOperation SignalKind = "operation"
	SignalConflict  SignalKind = "conflict"
	SignalRetry     SignalKind = "retry"
)

type Signal struct {
	Kind     SignalKind
	Name     string
	Status   string
	Duration time.Duration
}

// Recorder is an aggregates.Hooks that keeps every signal in arrival order.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

var _ aggregates.Hooks = (*Recorder)(nil)

func (r *Recorder) add(s Signal) {
	r.mu.Lock()
	r.signals = append(r.signals, s)
	r.mu.Unlock()
}

func (r *Recorder) ObserveOperation(name, status string, dur time.Duration) {
	r.add(Signal{Kind: SignalOperation, Name: name, Status: status, Duration: dur})
}

func (r *Recorder) IncConflict(name string) { r.add(Signal{Kind: SignalConflict, Name: name}) }

func (r *Recorder) IncRetry(name string) { r.add(Signal{Kind: SignalRetry, Name: name}) }

func (r *Recorder) filter(keep func(Signal) bool) []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Signal
	for _, s := range r.signals {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) names(kind SignalKind) []string {
	var out []string
	for _, s := range r.filter(func(s Signal) bool { return s.Kind == kind }) {
		out = append(out, s.Name)
	}
	return out
}

// Conflicts lists operation names that reported a conflict.
func (r *Recorder) Conflicts() []string { return r.names(SignalConflict) }

// Retries lists operation names that were retried.
func (r *Recorder) Retries() []string { return r.names(SignalRetry) }

// Statuses lists the final statuses recorded for one operation.
func (r *Recorder) Statuses(name string) []string {
	var out []string
	for _, s := range r.filter(func(s Signal) bool { return s.Kind == SignalOperation && s.Name == name }) {
		out = append(out, s.Status)
	}
	return out
}
