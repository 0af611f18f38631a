package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/data/repos"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/observability"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

// StructureChanged reports that a blueprint's path set changed. Processed
// holds the blueprints already handled earlier in the same chain.
type StructureChanged struct {
	BlueprintID uuid.UUID   `json:"blueprint_id"`
	Processed   []uuid.UUID `json:"processed,omitempty"`
}

func (e StructureChanged) seen(id uuid.UUID) bool {
	for _, p := range e.Processed {
		if p == id {
			return true
		}
	}
	return false
}

// CascadeStep is the outcome of handling one StructureChanged: the embeds
// re-materialized and the follow-up events for their owners.
type CascadeStep struct {
	Guarded        bool               `json:"guarded"`
	Rematerialized []uuid.UUID        `json:"rematerialized,omitempty"`
	Affected       []uuid.UUID        `json:"affected,omitempty"`
	Next           []StructureChanged `json:"next,omitempty"`
}

// CascadeOutcome is what a dispatcher reports back to the raiser.
type CascadeOutcome struct {
	Dispatcher string      `json:"dispatcher"`
	Deferred   bool        `json:"deferred"`
	WorkflowID string      `json:"workflow_id,omitempty"`
	Affected   []uuid.UUID `json:"affected"`
}

// CascadeDispatcher delivers a StructureChanged to the cascade engine.
type CascadeDispatcher interface {
	Name() string
	Dispatch(ctx context.Context, ev StructureChanged) (CascadeOutcome, error)
}

type BlueprintCascade interface {
	Step(ctx context.Context, ev StructureChanged) (CascadeStep, error)
	OnStructureChanged(ctx context.Context, ev StructureChanged) ([]uuid.UUID, error)
	RematerializeDependents(ctx context.Context, blueprintID uuid.UUID, visited []uuid.UUID) ([]uuid.UUID, error)
}

type blueprintCascade struct {
	log     *logger.Logger
	embeds  repos.BlueprintEmbedRepo
	agg     domainagg.BlueprintAggregate
	metrics *observability.Metrics
}

func NewBlueprintCascade(baseLog *logger.Logger, embeds repos.BlueprintEmbedRepo, agg domainagg.BlueprintAggregate, metrics *observability.Metrics) BlueprintCascade {
	return &blueprintCascade{
		log:     baseLog.With("service", "BlueprintCascade"),
		embeds:  embeds,
		agg:     agg,
		metrics: metrics,
	}
}

// Step handles one event without following it: every embed of the changed
// blueprint is re-materialized (embeds are not de-duplicated) and one
// follow-up event per embed is returned with the changed id added to
// Processed. An event whose blueprint is already in Processed stops here.
func (c *blueprintCascade) Step(ctx context.Context, ev StructureChanged) (CascadeStep, error) {
	var out CascadeStep
	if ev.BlueprintID == uuid.Nil {
		return out, domainagg.ValidationError("Blueprints.Cascade.Step", "missing blueprint_id")
	}
	if ev.seen(ev.BlueprintID) {
		out.Guarded = true
		c.metrics.IncCascadeStep("guarded")
		c.log.Debug("cascade guard hit", "blueprint_id", ev.BlueprintID, "processed", len(ev.Processed))
		return out, nil
	}

	dependents, err := c.embeds.ListByEmbedded(dbctx.Context{Ctx: ctx}, ev.BlueprintID)
	if err != nil {
		return out, fmt.Errorf("list embeds of %s: %w", ev.BlueprintID, err)
	}
	processed := make([]uuid.UUID, 0, len(ev.Processed)+1)
	processed = append(processed, ev.Processed...)
	processed = append(processed, ev.BlueprintID)

	for _, e := range dependents {
		if _, err := c.agg.Materialize(ctx, e.ID); err != nil {
			c.metrics.IncCascadeStep("failed")
			return out, fmt.Errorf("rematerialize embed %s into %s: %w", e.ID, e.BlueprintID, err)
		}
		c.metrics.IncCascadeStep("rematerialized")
		out.Rematerialized = append(out.Rematerialized, e.ID)
		out.Affected = appendUnique(out.Affected, e.BlueprintID)
		out.Next = append(out.Next, StructureChanged{
			BlueprintID: e.BlueprintID,
			Processed:   append([]uuid.UUID(nil), processed...),
		})
	}
	return out, nil
}

func (c *blueprintCascade) OnStructureChanged(ctx context.Context, ev StructureChanged) ([]uuid.UUID, error) {
	return c.RematerializeDependents(ctx, ev.BlueprintID, ev.Processed)
}

// RematerializeDependents walks the embed graph depth-first from blueprintID
// and returns every blueprint whose materialized paths were rebuilt.
func (c *blueprintCascade) RematerializeDependents(ctx context.Context, blueprintID uuid.UUID, visited []uuid.UUID) (affected []uuid.UUID, err error) {
	ctx, span := observability.StartSpan(ctx, "services", "BlueprintCascade.rematerialize",
		observability.AttrBlueprintID.String(blueprintID.String()),
		observability.AttrCascadeVisited.Int(len(visited)),
	)
	defer func() {
		span.SetAttributes(observability.AttrCascadeAffected.Int(len(affected)))
		observability.EndSpan(span, err)
	}()

	step, err := c.Step(ctx, StructureChanged{BlueprintID: blueprintID, Processed: visited})
	if err != nil {
		return nil, err
	}
	affected = append([]uuid.UUID(nil), step.Affected...)
	for _, next := range step.Next {
		more, err := c.RematerializeDependents(ctx, next.BlueprintID, next.Processed)
		if err != nil {
			return affected, err
		}
		for _, id := range more {
			affected = appendUnique(affected, id)
		}
	}
	return affected, nil
}

type syncDispatcher struct {
	cascade BlueprintCascade
	metrics *observability.Metrics
}

// NewSyncDispatcher runs the whole cascade inline before Dispatch returns.
func NewSyncDispatcher(cascade BlueprintCascade, metrics *observability.Metrics) CascadeDispatcher {
	return &syncDispatcher{cascade: cascade, metrics: metrics}
}

func (d *syncDispatcher) Name() string { return "sync" }

func (d *syncDispatcher) Dispatch(ctx context.Context, ev StructureChanged) (CascadeOutcome, error) {
	start := time.Now()
	affected, err := d.cascade.OnStructureChanged(ctx, ev)
	d.metrics.ObserveCascade(d.Name(), len(affected), time.Since(start))
	if affected == nil {
		affected = []uuid.UUID{}
	}
	return CascadeOutcome{Dispatcher: d.Name(), Affected: affected}, err
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}
