package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/cms-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/services"
)

const cascadeStepsMetric = "cms_blueprint_cascade_steps_total"

func (h *harness) blueprint(t *testing.T, code string) *types.Blueprint {
	t.Helper()
	bp, err := h.blueprints.Create(bg(), code, "", "")
	require.NoError(t, err)
	return bp
}

func (h *harness) path(t *testing.T, bp *types.Blueprint, parent *types.BlueprintPath, name, dataType string) *types.BlueprintPath {
	t.Helper()
	in := domainagg.AddPathInput{BlueprintID: bp.ID, Name: name, DataType: dataType}
	if parent != nil {
		in.ParentID = testutil.PtrUUID(parent.ID)
	}
	change, err := h.blueprints.AddPath(bg(), in)
	require.NoError(t, err)
	return change.Path
}

func (h *harness) embed(t *testing.T, host *types.Blueprint, embedded *types.Blueprint, at *types.BlueprintPath) *types.BlueprintEmbed {
	t.Helper()
	in := domainagg.EmbedInput{BlueprintID: host.ID, EmbeddedBlueprintID: embedded.ID}
	if at != nil {
		in.HostPathID = testutil.PtrUUID(at.ID)
	}
	change, err := h.blueprints.Embed(bg(), in)
	require.NoError(t, err)
	return change.Embed
}

func (h *harness) pathsByFullPath(t *testing.T, blueprintID uuid.UUID) map[string]*types.BlueprintPath {
	t.Helper()
	rows, err := h.repos.BlueprintPath.ListByBlueprint(dbctx.Context{Ctx: bg()}, blueprintID)
	require.NoError(t, err)
	out := make(map[string]*types.BlueprintPath, len(rows))
	for _, r := range rows {
		out[r.FullPath] = r
	}
	return out
}

func TestCascadePropagatesThroughEmbedChain(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()

	c := h.blueprint(t, "seo")
	h.path(t, c, nil, "title", "text")

	b := h.blueprint(t, "article")
	meta := h.path(t, b, nil, "meta", "group")
	embedBC := h.embed(t, b, c, meta)

	a := h.blueprint(t, "landing")
	extra := h.path(t, a, nil, "extra", "group")
	embedAB := h.embed(t, a, b, extra)

	require.Contains(t, h.pathsByFullPath(t, a.ID), "extra.meta.title")

	change, err := h.blueprints.AddPath(ctx, domainagg.AddPathInput{BlueprintID: c.ID, Name: "description", DataType: "textarea"})
	require.NoError(t, err)
	assert.Equal(t, "sync", change.Cascade.Dispatcher)
	assert.False(t, change.Cascade.Deferred)
	assert.ElementsMatch(t, []uuid.UUID{b.ID, a.ID}, change.Cascade.Affected)

	inB := h.pathsByFullPath(t, b.ID)
	require.Contains(t, inB, "meta.description")
	require.NotNil(t, inB["meta.description"].BlueprintEmbedID)
	assert.Equal(t, embedBC.ID, *inB["meta.description"].BlueprintEmbedID)
	assert.Equal(t, meta.ID, *inB["meta.description"].ParentID)

	inA := h.pathsByFullPath(t, a.ID)
	require.Contains(t, inA, "extra.meta.description")
	require.NotNil(t, inA["extra.meta.description"].BlueprintEmbedID)
	assert.Equal(t, embedAB.ID, *inA["extra.meta.description"].BlueprintEmbedID)
	assert.Equal(t, inA["extra.meta"].ID, *inA["extra.meta.description"].ParentID)

	assert.Equal(t, 2.0, h.counter(t, cascadeStepsMetric, "outcome", "rematerialized"))
}

func TestCascadeGuardSkipsProcessedBlueprint(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()

	c := h.blueprint(t, "cta")
	h.path(t, c, nil, "label", "text")
	b := h.blueprint(t, "hero")
	h.embed(t, b, c, nil)

	before := h.pathsByFullPath(t, b.ID)
	require.Contains(t, before, "label")

	step, err := h.cascade.Step(ctx, services.StructureChanged{BlueprintID: c.ID, Processed: []uuid.UUID{c.ID}})
	require.NoError(t, err)
	assert.True(t, step.Guarded)
	assert.Empty(t, step.Rematerialized)
	assert.Empty(t, step.Next)

	affected, err := h.cascade.OnStructureChanged(ctx, services.StructureChanged{BlueprintID: c.ID, Processed: []uuid.UUID{c.ID}})
	require.NoError(t, err)
	assert.Empty(t, affected)

	after := h.pathsByFullPath(t, b.ID)
	assert.Equal(t, before["label"].ID, after["label"].ID, "guarded event must not rematerialize")
	assert.Equal(t, 2.0, h.counter(t, cascadeStepsMetric, "outcome", "guarded"))
}

func TestCascadeStepEmitsOneEventPerEmbed(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()

	c := h.blueprint(t, "address")
	h.path(t, c, nil, "street", "text")
	b := h.blueprint(t, "order")
	billing := h.path(t, b, nil, "billing", "group")
	shipping := h.path(t, b, nil, "shipping", "group")
	h.embed(t, b, c, billing)
	h.embed(t, b, c, shipping)

	prior := uuid.New()
	step, err := h.cascade.Step(ctx, services.StructureChanged{BlueprintID: c.ID, Processed: []uuid.UUID{prior}})
	require.NoError(t, err)
	assert.False(t, step.Guarded)
	assert.Len(t, step.Rematerialized, 2)
	assert.Equal(t, []uuid.UUID{b.ID}, step.Affected)
	require.Len(t, step.Next, 2)
	for _, next := range step.Next {
		assert.Equal(t, b.ID, next.BlueprintID)
		assert.Equal(t, []uuid.UUID{prior, c.ID}, next.Processed)
	}
}

func TestMutualEmbedCascadeTerminates(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()

	a := h.blueprint(t, "author")
	h.path(t, a, nil, "name", "text")
	aHost := h.path(t, a, nil, "posts", "group")

	b := h.blueprint(t, "post")
	h.path(t, b, nil, "title", "text")
	bHost := h.path(t, b, nil, "author", "group")

	h.embed(t, a, b, aHost)
	change, err := h.blueprints.Embed(ctx, domainagg.EmbedInput{
		BlueprintID:         b.ID,
		EmbeddedBlueprintID: a.ID,
		HostPathID:          testutil.PtrUUID(bHost.ID),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, change.Cascade.Affected)
	assert.GreaterOrEqual(t, h.counter(t, cascadeStepsMetric, "outcome", "guarded"), 1.0)

	inA := h.pathsByFullPath(t, a.ID)
	assert.Contains(t, inA, "posts.title")
	assert.Contains(t, inA, "posts.author.name")
	inB := h.pathsByFullPath(t, b.ID)
	assert.Contains(t, inB, "author.posts.title")
}

func TestRematerializeDependentsHonoursVisited(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	ctx := bg()

	c := h.blueprint(t, "image")
	h.path(t, c, nil, "src", "media")
	b := h.blueprint(t, "gallery")
	h.embed(t, b, c, nil)
	a := h.blueprint(t, "page")
	h.embed(t, a, b, nil)

	affected, err := h.cascade.RematerializeDependents(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{b.ID, a.ID}, affected)

	affected, err = h.cascade.RematerializeDependents(ctx, c.ID, []uuid.UUID{b.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, affected, "b is rematerialized but not followed")
}

func TestStepRejectsMissingBlueprint(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	_, err := h.cascade.Step(bg(), services.StructureChanged{})
	assert.True(t, domainagg.IsCode(err, domainagg.CodeValidation))
}

type failingDispatcher struct{ err error }

func (d failingDispatcher) Name() string { return "failing" }
func (d failingDispatcher) Dispatch(context.Context, services.StructureChanged) (services.CascadeOutcome, error) {
	return services.CascadeOutcome{Dispatcher: "failing"}, d.err
}

func TestStructuralWriteReturnsCascadeFailureWithChange(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	boom := errors.New("dispatch down")
	svc := services.NewBlueprintService(h.log, h.repos.Blueprint, h.repos.BlueprintPath, h.repos.BlueprintEmbed, h.bpAgg, failingDispatcher{err: boom})

	bp, err := svc.Create(bg(), "Event", "Event", "")
	require.NoError(t, err)
	assert.Equal(t, "event", bp.Code)

	change, err := svc.AddPath(bg(), domainagg.AddPathInput{BlueprintID: bp.ID, Name: "starts_at", DataType: "datetime"})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, change.Path)
	assert.Equal(t, "starts_at", change.Path.FullPath)

	_, err = svc.Create(bg(), "event", "", "")
	assert.True(t, domainagg.IsCode(err, domainagg.CodeConflict))
}

func TestNilDispatcherSkipsCascade(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	svc := services.NewBlueprintService(h.log, h.repos.Blueprint, h.repos.BlueprintPath, h.repos.BlueprintEmbed, h.bpAgg, nil)
	out, err := svc.RaiseStructureChanged(bg(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, out.Affected)
}
