package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/data/repos"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

// BlueprintChange pairs a structural write with the cascade it triggered.
type BlueprintChange struct {
	BlueprintID uuid.UUID              `json:"blueprint_id"`
	Path        *types.BlueprintPath   `json:"path,omitempty"`
	Embed       *types.BlueprintEmbed  `json:"embed,omitempty"`
	Paths       []*types.BlueprintPath `json:"paths,omitempty"`
	Cascade     CascadeOutcome         `json:"cascade"`
}

type BlueprintService interface {
	Create(ctx context.Context, code, name, description string) (*types.Blueprint, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Blueprint, error)
	GetByCode(ctx context.Context, code string) (*types.Blueprint, error)
	List(ctx context.Context) ([]*types.Blueprint, error)
	ListPaths(ctx context.Context, blueprintID uuid.UUID) ([]*types.BlueprintPath, error)
	ListEmbeds(ctx context.Context, blueprintID uuid.UUID) ([]*types.BlueprintEmbed, error)

	AddPath(ctx context.Context, in domainagg.AddPathInput) (BlueprintChange, error)
	UpdatePath(ctx context.Context, in domainagg.UpdatePathInput) (BlueprintChange, error)
	RemovePath(ctx context.Context, pathID uuid.UUID) (BlueprintChange, error)

	Embed(ctx context.Context, in domainagg.EmbedInput) (BlueprintChange, error)
	Materialize(ctx context.Context, embedID uuid.UUID) (BlueprintChange, error)
	RemoveEmbed(ctx context.Context, embedID uuid.UUID) (BlueprintChange, error)

	// RaiseStructureChanged starts a cascade from blueprintID with an empty
	// processed set.
	RaiseStructureChanged(ctx context.Context, blueprintID uuid.UUID) (CascadeOutcome, error)
}

type blueprintService struct {
	log        *logger.Logger
	blueprints repos.BlueprintRepo
	paths      repos.BlueprintPathRepo
	embeds     repos.BlueprintEmbedRepo
	agg        domainagg.BlueprintAggregate
	dispatcher CascadeDispatcher
}

func NewBlueprintService(
	baseLog *logger.Logger,
	blueprints repos.BlueprintRepo,
	paths repos.BlueprintPathRepo,
	embeds repos.BlueprintEmbedRepo,
	agg domainagg.BlueprintAggregate,
	dispatcher CascadeDispatcher,
) BlueprintService {
	return &blueprintService{
		log:        baseLog.With("service", "BlueprintService"),
		blueprints: blueprints,
		paths:      paths,
		embeds:     embeds,
		agg:        agg,
		dispatcher: dispatcher,
	}
}

func (s *blueprintService) Create(ctx context.Context, code, name, description string) (*types.Blueprint, error) {
	const op = "Blueprints.Blueprint.Create"
	code = strings.ToLower(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, domainagg.ValidationError(op, "missing code")
	}
	if name == "" {
		name = code
	}
	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.blueprints.GetByCode(dbc, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domainagg.NewError(domainagg.CodeConflict, op, "blueprint code already exists: "+code, nil)
	}
	return s.blueprints.Create(dbc, &types.Blueprint{Code: code, Name: name, Description: strings.TrimSpace(description)})
}

func (s *blueprintService) Get(ctx context.Context, id uuid.UUID) (*types.Blueprint, error) {
	return s.blueprints.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *blueprintService) GetByCode(ctx context.Context, code string) (*types.Blueprint, error) {
	return s.blueprints.GetByCode(dbctx.Context{Ctx: ctx}, strings.ToLower(strings.TrimSpace(code)))
}

func (s *blueprintService) List(ctx context.Context) ([]*types.Blueprint, error) {
	return s.blueprints.List(dbctx.Context{Ctx: ctx})
}

func (s *blueprintService) ListPaths(ctx context.Context, blueprintID uuid.UUID) ([]*types.BlueprintPath, error) {
	return s.paths.ListByBlueprint(dbctx.Context{Ctx: ctx}, blueprintID)
}

func (s *blueprintService) ListEmbeds(ctx context.Context, blueprintID uuid.UUID) ([]*types.BlueprintEmbed, error) {
	return s.embeds.ListByBlueprint(dbctx.Context{Ctx: ctx}, blueprintID)
}

func (s *blueprintService) AddPath(ctx context.Context, in domainagg.AddPathInput) (BlueprintChange, error) {
	path, err := s.agg.AddPath(ctx, in)
	if err != nil {
		return BlueprintChange{}, err
	}
	return s.raise(ctx, BlueprintChange{BlueprintID: path.BlueprintID, Path: path})
}

func (s *blueprintService) UpdatePath(ctx context.Context, in domainagg.UpdatePathInput) (BlueprintChange, error) {
	path, err := s.agg.UpdatePath(ctx, in)
	if err != nil {
		return BlueprintChange{}, err
	}
	return s.raise(ctx, BlueprintChange{BlueprintID: path.BlueprintID, Path: path})
}

func (s *blueprintService) RemovePath(ctx context.Context, pathID uuid.UUID) (BlueprintChange, error) {
	blueprintID, err := s.agg.RemovePath(ctx, pathID)
	if err != nil {
		return BlueprintChange{}, err
	}
	return s.raise(ctx, BlueprintChange{BlueprintID: blueprintID})
}

// Embed changes the host's path set, so the host's own dependents cascade.
func (s *blueprintService) Embed(ctx context.Context, in domainagg.EmbedInput) (BlueprintChange, error) {
	res, err := s.agg.Embed(ctx, in)
	if err != nil {
		return BlueprintChange{}, err
	}
	return s.raise(ctx, BlueprintChange{BlueprintID: res.Embed.BlueprintID, Embed: res.Embed, Paths: res.Paths})
}

func (s *blueprintService) Materialize(ctx context.Context, embedID uuid.UUID) (BlueprintChange, error) {
	res, err := s.agg.Materialize(ctx, embedID)
	if err != nil {
		return BlueprintChange{}, err
	}
	return s.raise(ctx, BlueprintChange{BlueprintID: res.Embed.BlueprintID, Embed: res.Embed, Paths: res.Paths})
}

func (s *blueprintService) RemoveEmbed(ctx context.Context, embedID uuid.UUID) (BlueprintChange, error) {
	embed, err := s.agg.RemoveEmbed(ctx, embedID)
	if err != nil {
		return BlueprintChange{}, err
	}
	return s.raise(ctx, BlueprintChange{BlueprintID: embed.BlueprintID, Embed: embed})
}

func (s *blueprintService) RaiseStructureChanged(ctx context.Context, blueprintID uuid.UUID) (CascadeOutcome, error) {
	if s.dispatcher == nil {
		return CascadeOutcome{Affected: []uuid.UUID{}}, nil
	}
	out, err := s.dispatcher.Dispatch(ctx, StructureChanged{BlueprintID: blueprintID})
	if err != nil {
		s.log.Error("blueprint cascade failed", "blueprint_id", blueprintID, "dispatcher", s.dispatcher.Name(), "error", err)
		return out, err
	}
	s.log.Debug("blueprint cascade dispatched", "blueprint_id", blueprintID, "dispatcher", out.Dispatcher, "affected", len(out.Affected), "deferred", out.Deferred)
	return out, nil
}

// raise runs after the structural write committed; a cascade failure is
// returned alongside the change it followed.
func (s *blueprintService) raise(ctx context.Context, change BlueprintChange) (BlueprintChange, error) {
	out, err := s.RaiseStructureChanged(ctx, change.BlueprintID)
	change.Cascade = out
	return change, err
}
