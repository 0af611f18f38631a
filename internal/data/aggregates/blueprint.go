package aggregates

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/cms-backend/internal/data/repos"
	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/platform/dbctx"
)

const (
	blueprintTable      = "blueprint"
	blueprintEmbedTable = "blueprint_embed"
)

type BlueprintAggregateDeps struct {
	Base BaseDeps

	Blueprints repos.BlueprintRepo
	Paths      repos.BlueprintPathRepo
	Embeds     repos.BlueprintEmbedRepo
}

type blueprintAggregate struct {
	deps BlueprintAggregateDeps
}

func NewBlueprintAggregate(deps BlueprintAggregateDeps) domainagg.BlueprintAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Locks = deps.Base.Locks.For(domainagg.BlueprintAggregateContract)
	return &blueprintAggregate{deps: deps}
}

func (a *blueprintAggregate) Contract() domainagg.Contract {
	return domainagg.BlueprintAggregateContract
}

func (a *blueprintAggregate) configured(op string) error {
	if a.deps.Blueprints == nil || a.deps.Paths == nil || a.deps.Embeds == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "blueprint repos not configured", nil)
	}
	return nil
}

func (a *blueprintAggregate) AddPath(ctx context.Context, in domainagg.AddPathInput) (*types.BlueprintPath, error) {
	const op = "Blueprints.Blueprint.AddPath"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	dataType := strings.TrimSpace(in.DataType)
	if err := validatePathName(op, name); err != nil {
		return nil, err
	}
	if dataType == "" {
		return nil, domainagg.ValidationError(op, "missing data_type")
	}

	var out *types.BlueprintPath
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Base.Locks.RequireLocked(dbc, op, blueprintTable, in.BlueprintID); err != nil {
			return err
		}
		fullPath := name
		if in.ParentID != nil {
			parent, err := a.pathOf(dbc, op, in.BlueprintID, *in.ParentID)
			if err != nil {
				return err
			}
			fullPath = parent.FullPath + "." + name
		}
		if err := a.requireFree(dbc, in.BlueprintID, []string{fullPath}); err != nil {
			return err
		}
		created, err := a.deps.Paths.Create(dbc, []*types.BlueprintPath{{
			BlueprintID: in.BlueprintID,
			ParentID:    in.ParentID,
			Name:        name,
			FullPath:    fullPath,
			DataType:    dataType,
			SortOrder:   in.SortOrder,
			Config:      in.Config,
		}})
		if err != nil {
			return err
		}
		out = created[0]
		return nil
	})
	return out, err
}

// UpdatePath edits an authored path. A rename rewrites the full path of every
// path nested below it, materialized ones included.
func (a *blueprintAggregate) UpdatePath(ctx context.Context, in domainagg.UpdatePathInput) (*types.BlueprintPath, error) {
	const op = "Blueprints.Blueprint.UpdatePath"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	var out *types.BlueprintPath
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		path, err := a.lockAuthoredPath(dbc, op, in.PathID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.DataType != nil {
			dt := strings.TrimSpace(*in.DataType)
			if dt == "" {
				return domainagg.ValidationError(op, "data_type cannot be empty")
			}
			updates["data_type"] = dt
		}
		if in.SortOrder != nil {
			updates["sort_order"] = *in.SortOrder
		}
		if in.Config != nil {
			updates["config"] = in.Config
		}
		if in.Name != nil && strings.TrimSpace(*in.Name) != path.Name {
			name := strings.TrimSpace(*in.Name)
			if err := validatePathName(op, name); err != nil {
				return err
			}
			if err := a.rename(dbc, path, name); err != nil {
				return err
			}
			updates["name"] = name
		}
		if err := a.deps.Paths.UpdateFields(dbc, path.ID, updates); err != nil {
			return err
		}
		out, err = a.deps.Paths.GetByID(dbc, path.ID)
		return err
	})
	return out, err
}

func (a *blueprintAggregate) rename(dbc dbctx.Context, path *types.BlueprintPath, name string) error {
	oldFull := path.FullPath
	newFull := name
	if i := strings.LastIndexByte(oldFull, '.'); i >= 0 {
		newFull = oldFull[:i+1] + name
	}
	nested, err := a.deps.Paths.ListUnder(dbc, path.BlueprintID, oldFull)
	if err != nil {
		return err
	}
	targets := []string{newFull}
	for _, p := range nested {
		targets = append(targets, newFull+strings.TrimPrefix(p.FullPath, oldFull))
	}
	if err := a.requireFree(dbc, path.BlueprintID, targets); err != nil {
		return err
	}
	if err := a.deps.Paths.UpdateFields(dbc, path.ID, map[string]interface{}{"full_path": newFull}); err != nil {
		return err
	}
	for i, p := range nested {
		if err := a.deps.Paths.UpdateFields(dbc, p.ID, map[string]interface{}{"full_path": targets[i+1]}); err != nil {
			return err
		}
	}
	return nil
}

// RemovePath deletes an authored path, everything nested below it and the
// embeds hosted there. It returns the owning blueprint id.
func (a *blueprintAggregate) RemovePath(ctx context.Context, pathID uuid.UUID) (uuid.UUID, error) {
	const op = "Blueprints.Blueprint.RemovePath"
	if err := a.configured(op); err != nil {
		return uuid.Nil, err
	}
	var blueprintID uuid.UUID
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		path, err := a.lockAuthoredPath(dbc, op, pathID)
		if err != nil {
			return err
		}
		blueprintID = path.BlueprintID
		nested, err := a.deps.Paths.ListUnder(dbc, path.BlueprintID, path.FullPath)
		if err != nil {
			return err
		}
		ids := []uuid.UUID{path.ID}
		for _, p := range nested {
			ids = append(ids, p.ID)
		}
		hosted, err := a.deps.Embeds.ListByHostPaths(dbc, ids)
		if err != nil {
			return err
		}
		for _, e := range hosted {
			if _, err := a.deps.Paths.DeleteByEmbed(dbc, e.ID); err != nil {
				return err
			}
			if err := a.deps.Embeds.Delete(dbc, e.ID); err != nil {
				return err
			}
		}
		return a.deps.Paths.DeleteByIDs(dbc, ids)
	})
	return blueprintID, err
}

func (a *blueprintAggregate) Embed(ctx context.Context, in domainagg.EmbedInput) (domainagg.MaterializeResult, error) {
	const op = "Blueprints.Blueprint.Embed"
	var out domainagg.MaterializeResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	if in.BlueprintID == uuid.Nil || in.EmbeddedBlueprintID == uuid.Nil {
		return out, domainagg.ValidationError(op, "blueprint_id and embedded_blueprint_id are required")
	}
	if in.BlueprintID == in.EmbeddedBlueprintID {
		return out, domainagg.PreconditionError(op, "blueprint cannot embed itself", domainagg.ErrSelfEmbed)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := a.deps.Base.Locks.RequireLocked(dbc, op, blueprintTable, in.BlueprintID); err != nil {
			return err
		}
		embedded, err := a.deps.Blueprints.GetByID(dbc, in.EmbeddedBlueprintID)
		if err != nil {
			return err
		}
		if embedded == nil {
			return notFound(op, "embedded blueprint", in.EmbeddedBlueprintID)
		}
		embed, err := a.deps.Embeds.Create(dbc, &types.BlueprintEmbed{
			BlueprintID:         in.BlueprintID,
			EmbeddedBlueprintID: in.EmbeddedBlueprintID,
			HostPathID:          in.HostPathID,
		})
		if err != nil {
			return err
		}
		out, err = a.materialize(dbc, op, embed)
		return err
	})
	return out, err
}

func (a *blueprintAggregate) Materialize(ctx context.Context, embedID uuid.UUID) (domainagg.MaterializeResult, error) {
	const op = "Blueprints.Blueprint.Materialize"
	var out domainagg.MaterializeResult
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		embed, err := a.lockEmbed(dbc, op, embedID)
		if err != nil {
			return err
		}
		out, err = a.materialize(dbc, op, embed)
		return err
	})
	return out, err
}

// materialize replaces the paths tagged with the embed by a fresh copy of the
// embedded blueprint's current paths, nested under the host path when set.
func (a *blueprintAggregate) materialize(dbc dbctx.Context, op string, embed *types.BlueprintEmbed) (domainagg.MaterializeResult, error) {
	out := domainagg.MaterializeResult{Embed: embed}

	prefix := ""
	var hostID *uuid.UUID
	if embed.HostPathID != nil {
		host, err := a.pathOf(dbc, op, embed.BlueprintID, *embed.HostPathID)
		if err != nil {
			return out, err
		}
		prefix = host.FullPath + "."
		id := host.ID
		hostID = &id
	}

	if _, err := a.deps.Paths.DeleteByEmbed(dbc, embed.ID); err != nil {
		return out, err
	}

	src, err := a.deps.Paths.ListByBlueprint(dbc, embed.EmbeddedBlueprintID)
	if err != nil {
		return out, err
	}
	sortByDepth(src)

	copied := make(map[uuid.UUID]uuid.UUID, len(src))
	rows := make([]*types.BlueprintPath, 0, len(src))
	targets := make([]string, 0, len(src))
	for _, p := range src {
		row := &types.BlueprintPath{
			ID:               uuid.New(),
			BlueprintID:      embed.BlueprintID,
			ParentID:         hostID,
			Name:             p.Name,
			FullPath:         prefix + p.FullPath,
			DataType:         p.DataType,
			SortOrder:        p.SortOrder,
			Config:           cloneJSON(p.Config),
			BlueprintEmbedID: &embed.ID,
			SourcePathID:     &p.ID,
		}
		if p.ParentID != nil {
			if mapped, ok := copied[*p.ParentID]; ok {
				row.ParentID = &mapped
			}
		}
		copied[p.ID] = row.ID
		rows = append(rows, row)
		targets = append(targets, row.FullPath)
	}
	if err := a.requireFree(dbc, embed.BlueprintID, targets); err != nil {
		return out, err
	}
	created, err := a.deps.Paths.Create(dbc, rows)
	if err != nil {
		return out, err
	}
	out.Paths = created
	return out, nil
}

func (a *blueprintAggregate) RemoveEmbed(ctx context.Context, embedID uuid.UUID) (*types.BlueprintEmbed, error) {
	const op = "Blueprints.Blueprint.RemoveEmbed"
	if err := a.configured(op); err != nil {
		return nil, err
	}
	var out *types.BlueprintEmbed
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		embed, err := a.lockEmbed(dbc, op, embedID)
		if err != nil {
			return err
		}
		if _, err := a.deps.Paths.DeleteByEmbed(dbc, embed.ID); err != nil {
			return err
		}
		if err := a.deps.Embeds.Delete(dbc, embed.ID); err != nil {
			return err
		}
		out = embed
		return nil
	})
	return out, err
}

func (a *blueprintAggregate) lockEmbed(dbc dbctx.Context, op string, embedID uuid.UUID) (*types.BlueprintEmbed, error) {
	if err := a.deps.Base.Locks.RequireLocked(dbc, op, blueprintEmbedTable, embedID); err != nil {
		return nil, err
	}
	embed, err := a.deps.Embeds.GetByID(dbc, embedID)
	if err != nil {
		return nil, err
	}
	if embed == nil {
		return nil, notFound(op, "blueprint embed", embedID)
	}
	if err := a.deps.Base.Locks.RequireLocked(dbc, op, blueprintTable, embed.BlueprintID); err != nil {
		return nil, err
	}
	return embed, nil
}

func (a *blueprintAggregate) lockAuthoredPath(dbc dbctx.Context, op string, pathID uuid.UUID) (*types.BlueprintPath, error) {
	path, err := a.deps.Paths.GetByID(dbc, pathID)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, notFound(op, "blueprint path", pathID)
	}
	if path.Materialized() {
		return nil, domainagg.PreconditionError(op, "path belongs to an embed; remove the embed instead", domainagg.ErrMaterializedPath)
	}
	if err := a.deps.Base.Locks.RequireLocked(dbc, op, blueprintTable, path.BlueprintID); err != nil {
		return nil, err
	}
	return path, nil
}

func (a *blueprintAggregate) pathOf(dbc dbctx.Context, op string, blueprintID, pathID uuid.UUID) (*types.BlueprintPath, error) {
	path, err := a.deps.Paths.GetByID(dbc, pathID)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, notFound(op, "blueprint path", pathID)
	}
	if path.BlueprintID != blueprintID {
		return nil, InvariantError("path belongs to a different blueprint")
	}
	return path, nil
}

func (a *blueprintAggregate) requireFree(dbc dbctx.Context, blueprintID uuid.UUID, fullPaths []string) error {
	taken, err := a.deps.Paths.ListByFullPaths(dbc, blueprintID, fullPaths)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return ConflictError(fmt.Sprintf("full path %q already exists", taken[0].FullPath))
	}
	return nil
}

func validatePathName(op, name string) error {
	if name == "" {
		return domainagg.ValidationError(op, "missing path name")
	}
	if strings.Contains(name, ".") {
		return domainagg.ValidationError(op, "path name cannot contain '.'")
	}
	return nil
}

// sortByDepth orders parents before children.
func sortByDepth(paths []*types.BlueprintPath) {
	sort.SliceStable(paths, func(i, j int) bool {
		di := strings.Count(paths[i].FullPath, ".")
		dj := strings.Count(paths[j].FullPath, ".")
		if di != dj {
			return di < dj
		}
		return paths[i].FullPath < paths[j].FullPath
	})
}

func cloneJSON(in datatypes.JSON) datatypes.JSON {
	if in == nil {
		return nil
	}
	out := make(datatypes.JSON, len(in))
	copy(out, in)
	return out
}
