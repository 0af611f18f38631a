package aggregates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/cms-backend/internal/domain"
)

var BlueprintAggregateContract = Contract{
	Name:       "Blueprints.BlueprintAggregate",
	Tables:     []string{"blueprint", "blueprint_path", "blueprint_embed"},
	LockPolicy: LockPolicyRowForUpdate,
	Notes:      "Owns authored blueprint paths, blueprint_embed rows and the paths tagged with embed ids. Materialize is a full replace per embed.",
}

type EmbedInput struct {
	BlueprintID         uuid.UUID
	EmbeddedBlueprintID uuid.UUID
	HostPathID          *uuid.UUID
}

type MaterializeResult struct {
	Embed *types.BlueprintEmbed
	Paths []*types.BlueprintPath
}

type AddPathInput struct {
	BlueprintID uuid.UUID
	ParentID    *uuid.UUID
	Name        string
	DataType    string
	SortOrder   int
	Config      datatypes.JSON
}

type UpdatePathInput struct {
	PathID    uuid.UUID
	Name      *string
	DataType  *string
	SortOrder *int
	Config    datatypes.JSON
}

// BlueprintAggregate mutates blueprint structure. Authored path mutations
// return the changed blueprint so callers can raise a structure change; the
// cascade across dependents runs one Materialize call (one transaction) per embed.
type BlueprintAggregate interface {
	Aggregate
	AddPath(ctx context.Context, in AddPathInput) (*types.BlueprintPath, error)
	UpdatePath(ctx context.Context, in UpdatePathInput) (*types.BlueprintPath, error)
	RemovePath(ctx context.Context, pathID uuid.UUID) (uuid.UUID, error)
	Embed(ctx context.Context, in EmbedInput) (MaterializeResult, error)
	Materialize(ctx context.Context, embedID uuid.UUID) (MaterializeResult, error)
	RemoveEmbed(ctx context.Context, embedID uuid.UUID) (*types.BlueprintEmbed, error)
}
