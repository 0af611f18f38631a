package cascaderun

import (
	"github.com/google/uuid"

	"github.com/yungbote/cms-backend/internal/services"
)

const (
	WorkflowName = "blueprint_cascade"
	ActivityStep = "blueprint_cascade_step"

	workflowIDPrefix = "blueprint-cascade-"
	defaultStepLimit = 500
)

// WorkflowInput is the cascade worklist. Pending is processed depth-first
// from the end; each entry carries its own processed set.
type WorkflowInput struct {
	Pending  []services.StructureChanged `json:"pending"`
	Affected []uuid.UUID                 `json:"affected,omitempty"`
	Steps    int                         `json:"steps,omitempty"`
	Guarded  int                         `json:"guarded,omitempty"`
	// StepLimit bounds the steps of one run before continue-as-new.
	StepLimit int `json:"step_limit,omitempty"`
}

type WorkflowResult struct {
	Affected []uuid.UUID `json:"affected"`
	Steps    int         `json:"steps"`
	Guarded  int         `json:"guarded"`
}
