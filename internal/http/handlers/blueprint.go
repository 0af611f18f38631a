package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/http/response"
	"github.com/yungbote/cms-backend/internal/services"
)

type BlueprintHandler struct {
	blueprints services.BlueprintService
}

func NewBlueprintHandler(blueprints services.BlueprintService) *BlueprintHandler {
	return &BlueprintHandler{blueprints: blueprints}
}

type createBlueprintRequest struct {
	Code        string `json:"code" validate:"required,slug,max=64"`
	Name        string `json:"name" validate:"max=255"`
	Description string `json:"description" validate:"max=2000"`
}

type addPathRequest struct {
	ParentID  *string        `json:"parent_id" validate:"omitempty,uuid"`
	Name      string         `json:"name" validate:"required,fieldname,max=128"`
	DataType  string         `json:"data_type" validate:"required,max=64"`
	SortOrder int            `json:"sort_order"`
	Config    datatypes.JSON `json:"config"`
}

type updatePathRequest struct {
	Name      *string        `json:"name" validate:"omitempty,fieldname,max=128"`
	DataType  *string        `json:"data_type" validate:"omitempty,max=64"`
	SortOrder *int           `json:"sort_order"`
	Config    datatypes.JSON `json:"config"`
}

type embedRequest struct {
	EmbeddedBlueprintID string  `json:"embedded_blueprint_id" validate:"required,uuid"`
	HostPathID          *string `json:"host_path_id" validate:"omitempty,uuid"`
}

// GET /api/admin/blueprints
func (h *BlueprintHandler) List(c *gin.Context) {
	rows, err := h.blueprints.List(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"blueprints": rows})
}

// POST /api/admin/blueprints
func (h *BlueprintHandler) Create(c *gin.Context) {
	var req createBlueprintRequest
	if !bindJSON(c, &req) {
		return
	}
	bp, err := h.blueprints.Create(c.Request.Context(), req.Code, req.Name, req.Description)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"blueprint": bp})
}

// GET /api/admin/blueprints/:id
func (h *BlueprintHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	bp, err := h.blueprints.Get(ctx, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if bp == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	paths, err := h.blueprints.ListPaths(ctx, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	embeds, err := h.blueprints.ListEmbeds(ctx, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"blueprint": bp, "paths": paths, "embeds": embeds})
}

// POST /api/admin/blueprints/:id/paths
func (h *BlueprintHandler) AddPath(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req addPathRequest
	if !bindJSON(c, &req) {
		return
	}
	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parent_id", err)
		return
	}
	change, err := h.blueprints.AddPath(c.Request.Context(), domainagg.AddPathInput{
		BlueprintID: id,
		ParentID:    parentID,
		Name:        req.Name,
		DataType:    req.DataType,
		SortOrder:   req.SortOrder,
		Config:      req.Config,
	})
	h.respondChange(c, http.StatusCreated, change, err)
}

// PATCH /api/admin/blueprint-paths/:id
func (h *BlueprintHandler) UpdatePath(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req updatePathRequest
	if !bindJSON(c, &req) {
		return
	}
	change, err := h.blueprints.UpdatePath(c.Request.Context(), domainagg.UpdatePathInput{
		PathID:    id,
		Name:      req.Name,
		DataType:  req.DataType,
		SortOrder: req.SortOrder,
		Config:    req.Config,
	})
	h.respondChange(c, http.StatusOK, change, err)
}

// DELETE /api/admin/blueprint-paths/:id
func (h *BlueprintHandler) RemovePath(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	change, err := h.blueprints.RemovePath(c.Request.Context(), id)
	h.respondChange(c, http.StatusOK, change, err)
}

// POST /api/admin/blueprints/:id/embeds
func (h *BlueprintHandler) Embed(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req embedRequest
	if !bindJSON(c, &req) {
		return
	}
	embedded, err := parseOptionalUUID(&req.EmbeddedBlueprintID)
	if err != nil || embedded == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_embedded_blueprint_id", err)
		return
	}
	hostPath, err := parseOptionalUUID(req.HostPathID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_host_path_id", err)
		return
	}
	change, err := h.blueprints.Embed(c.Request.Context(), domainagg.EmbedInput{
		BlueprintID:         id,
		EmbeddedBlueprintID: *embedded,
		HostPathID:          hostPath,
	})
	h.respondChange(c, http.StatusCreated, change, err)
}

// POST /api/admin/blueprint-embeds/:id/materialize
func (h *BlueprintHandler) Materialize(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	change, err := h.blueprints.Materialize(c.Request.Context(), id)
	h.respondChange(c, http.StatusOK, change, err)
}

// DELETE /api/admin/blueprint-embeds/:id
func (h *BlueprintHandler) RemoveEmbed(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	change, err := h.blueprints.RemoveEmbed(c.Request.Context(), id)
	h.respondChange(c, http.StatusOK, change, err)
}

// POST /api/admin/blueprints/:id/cascade
func (h *BlueprintHandler) Cascade(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	out, err := h.blueprints.RaiseStructureChanged(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	status := http.StatusOK
	if out.Deferred {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"cascade": out})
}

// respondChange writes a structural change. A write that committed but whose
// cascade failed still reports the change next to the error.
func (h *BlueprintHandler) respondChange(c *gin.Context, status int, change services.BlueprintChange, err error) {
	if err != nil {
		if change.BlueprintID == uuid.Nil {
			response.RespondErr(c, err)
			return
		}
		code := domainagg.CodeOf(err)
		if code == "" {
			code = domainagg.CodeInternal
		}
		status := response.StatusFor(code)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "cascade failed"
		}
		c.AbortWithStatusJSON(status, gin.H{
			"change": change,
			"error":  response.APIError{Message: msg, Code: string(code)},
		})
		return
	}
	c.JSON(status, gin.H{"change": change})
}
