package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/cms-backend/internal/domain"
	"github.com/yungbote/cms-backend/internal/http/response"
	"github.com/yungbote/cms-backend/internal/normalization"
	"github.com/yungbote/cms-backend/internal/services"
)

type ReservedPathHandler struct {
	reserved services.ReservedPathService
}

func NewReservedPathHandler(reserved services.ReservedPathService) *ReservedPathHandler {
	return &ReservedPathHandler{reserved: reserved}
}

type reservedEntryRequest struct {
	Path   string `json:"path" validate:"required,max=512"`
	Kind   string `json:"kind" validate:"required,oneof=path prefix"`
	Source string `json:"source" validate:"omitempty,max=128"`
}

type syncSourceRequest struct {
	Entries []services.ReservedEntry `json:"entries" validate:"dive"`
}

// GET /api/admin/reserved
func (h *ReservedPathHandler) All(c *gin.Context) {
	set, err := h.reserved.All(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	rows, err := h.reserved.List(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reserved": set, "stored": rows})
}

// GET /api/admin/reserved/check?path=/admin/users
func (h *ReservedPathHandler) Check(c *gin.Context) {
	raw := c.Query("path")
	if strings.TrimSpace(raw) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_path", nil)
		return
	}
	ctx := c.Request.Context()
	path, err := h.reserved.IsReservedPath(ctx, raw)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	prefix, err := h.reserved.IsReservedPrefix(ctx, raw)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	slug, err := h.reserved.IsReservedSlug(ctx, normalization.FirstSegment(raw))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"path":            normalization.Path(raw),
		"reserved_path":   path,
		"reserved_prefix": prefix,
		"reserved_slug":   slug,
	})
}

// GET /api/admin/reserved/slug-pattern
func (h *ReservedPathHandler) SlugPattern(c *gin.Context) {
	pattern, err := h.reserved.SlugPattern(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"pattern": pattern})
}

// POST /api/admin/reserved
func (h *ReservedPathHandler) Register(c *gin.Context) {
	var req reservedEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	source := req.Source
	if source == "" {
		source = types.ReservedSourceAdmin
	}
	if err := h.reserved.Register(c.Request.Context(), req.Path, req.Kind, source); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"path": normalization.Path(req.Path), "kind": req.Kind, "source": source})
}

// DELETE /api/admin/reserved?path=admin&kind=path
func (h *ReservedPathHandler) Unregister(c *gin.Context) {
	kind := c.DefaultQuery("kind", types.ReservedKindPath)
	removed, err := h.reserved.Unregister(c.Request.Context(), c.Query("path"), kind)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if !removed {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /api/admin/reserved/sources/:source
func (h *ReservedPathHandler) SyncSource(c *gin.Context) {
	var req syncSourceRequest
	if !bindJSON(c, &req) {
		return
	}
	source := c.Param("source")
	if err := h.reserved.SyncSource(c.Request.Context(), source, req.Entries); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"source": source, "entries": len(req.Entries)})
}
