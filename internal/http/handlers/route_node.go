package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	types "github.com/yungbote/cms-backend/internal/domain"
	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/http/response"
	"github.com/yungbote/cms-backend/internal/routing"
	"github.com/yungbote/cms-backend/internal/services"
)

type RouteNodeHandler struct {
	routes services.RouteTreeService
	table  *routing.Table
}

func NewRouteNodeHandler(routes services.RouteTreeService, table *routing.Table) *RouteNodeHandler {
	return &RouteNodeHandler{routes: routes, table: table}
}

type createRouteNodeRequest struct {
	ParentID   *string  `json:"parent_id" validate:"omitempty,uuid"`
	Kind       string   `json:"kind" validate:"required,oneof=group route"`
	Name       string   `json:"name" validate:"max=255"`
	SortOrder  int      `json:"sort_order"`
	Enabled    *bool    `json:"enabled"`
	Prefix     string   `json:"prefix" validate:"max=255"`
	Domain     string   `json:"domain" validate:"omitempty,hostname"`
	Namespace  string   `json:"namespace" validate:"max=255"`
	Middleware []string `json:"middleware" validate:"dive,required"`
	URI        string   `json:"uri" validate:"max=512"`
	Methods    []string `json:"methods" validate:"dive,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS ANY"`
	Action     string   `json:"action" validate:"max=255"`
	ActionType string   `json:"action_type" validate:"omitempty,oneof=controller view redirect content"`
}

type updateRouteNodeRequest struct {
	Name       *string   `json:"name" validate:"omitempty,max=255"`
	SortOrder  *int      `json:"sort_order"`
	Enabled    *bool     `json:"enabled"`
	Prefix     *string   `json:"prefix" validate:"omitempty,max=255"`
	Domain     *string   `json:"domain" validate:"omitempty,hostname"`
	Namespace  *string   `json:"namespace" validate:"omitempty,max=255"`
	Middleware *[]string `json:"middleware"`
	URI        *string   `json:"uri" validate:"omitempty,max=512"`
	Methods    *[]string `json:"methods"`
	Action     *string   `json:"action" validate:"omitempty,max=255"`
	ActionType *string   `json:"action_type" validate:"omitempty,oneof=controller view redirect content"`
}

func (r updateRouteNodeRequest) updates() map[string]interface{} {
	out := map[string]interface{}{}
	set := func(k string, ok bool, v interface{}) {
		if ok {
			out[k] = v
		}
	}
	set("name", r.Name != nil, deref(r.Name))
	set("prefix", r.Prefix != nil, deref(r.Prefix))
	set("domain", r.Domain != nil, deref(r.Domain))
	set("namespace", r.Namespace != nil, deref(r.Namespace))
	set("uri", r.URI != nil, deref(r.URI))
	set("action", r.Action != nil, deref(r.Action))
	set("action_type", r.ActionType != nil, deref(r.ActionType))
	if r.SortOrder != nil {
		out["sort_order"] = *r.SortOrder
	}
	if r.Enabled != nil {
		out["enabled"] = *r.Enabled
	}
	if r.Middleware != nil {
		out["middleware"] = datatypes.JSONSlice[string](*r.Middleware)
	}
	if r.Methods != nil {
		out["methods"] = datatypes.JSONSlice[string](*r.Methods)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type moveRouteNodeRequest struct {
	ParentID  *string `json:"parent_id" validate:"omitempty,uuid"`
	SortOrder *int    `json:"sort_order"`
}

// GET /api/admin/routes/tree?enabled=true
func (h *RouteNodeHandler) Tree(c *gin.Context) {
	var (
		roots []*types.RouteTreeNode
		err   error
	)
	if enabled, _ := strconv.ParseBool(c.Query("enabled")); enabled {
		roots, err = h.routes.GetEnabledTree(c.Request.Context())
	} else {
		roots, err = h.routes.GetTree(c.Request.Context())
	}
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tree": roots})
}

// GET /api/admin/routes?include_deleted=true
func (h *RouteNodeHandler) List(c *gin.Context) {
	includeDeleted, _ := strconv.ParseBool(c.Query("include_deleted"))
	rows, err := h.routes.ListAll(c.Request.Context(), includeDeleted)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"nodes": rows})
}

// GET /api/admin/routes/:id
func (h *RouteNodeHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	node, err := h.routes.GetNodeWithAncestors(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if node == nil {
		response.RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	ancestors := make([]types.RouteNode, 0)
	for _, a := range node.Ancestors() {
		ancestors = append(ancestors, a.RouteNode)
	}
	response.RespondOK(c, gin.H{"node": node.RouteNode, "ancestors": ancestors})
}

// POST /api/admin/routes
func (h *RouteNodeHandler) Create(c *gin.Context) {
	var req createRouteNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parent_id", err)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	node, err := h.routes.Create(c.Request.Context(), &types.RouteNode{
		ParentID:   parentID,
		Kind:       req.Kind,
		Name:       req.Name,
		SortOrder:  req.SortOrder,
		Enabled:    enabled,
		Prefix:     req.Prefix,
		Domain:     req.Domain,
		Namespace:  req.Namespace,
		Middleware: req.Middleware,
		URI:        req.URI,
		Methods:    req.Methods,
		Action:     req.Action,
		ActionType: req.ActionType,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"node": node})
}

// PATCH /api/admin/routes/:id
func (h *RouteNodeHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req updateRouteNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	node, err := h.routes.Update(c.Request.Context(), id, req.updates())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"node": node})
}

// POST /api/admin/routes/:id/move
func (h *RouteNodeHandler) Move(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req moveRouteNodeRequest
	if !bindJSON(c, &req) {
		return
	}
	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parent_id", err)
		return
	}
	node, err := h.routes.Move(c.Request.Context(), domainagg.MoveRouteNodeInput{NodeID: id, ParentID: parentID, SortOrder: req.SortOrder})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"node": node})
}

// DELETE /api/admin/routes/:id?force=true
func (h *RouteNodeHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))
	var err error
	if force {
		err = h.routes.ForceDelete(c.Request.Context(), id)
	} else {
		err = h.routes.Delete(c.Request.Context(), id)
	}
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/admin/routes/:id/restore
func (h *RouteNodeHandler) Restore(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	node, err := h.routes.Restore(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"node": node})
}

// GET /api/admin/routes/table
func (h *RouteNodeHandler) TableReport(c *gin.Context) {
	if h.table == nil {
		response.RespondError(c, http.StatusNotFound, "route_table_disabled", nil)
		return
	}
	report, ok := h.table.LastReport()
	if !ok {
		response.RespondError(c, http.StatusServiceUnavailable, "route_table_not_compiled", nil)
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}

// POST /api/admin/routes/table/rebuild
func (h *RouteNodeHandler) RebuildTable(c *gin.Context) {
	if h.table == nil {
		response.RespondError(c, http.StatusNotFound, "route_table_disabled", nil)
		return
	}
	report, err := h.table.Rebuild(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}
