package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
	"github.com/yungbote/cms-backend/internal/http/response"
	"github.com/yungbote/cms-backend/internal/services"
)

type TaxonomyHandler struct {
	taxonomy services.TaxonomyService
}

func NewTaxonomyHandler(taxonomy services.TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy}
}

type createTaxonomyRequest struct {
	Code         string `json:"code" validate:"required,slug,max=64"`
	Name         string `json:"name" validate:"max=255"`
	Hierarchical *bool  `json:"hierarchical"`
}

type createTermRequest struct {
	Name      string  `json:"name" validate:"required,max=255"`
	Slug      string  `json:"slug" validate:"required,slug,max=255"`
	SortOrder int     `json:"sort_order"`
	ParentID  *string `json:"parent_id" validate:"omitempty,uuid"`
}

type setParentRequest struct {
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
	// Subtree moves the term together with its descendants.
	Subtree bool `json:"subtree"`
}

// GET /api/admin/taxonomies
func (h *TaxonomyHandler) List(c *gin.Context) {
	rows, err := h.taxonomy.ListTaxonomies(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"taxonomies": rows})
}

// POST /api/admin/taxonomies
func (h *TaxonomyHandler) Create(c *gin.Context) {
	var req createTaxonomyRequest
	if !bindJSON(c, &req) {
		return
	}
	hierarchical := true
	if req.Hierarchical != nil {
		hierarchical = *req.Hierarchical
	}
	tax, err := h.taxonomy.CreateTaxonomy(c.Request.Context(), req.Code, req.Name, hierarchical)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"taxonomy": tax})
}

// GET /api/admin/taxonomies/:code/terms
func (h *TaxonomyHandler) ListTerms(c *gin.Context) {
	tax, err := h.taxonomy.GetTaxonomy(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if tax == nil {
		response.RespondError(c, http.StatusNotFound, "taxonomy_not_found", nil)
		return
	}
	terms, err := h.taxonomy.ListTerms(c.Request.Context(), tax.ID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"taxonomy": tax, "terms": terms})
}

// POST /api/admin/taxonomies/:code/terms
func (h *TaxonomyHandler) CreateTerm(c *gin.Context) {
	var req createTermRequest
	if !bindJSON(c, &req) {
		return
	}
	tax, err := h.taxonomy.GetTaxonomy(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if tax == nil {
		response.RespondError(c, http.StatusNotFound, "taxonomy_not_found", nil)
		return
	}
	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parent_id", err)
		return
	}
	res, err := h.taxonomy.CreateTerm(c.Request.Context(), domainagg.CreateTermInput{
		TaxonomyID: tax.ID,
		Name:       req.Name,
		Slug:       req.Slug,
		SortOrder:  req.SortOrder,
		ParentID:   parentID,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"term": res.Term, "edges": res.Edges})
}

// PUT /api/admin/terms/:id/parent
func (h *TaxonomyHandler) SetParent(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req setParentRequest
	if !bindJSON(c, &req) {
		return
	}
	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parent_id", err)
		return
	}
	var res domainagg.TermHierarchyResult
	if req.Subtree {
		res, err = h.taxonomy.MoveSubtree(c.Request.Context(), id, parentID)
	} else {
		res, err = h.taxonomy.SetParent(c.Request.Context(), id, parentID)
	}
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"term": res.Term, "edges": res.Edges})
}

// DELETE /api/admin/terms/:id/tree
func (h *TaxonomyHandler) RemoveFromTree(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.taxonomy.RemoveFromTree(c.Request.Context(), id); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/admin/terms/:id
func (h *TaxonomyHandler) DeleteTerm(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	res, err := h.taxonomy.DeleteTerm(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"term_id": res.TermID, "reparented_children": res.ReparentedChildren})
}

// GET /api/admin/terms/:id/ancestors
func (h *TaxonomyHandler) Ancestors(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	rows, err := h.taxonomy.Ancestors(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ancestors": rows})
}

// GET /api/admin/terms/:id/descendants
func (h *TaxonomyHandler) Descendants(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	rows, err := h.taxonomy.Descendants(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"descendants": rows})
}

// GET /api/admin/terms/:id/children
func (h *TaxonomyHandler) Children(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	rows, err := h.taxonomy.Children(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	parent, err := h.taxonomy.Parent(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	depth, err := h.taxonomy.Depth(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"children": rows, "parent": parent, "depth": depth})
}
