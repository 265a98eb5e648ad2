package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/http/response"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/services"
)

type TemplateHandler struct {
	templateService services.TemplateService
}

func NewTemplateHandler(templateService services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// POST /api/templates
func (th *TemplateHandler) Create(c *gin.Context) {
	var req services.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tpl, err := th.templateService.Create(dbctx.Context{Ctx: c.Request.Context()}, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"template": tpl})
}

// GET /api/templates?kind=station
func (th *TemplateHandler) List(c *gin.Context) {
	kind := types.TemplateKind(c.Query("kind"))
	templates, err := th.templateService.List(dbctx.Context{Ctx: c.Request.Context()}, kind)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"templates": templates})
}

// GET /api/templates/:id
func (th *TemplateHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tpl, err := th.templateService.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"template": tpl})
}

// PUT /api/templates/:id
func (th *TemplateHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req services.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	tpl, err := th.templateService.Update(dbctx.Context{Ctx: c.Request.Context()}, id, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"template": tpl})
}

// DELETE /api/templates/:id
func (th *TemplateHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := th.templateService.Delete(dbctx.Context{Ctx: c.Request.Context()}, id); err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
