package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridianrefining/refinery-backend/internal/http/response"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/services"
)

type FlowHandler struct {
	flowService services.FlowService
}

func NewFlowHandler(flowService services.FlowService) *FlowHandler {
	return &FlowHandler{flowService: flowService}
}

func parseIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", c.Param("id"))
	}
	return id, nil
}

// POST /api/flows
func (fh *FlowHandler) Create(c *gin.Context) {
	var req services.CreateFlowInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	flow, err := fh.flowService.Create(dbctx.Context{Ctx: c.Request.Context()}, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"flow": flow})
}

// GET /api/flows?pipeline=gold
func (fh *FlowHandler) List(c *gin.Context) {
	flows, err := fh.flowService.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("pipeline"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flows": flows})
}

// GET /api/flows/:id
func (fh *FlowHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	flow, err := fh.flowService.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": flow})
}

// GET /api/flows/active?pipeline=gold
func (fh *FlowHandler) GetActive(c *gin.Context) {
	pipeline := c.Query("pipeline")
	if pipeline == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("missing pipeline"))
		return
	}
	flow, err := fh.flowService.GetActive(dbctx.Context{Ctx: c.Request.Context()}, pipeline)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": flow})
}

// PUT /api/flows/:id/structure
func (fh *FlowHandler) UpdateStructure(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req struct {
		Nodes []services.FlowNodeInput `json:"nodes" binding:"required"`
		Edges []services.FlowEdgeInput `json:"edges"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	flow, err := fh.flowService.UpdateStructure(dbctx.Context{Ctx: c.Request.Context()}, id, req.Nodes, req.Edges)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": flow})
}

// POST /api/flows/:id/activate
func (fh *FlowHandler) Activate(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	flow, err := fh.flowService.Activate(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": flow})
}

// POST /api/flows/:id/archive
func (fh *FlowHandler) Archive(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := fh.flowService.Archive(dbctx.Context{Ctx: c.Request.Context()}, id); err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
