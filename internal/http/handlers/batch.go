package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meridianrefining/refinery-backend/internal/http/response"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/services"
)

type BatchHandler struct {
	batchService services.BatchService
}

func NewBatchHandler(batchService services.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

// POST /api/batches
func (bh *BatchHandler) Create(c *gin.Context) {
	var req services.CreateBatchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	batch, err := bh.batchService.Create(dbctx.Context{Ctx: c.Request.Context()}, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"batch": batch})
}

// GET /api/batches/:id
func (bh *BatchHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	detail, err := bh.batchService.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// POST /api/batches/:id/start
func (bh *BatchHandler) Start(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	batch, err := bh.batchService.Start(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"batch": batch})
}

// POST /api/batches/:id/complete-step
func (bh *BatchHandler) CompleteStep(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req services.StepData
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	batch, err := bh.batchService.CompleteStep(dbctx.Context{Ctx: c.Request.Context()}, id, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"batch": batch})
}

// POST /api/batches/:id/flag
func (bh *BatchHandler) Flag(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req services.FlagBatchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	batch, err := bh.batchService.Flag(dbctx.Context{Ctx: c.Request.Context()}, id, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"batch": batch})
}

// POST /api/batches/:id/approve-exception
func (bh *BatchHandler) ApproveException(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var req struct {
		FlagIndex *int   `json:"flag_index,omitempty"`
		Notes     string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	batch, err := bh.batchService.ApproveException(dbctx.Context{Ctx: c.Request.Context()}, id, req.FlagIndex, req.Notes)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"batch": batch})
}
