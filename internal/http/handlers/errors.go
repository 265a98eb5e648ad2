package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/meridianrefining/refinery-backend/internal/domain"
	"github.com/meridianrefining/refinery-backend/internal/http/response"
)

// respondDomainError maps domain errors onto HTTP statuses: missing rows to
// 404, rejected transitions and stale writes to 409, permission failures to
// 403, broken flow graphs to 422, everything else to 400.
func respondDomainError(c *gin.Context, err error) {
	var ite *types.InvalidTransitionError
	var ge *types.GraphError

	switch {
	case errors.Is(err, types.ErrNotFound):
		response.RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, types.ErrVersionConflict):
		response.RespondError(c, http.StatusConflict, "version_conflict", err)
	case errors.Is(err, types.ErrFlagAlreadyApproved):
		response.RespondError(c, http.StatusConflict, "flag_already_approved", err)
	case errors.Is(err, types.ErrForbidden):
		response.RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.As(err, &ite):
		response.RespondError(c, http.StatusConflict, "invalid_transition", err)
	case errors.As(err, &ge):
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_flow_graph", err)
	default:
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
	}
}
