package app

import (
	"github.com/gin-gonic/gin"

	httpserver "github.com/meridianrefining/refinery-backend/internal/http"
	"github.com/meridianrefining/refinery-backend/internal/observability"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

func wireRouter(log *logger.Logger, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Log:     log,
		Metrics: metrics,

		AuthHandler:    handlers.Auth,
		AuthMiddleware: middleware.Auth,
		UserHandler:    handlers.User,

		FlowHandler:     handlers.Flow,
		TemplateHandler: handlers.Template,
		BatchHandler:    handlers.Batch,
		ReportHandler:   handlers.Report,

		HealthHandler: handlers.Health,
	})
}
