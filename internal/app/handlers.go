package app

import (
	"gorm.io/gorm"

	"github.com/meridianrefining/refinery-backend/internal/http/handlers"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Template *handlers.TemplateHandler
	Flow     *handlers.FlowHandler
	Batch    *handlers.BatchHandler
	Report   *handlers.ReportHandler
	Health   *handlers.HealthHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:     handlers.NewAuthHandler(services.Auth),
		User:     handlers.NewUserHandler(services.User),
		Template: handlers.NewTemplateHandler(services.Template),
		Flow:     handlers.NewFlowHandler(services.Flow),
		Batch:    handlers.NewBatchHandler(services.Batch),
		Report:   handlers.NewReportHandler(services.Report),
		Health:   handlers.NewHealthHandler(db),
	}
}
