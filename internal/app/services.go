package app

import (
	"gorm.io/gorm"

	"github.com/meridianrefining/refinery-backend/internal/clients/redis"
	"github.com/meridianrefining/refinery-backend/internal/observability"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
	"github.com/meridianrefining/refinery-backend/internal/services"
)

type Services struct {
	Auth     services.AuthService
	User     services.UserService
	Template services.TemplateService
	Flow     services.FlowService
	Batch    services.BatchService
	Report   services.ReportService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, cache redis.Cache, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	cal, err := services.LoadCalendar(cfg.HolidayCalendarPath, log)
	if err != nil {
		return Services{}, err
	}
	calc := services.NewAnalyticsCalculator(log, cal)

	return Services{
		Auth:     services.NewAuthService(db, log, r.User, r.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		User:     services.NewUserService(db, log, r.User),
		Template: services.NewTemplateService(db, log, r.Template),
		Flow:     services.NewFlowService(db, log, r.Flow, r.Template),
		Batch:    services.NewBatchService(db, log, r.Batch, r.Flow, r.Template, calc, metrics, cfg.FlagApprovalRequiresAll),
		Report:   services.NewReportService(db, log, r.Batch, r.Flow, r.User, cache, cfg.ReportCacheTTL),
	}, nil
}
