package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/meridianrefining/refinery-backend/internal/http/handlers"
	httpMW "github.com/meridianrefining/refinery-backend/internal/http/middleware"
	"github.com/meridianrefining/refinery-backend/internal/observability"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware
	UserHandler    *httpH.UserHandler

	FlowHandler     *httpH.FlowHandler
	TemplateHandler *httpH.TemplateHandler
	BatchHandler    *httpH.BatchHandler
	ReportHandler   *httpH.ReportHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("refinery-backend"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health + scrape
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Auth (protected)
		if cfg.AuthHandler != nil {
			protected.POST("/refresh", cfg.AuthHandler.Refresh)
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		// User
		if cfg.UserHandler != nil {
			protected.GET("/user", cfg.UserHandler.GetMe)
		}

		// Templates
		if cfg.TemplateHandler != nil {
			protected.POST("/templates", cfg.TemplateHandler.Create)
			protected.GET("/templates", cfg.TemplateHandler.List)
			protected.GET("/templates/:id", cfg.TemplateHandler.Get)
			protected.PUT("/templates/:id", cfg.TemplateHandler.Update)
			protected.DELETE("/templates/:id", cfg.TemplateHandler.Delete)
		}

		// Flows
		if cfg.FlowHandler != nil {
			protected.POST("/flows", cfg.FlowHandler.Create)
			protected.GET("/flows", cfg.FlowHandler.List)
			protected.GET("/flows/active", cfg.FlowHandler.GetActive)
			protected.GET("/flows/:id", cfg.FlowHandler.Get)
			protected.PUT("/flows/:id/structure", cfg.FlowHandler.UpdateStructure)
			protected.POST("/flows/:id/activate", cfg.FlowHandler.Activate)
			protected.POST("/flows/:id/archive", cfg.FlowHandler.Archive)
		}

		// Batches
		if cfg.BatchHandler != nil {
			protected.POST("/batches", cfg.BatchHandler.Create)
			protected.GET("/batches/:id", cfg.BatchHandler.Get)
			protected.POST("/batches/:id/start", cfg.BatchHandler.Start)
			protected.POST("/batches/:id/complete-step", cfg.BatchHandler.CompleteStep)
			protected.POST("/batches/:id/flag", cfg.BatchHandler.Flag)
			protected.POST("/batches/:id/approve-exception", cfg.BatchHandler.ApproveException)
		}

		// Reports
		if cfg.ReportHandler != nil {
			protected.GET("/reports/ytd", cfg.ReportHandler.YTDStats)
			protected.GET("/reports/throughput", cfg.ReportHandler.StationThroughput)
			protected.GET("/reports/operators", cfg.ReportHandler.OperatorPerformance)
		}
	}

	return r
}
