package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/enersystems/es-inventory-hub/internal/http/handlers"
	httpMW "github.com/enersystems/es-inventory-hub/internal/http/middleware"
	"github.com/enersystems/es-inventory-hub/internal/observability"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler    *httpH.HealthHandler
	ExceptionHandler *httpH.ExceptionHandler
	SnapshotHandler  *httpH.SnapshotHandler
	RunHandler       *httpH.RunHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("es-inventory-hub"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readiness", cfg.HealthHandler.Readiness)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	if cfg.ExceptionHandler != nil {
		api.GET("/exceptions", cfg.ExceptionHandler.List)
		api.GET("/exceptions/summary", cfg.ExceptionHandler.StatusSummary)
		api.GET("/exceptions/manual-updates", cfg.ExceptionHandler.RecentManualUpdates)
		api.GET("/exceptions/:id", cfg.ExceptionHandler.Get)
		api.POST("/exceptions/:id/resolve", cfg.ExceptionHandler.Resolve)
		api.POST("/exceptions/:id/mark-fixed", cfg.ExceptionHandler.MarkFixedByID)
		api.POST("/exceptions/mark-fixed", cfg.ExceptionHandler.MarkFixedByHostname)
		api.POST("/exceptions/bulk", cfg.ExceptionHandler.BulkUpdate)
	}

	if cfg.SnapshotHandler != nil {
		api.POST("/snapshots", cfg.SnapshotHandler.Ingest)
		api.GET("/snapshots/counts", cfg.SnapshotHandler.Counts)
	}

	if cfg.RunHandler != nil {
		api.POST("/runs", cfg.RunHandler.Trigger)
	}

	return r
}
