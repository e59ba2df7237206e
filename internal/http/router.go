package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/coco-family/coco-backend/internal/http/handlers"
	httpMW "github.com/coco-family/coco-backend/internal/http/middleware"
	"github.com/coco-family/coco-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AllowedOrigins []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler    *httpH.HealthHandler
	DashboardHandler *httpH.DashboardHandler
	HeartbeatHandler *httpH.HeartbeatHandler
	IngestHandler    *httpH.IngestHandler
	CommandHandler   *httpH.CommandHandler
	AdminHandler     *httpH.AdminHandler
	AudioHandler     *httpH.AudioHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestID())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Healthz)
		r.GET("/readyz", cfg.HealthHandler.Readyz)
		r.HEAD("/readyz", cfg.HealthHandler.Readyz)
	}

	// Dashboard surface (per-user tokens)
	api := r.Group("/api")
	{
		if cfg.DashboardHandler != nil {
			api.GET("/dashboard/:userID", cfg.AuthMiddleware.AuthorizeDashboard("userID"), cfg.DashboardHandler.GetDashboard)
		}
		if cfg.HeartbeatHandler != nil {
			api.GET("/heartbeats", cfg.AuthMiddleware.AuthorizeDashboard(""), cfg.HeartbeatHandler.ListStatuses)
		}
	}

	// Device surface (shared service token)
	internal := r.Group("/internal")
	{
		internal.Use(cfg.AuthMiddleware.RequireServiceToken())

		if cfg.IngestHandler != nil {
			internal.POST("/ingest/session_summary", cfg.IngestHandler.IngestSessionSummary)
		}
		if cfg.HeartbeatHandler != nil {
			internal.POST("/heartbeat", cfg.HeartbeatHandler.Record)
		}
		if cfg.CommandHandler != nil {
			internal.GET("/commands/pending", cfg.CommandHandler.PollPending)
			internal.POST("/commands/:commandID/status", cfg.CommandHandler.ReportStatus)
			internal.POST("/ingest/logs", cfg.CommandHandler.IngestLogs)
		}
		if cfg.AudioHandler != nil {
			internal.POST("/ingest/audio", cfg.AudioHandler.UploadAudio)
			internal.POST("/ingest/session_audio", cfg.AudioHandler.UploadSessionAudio)
		}
	}

	// Admin surface
	admin := r.Group("/admin")
	{
		admin.Use(cfg.AuthMiddleware.RequireAdminToken())

		if cfg.CommandHandler != nil {
			admin.POST("/commands", cfg.CommandHandler.Create)
		}
		if cfg.AdminHandler != nil {
			admin.GET("/logs/:deviceID", cfg.AdminHandler.GetLatestLog)
			admin.GET("/devices/:deviceID/users", cfg.AdminHandler.ListDeviceUsers)
			admin.GET("/devices/uptime", cfg.AdminHandler.ListDeviceUptime)
		}
	}

	return r
}
