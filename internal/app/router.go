package app

import (
	"github.com/gin-gonic/gin"

	internalhttp "github.com/coco-family/coco-backend/internal/http"
	"github.com/coco-family/coco-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlerset Handlers, middleware Middleware) *gin.Engine {
	return internalhttp.NewRouter(internalhttp.RouterConfig{
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
		AuthMiddleware: middleware.Auth,

		HealthHandler:    handlerset.Health,
		DashboardHandler: handlerset.Dashboard,
		HeartbeatHandler: handlerset.Heartbeat,
		IngestHandler:    handlerset.Ingest,
		CommandHandler:   handlerset.Command,
		AdminHandler:     handlerset.Admin,
		AudioHandler:     handlerset.Audio,
	})
}
