package app

import (
	"github.com/coco-family/coco-backend/internal/http/middleware"
	"github.com/coco-family/coco-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, cfg.IngestServiceToken, cfg.AdminToken, cfg.DashboardTokenMap),
	}
}
