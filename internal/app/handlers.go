package app

import (
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/http/handlers"
	"github.com/coco-family/coco-backend/internal/platform/logger"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Dashboard *handlers.DashboardHandler
	Heartbeat *handlers.HeartbeatHandler
	Ingest    *handlers.IngestHandler
	Command   *handlers.CommandHandler
	Admin     *handlers.AdminHandler
	Audio     *handlers.AudioHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    handlers.NewHealthHandler(db),
		Dashboard: handlers.NewDashboardHandler(serviceset.Rollup),
		Heartbeat: handlers.NewHeartbeatHandler(log, serviceset.Heartbeat, serviceset.Compactor, cfg.HeartbeatStaleMinutes),
		Ingest:    handlers.NewIngestHandler(log, serviceset.Rollup),
		Command:   handlers.NewCommandHandler(log, serviceset.Command),
		Admin:     handlers.NewAdminHandler(serviceset.Admin, serviceset.Command),
		Audio:     handlers.NewAudioHandler(log, serviceset.Audio),
	}
}
