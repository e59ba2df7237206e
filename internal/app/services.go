package app

import (
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/platform/objectstore"
	"github.com/coco-family/coco-backend/internal/services"
)

type Services struct {
	Rollup    services.RollupService
	Heartbeat services.HeartbeatService
	Compactor services.CompactorService
	Command   services.CommandService
	Admin     services.AdminService

	// Audio stays nil when the object store is not configured; the audio
	// endpoints then answer 503.
	Audio services.AudioService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) Services {
	log.Info("Wiring services...")

	var audio services.AudioService
	if storeCfg, ok := objectstore.S3ConfigFromEnv(); ok {
		store, err := objectstore.NewS3Store(log, storeCfg)
		if err != nil {
			log.Warn("object store init failed; audio uploads disabled", "error", err)
		} else {
			audio = services.NewAudioService(db, log, store, reposet.Audio)
		}
	} else {
		log.Info("object store not configured; audio uploads disabled")
	}

	return Services{
		Rollup:    services.NewRollupService(db, log, reposet.User, reposet.Session, reposet.Rollup),
		Heartbeat: services.NewHeartbeatService(db, log, reposet.Heartbeat),
		Compactor: services.NewCompactorService(
			db, log, reposet.Heartbeat,
			services.NewRandomTrigger(cfg.CompactProbability),
			cfg.CompactRawRetentionHours, cfg.CleanupRetentionDays,
		),
		Command: services.NewCommandService(db, log, reposet.Command, reposet.LogSnapshot),
		Admin:   services.NewAdminService(db, log, reposet.Session, reposet.Heartbeat),
		Audio:   audio,
	}
}
