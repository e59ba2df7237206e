package app

import (
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
)

type Repos struct {
	User        repos.UserRepo
	Session     repos.SessionRepo
	Rollup      repos.RollupRepo
	Heartbeat   repos.HeartbeatRepo
	Command     repos.CommandRepo
	LogSnapshot repos.LogSnapshotRepo
	Audio       repos.AudioRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:        repos.NewUserRepo(db, log),
		Session:     repos.NewSessionRepo(db, log),
		Rollup:      repos.NewRollupRepo(db, log),
		Heartbeat:   repos.NewHeartbeatRepo(db, log),
		Command:     repos.NewCommandRepo(db, log),
		LogSnapshot: repos.NewLogSnapshotRepo(db, log),
		Audio:       repos.NewAudioRepo(db, log),
	}
}
