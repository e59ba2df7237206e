package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

// Service owns the gorm handle. The DSN scheme selects the dialect:
// postgres:// in production, sqlite:// (or a bare file path) for tests and
// local development. All conflict handling above this layer goes through
// gorm clauses, so nothing else in the tree branches on the dialect.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(log *logger.Logger, databaseURL string) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	dialector, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}

	serviceLog.Info("Connecting to database...")
	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Service{db: gdb, log: serviceLog}, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://")), nil
	case databaseURL == "":
		return nil, fmt.Errorf("DATABASE_URL is required")
	default:
		// Bare path: treat as a sqlite file, matching how local tooling
		// passes ":memory:" or "./dev.db".
		return sqlite.Open(databaseURL), nil
	}
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.Session{},
		&types.DashboardRollup{},
		&types.DeviceLatestHeartbeat{},
		&types.DeviceHeartbeatEvent{},
		&types.DeviceHeartbeatSummary{},
		&types.DeviceCommand{},
		&types.DeviceLogSnapshot{},
		&types.AudioRecording{},
	)
	if err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *Service) DB() *gorm.DB {
	return s.db
}
