package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

type LogSnapshotRepo interface {
	Create(ctx context.Context, tx *gorm.DB, snapshot *types.DeviceLogSnapshot) error
	LatestForDevice(ctx context.Context, tx *gorm.DB, deviceID string) (*types.DeviceLogSnapshot, error)
}

type logSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLogSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) LogSnapshotRepo {
	return &logSnapshotRepo{db: db, log: baseLog.With("repo", "LogSnapshotRepo")}
}

func (r *logSnapshotRepo) Create(ctx context.Context, tx *gorm.DB, snapshot *types.DeviceLogSnapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	return transaction.WithContext(ctx).Create(snapshot).Error
}

func (r *logSnapshotRepo) LatestForDevice(ctx context.Context, tx *gorm.DB, deviceID string) (*types.DeviceLogSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var snapshot types.DeviceLogSnapshot
	err := transaction.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(1).
		Find(&snapshot).Error
	if err != nil {
		return nil, err
	}
	if snapshot.ID == uuid.Nil {
		return nil, nil
	}
	return &snapshot, nil
}
