package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

type AudioRepo interface {
	Create(ctx context.Context, tx *gorm.DB, recording *types.AudioRecording) error
}

type audioRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAudioRepo(db *gorm.DB, baseLog *logger.Logger) AudioRepo {
	return &audioRepo{db: db, log: baseLog.With("repo", "AudioRepo")}
}

func (r *audioRepo) Create(ctx context.Context, tx *gorm.DB, recording *types.AudioRecording) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if recording.ID == uuid.Nil {
		recording.ID = uuid.New()
	}
	if recording.UploadedAt.IsZero() {
		recording.UploadedAt = time.Now().UTC()
	}
	return transaction.WithContext(ctx).Create(recording).Error
}
