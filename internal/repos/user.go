package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

type UserRepo interface {
	// GetOrCreate resolves the user for an external id, creating it when
	// unknown. Concurrent creators converge on one row: the insert is
	// ON CONFLICT DO NOTHING on external_id and the select always follows.
	GetOrCreate(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error)
	GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	user := types.User{
		ID:         uuid.New(),
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(&user).Error; err != nil {
		return nil, err
	}

	// Always re-select: on conflict the generated id above never landed.
	var out types.User
	if err := transaction.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var user types.User
	err := transaction.WithContext(ctx).
		Where("external_id = ?", externalID).
		Limit(1).
		Find(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == uuid.Nil {
		return nil, nil
	}
	return &user, nil
}
