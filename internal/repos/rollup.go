package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

type RollupRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.DashboardRollup, error)
	// Upsert replaces the user's rollup wholesale.
	Upsert(ctx context.Context, tx *gorm.DB, rollup *types.DashboardRollup) error
}

type rollupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRollupRepo(db *gorm.DB, baseLog *logger.Logger) RollupRepo {
	return &rollupRepo{db: db, log: baseLog.With("repo", "RollupRepo")}
}

func (r *rollupRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.DashboardRollup, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rollup types.DashboardRollup
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&rollup).Error
	if err != nil {
		return nil, err
	}
	if rollup.UserID == uuid.Nil {
		return nil, nil
	}
	return &rollup, nil
}

func (r *rollupRepo) Upsert(ctx context.Context, tx *gorm.DB, rollup *types.DashboardRollup) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(rollup).Error
}
