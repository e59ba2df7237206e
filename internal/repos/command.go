package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

// ErrCommandNotFound is returned when a status update names an unknown
// command id. It is distinct from validation failures: the caller's only
// recourse is to re-check the id.
var ErrCommandNotFound = errors.New("command not found")

type CommandRepo interface {
	Create(ctx context.Context, tx *gorm.DB, command *types.DeviceCommand) error
	// ClaimOldestPending picks the oldest PENDING command for the device
	// under a row lock and flips it to PICKED_UP. Returns nil when the
	// queue is empty. At most one concurrent poller wins a given row.
	ClaimOldestPending(ctx context.Context, tx *gorm.DB, deviceID string) (*types.DeviceCommand, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, errorMessage *string) (*types.DeviceCommand, error)
}

type commandRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCommandRepo(db *gorm.DB, baseLog *logger.Logger) CommandRepo {
	return &commandRepo{db: db, log: baseLog.With("repo", "CommandRepo")}
}

func (r *commandRepo) Create(ctx context.Context, tx *gorm.DB, command *types.DeviceCommand) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	if command.ID == uuid.Nil {
		command.ID = uuid.New()
	}
	if command.Status == "" {
		command.Status = types.CommandStatusPending
	}
	if command.CreatedAt.IsZero() {
		command.CreatedAt = now
	}
	command.UpdatedAt = now
	return transaction.WithContext(ctx).Create(command).Error
}

func (r *commandRepo) ClaimOldestPending(ctx context.Context, tx *gorm.DB, deviceID string) (*types.DeviceCommand, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var claimed *types.DeviceCommand
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		q := txx.Where("device_id = ? AND status = ?", deviceID, types.CommandStatusPending).
			Order("created_at ASC").
			Limit(1)
		// SELECT FOR UPDATE needs server-side row locks; sqlite serializes
		// writing transactions so the clause is only applied on postgres.
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var command types.DeviceCommand
		qErr := q.First(&command).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		now := time.Now().UTC()
		if uErr := txx.Model(&types.DeviceCommand{}).
			Where("id = ?", command.ID).
			Updates(map[string]interface{}{
				"status":     types.CommandStatusPickedUp,
				"updated_at": now,
			}).Error; uErr != nil {
			return uErr
		}
		command.Status = types.CommandStatusPickedUp
		command.UpdatedAt = now
		claimed = &command
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *commandRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, errorMessage *string) (*types.DeviceCommand, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var command types.DeviceCommand
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&command).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommandNotFound
	}
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := transaction.WithContext(ctx).
		Model(&types.DeviceCommand{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
			"updated_at":    now,
		}).Error; err != nil {
		return nil, err
	}
	command.Status = status
	command.ErrorMessage = errorMessage
	command.UpdatedAt = now
	return &command, nil
}
