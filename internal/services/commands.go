package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

type CommandService interface {
	// Enqueue creates a PENDING command at the tail of the device's queue.
	Enqueue(ctx context.Context, deviceID, commandType string, payload datatypes.JSON) (*types.DeviceCommand, error)

	// Poll claims the oldest PENDING command for the device, transitioning
	// it to PICKED_UP; nil when nothing is pending.
	Poll(ctx context.Context, deviceID string) (*types.DeviceCommand, error)

	// ReportStatus records the terminal outcome of a picked-up command.
	// Unknown ids surface repos.ErrCommandNotFound.
	ReportStatus(ctx context.Context, commandID uuid.UUID, status string, errorMessage *string) (*types.DeviceCommand, error)

	SaveLogSnapshot(ctx context.Context, deviceID, content string) (*types.DeviceLogSnapshot, error)
	LatestLog(ctx context.Context, deviceID string) (*types.DeviceLogSnapshot, error)
}

type commandService struct {
	db       *gorm.DB
	log      *logger.Logger
	commands repos.CommandRepo
	logs     repos.LogSnapshotRepo
}

func NewCommandService(db *gorm.DB, baseLog *logger.Logger, commands repos.CommandRepo, logs repos.LogSnapshotRepo) CommandService {
	return &commandService{
		db:       db,
		log:      baseLog.With("service", "CommandService"),
		commands: commands,
		logs:     logs,
	}
}

func (s *commandService) Enqueue(ctx context.Context, deviceID, commandType string, payload datatypes.JSON) (*types.DeviceCommand, error) {
	command := &types.DeviceCommand{
		DeviceID:    deviceID,
		CommandType: commandType,
		Status:      types.CommandStatusPending,
		Payload:     payload,
	}
	if err := s.commands.Create(ctx, nil, command); err != nil {
		return nil, err
	}
	return command, nil
}

func (s *commandService) Poll(ctx context.Context, deviceID string) (*types.DeviceCommand, error) {
	return s.commands.ClaimOldestPending(ctx, nil, deviceID)
}

func (s *commandService) ReportStatus(ctx context.Context, commandID uuid.UUID, status string, errorMessage *string) (*types.DeviceCommand, error) {
	return s.commands.UpdateStatus(ctx, nil, commandID, status, errorMessage)
}

func (s *commandService) SaveLogSnapshot(ctx context.Context, deviceID, content string) (*types.DeviceLogSnapshot, error) {
	snapshot := &types.DeviceLogSnapshot{
		DeviceID:   deviceID,
		LogContent: content,
	}
	if err := s.logs.Create(ctx, nil, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *commandService) LatestLog(ctx context.Context, deviceID string) (*types.DeviceLogSnapshot, error) {
	return s.logs.LatestForDevice(ctx, nil, deviceID)
}
