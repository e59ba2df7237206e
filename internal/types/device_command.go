package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Command types devices know how to execute.
const (
	CommandReboot         = "REBOOT"
	CommandRestartService = "RESTART_SERVICE"
	CommandUploadLogs     = "UPLOAD_LOGS"
	CommandUpdateNow      = "UPDATE_NOW"
)

// Command lifecycle: PENDING -> PICKED_UP -> COMPLETED | FAILED.
// Terminal states are final; there is no retry.
const (
	CommandStatusPending   = "PENDING"
	CommandStatusPickedUp  = "PICKED_UP"
	CommandStatusCompleted = "COMPLETED"
	CommandStatusFailed    = "FAILED"
)

func ValidCommandType(t string) bool {
	switch t {
	case CommandReboot, CommandRestartService, CommandUploadLogs, CommandUpdateNow:
		return true
	}
	return false
}

type DeviceCommand struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID     string         `gorm:"not null;index:idx_device_commands_polling,priority:1" json:"device_id"`
	CommandType  string         `gorm:"type:varchar(50);not null" json:"command_type"`
	Status       string         `gorm:"type:varchar(20);not null;default:PENDING;index:idx_device_commands_polling,priority:2" json:"status"`
	Payload      datatypes.JSON `json:"payload,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_device_commands_polling,priority:3" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (DeviceCommand) TableName() string {
	return "device_commands"
}

type DeviceLogSnapshot struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID   string    `gorm:"not null;index:idx_log_snapshots_device_created,priority:1" json:"device_id"`
	LogContent string    `gorm:"not null" json:"log_content"`
	CreatedAt  time.Time `gorm:"not null;index:idx_log_snapshots_device_created,priority:2,sort:desc" json:"created_at"`
}

func (DeviceLogSnapshot) TableName() string {
	return "device_log_snapshots"
}
