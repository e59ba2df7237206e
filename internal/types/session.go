package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session status tags reported by devices.
const (
	SessionStatusSuccess    = "success"
	SessionStatusUnattended = "unattended"
	SessionStatusEarlyExit  = "early_exit"
	SessionStatusErrorExit  = "error_exit"
)

// Session is one completed engagement session. SessionID is the
// client-supplied idempotency key; a second insert with the same value is a
// no-op, never an error.
type Session struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_sessions_user_started,priority:1" json:"user_id"`
	DeviceID        *string         `gorm:"index:idx_sessions_device_id" json:"device_id,omitempty"`
	SessionID       string          `gorm:"uniqueIndex:uq_sessions_session_id;not null;column:session_id" json:"session_id"`
	StartedAt       time.Time       `gorm:"not null;index:idx_sessions_user_started,priority:2,sort:desc" json:"started_at"`
	DurationSeconds int             `gorm:"not null" json:"duration_seconds"`
	SentimentScore  decimal.Decimal `gorm:"type:numeric(4,2);not null" json:"sentiment_score"`
	Status          *string         `gorm:"type:varchar(20)" json:"status,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// EndedAt is the session end instant used for last_session_at.
func (s Session) EndedAt() time.Time {
	return s.StartedAt.Add(time.Duration(s.DurationSeconds) * time.Second)
}
