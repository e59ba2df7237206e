package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	AudioRoleUser      = "user"
	AudioRoleAssistant = "assistant"
)

// AudioRecording is the metadata row for a blob in the object store. The
// row is only ever written after the blob upload is confirmed.
type AudioRecording struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_audio_session_turn,priority:1;index:idx_audio_session" json:"session_id"`
	DeviceID        string    `gorm:"not null;index:idx_audio_device" json:"device_id"`
	ParticipantID   *string   `gorm:"index:idx_audio_participant" json:"participant_id,omitempty"`
	TurnNumber      int       `gorm:"not null;uniqueIndex:uq_audio_session_turn,priority:2" json:"turn_number"`
	Role            string    `gorm:"not null" json:"role"`
	ActivityID      *string   `gorm:"type:varchar(100)" json:"activity_id,omitempty"`
	DurationMS      int       `gorm:"not null;column:duration_ms" json:"duration_ms"`
	FileSizeBytes   int       `gorm:"not null" json:"file_size_bytes"`
	Codec           string    `gorm:"type:varchar(20);not null;default:flac" json:"codec"`
	SampleRate      int       `gorm:"not null;default:24000" json:"sample_rate"`
	Channels        int       `gorm:"not null;default:1" json:"channels"`
	BitrateKbps     int       `gorm:"not null;default:24" json:"bitrate_kbps"`
	Transcript      *string   `json:"transcript,omitempty"`
	StorageURL      string    `gorm:"not null" json:"storage_url"`
	StorageProvider string    `gorm:"type:varchar(50);not null;default:r2" json:"storage_provider"`
	SHA256          *string   `gorm:"type:varchar(64);column:sha256" json:"sha256,omitempty"`
	RecordedAt      time.Time `gorm:"not null;index:idx_audio_recorded,sort:desc" json:"recorded_at"`
	UploadedAt      time.Time `gorm:"not null" json:"uploaded_at"`
}

func (AudioRecording) TableName() string {
	return "audio_recordings"
}
