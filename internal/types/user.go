package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID string    `gorm:"uniqueIndex;not null;column:external_id" json:"external_id"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
