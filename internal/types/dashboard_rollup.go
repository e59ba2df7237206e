package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TonePositive = "positive"
	ToneNeutral  = "neutral"
	ToneNegative = "negative"
)

// RollupWindowDays is the fixed dashboard window width. The three daily
// arrays always hold exactly this many entries: index 0 is the oldest day,
// index RollupWindowDays-1 is the current UTC day at recompute time.
const RollupWindowDays = 7

// DashboardRollup is the one-per-user precomputed 7-day summary. It is
// replaced wholesale on every recompute, never patched field by field. The
// array columns are JSON-encoded; the engine only ever sees plain slices.
type DashboardRollup struct {
	UserID             uuid.UUID          `gorm:"type:uuid;primaryKey" json:"user_id"`
	LastSessionAt      *time.Time         `json:"last_session_at"`
	DailyActivity      []bool             `gorm:"serializer:json;not null" json:"daily_activity"`
	DailyDurations     []int              `gorm:"serializer:json;not null" json:"daily_durations"`
	DailySentiment     []*decimal.Decimal `gorm:"serializer:json;not null" json:"daily_sentiment"`
	AvgDurationMinutes int                `gorm:"not null" json:"avg_duration_minutes"`
	CurrentTone        string             `gorm:"not null" json:"current_tone"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

func (DashboardRollup) TableName() string {
	return "dashboard_rollups"
}

// EmptyRollup is what a user without any recompute yet renders as.
func EmptyRollup(userID uuid.UUID, now time.Time) DashboardRollup {
	return DashboardRollup{
		UserID:             userID,
		DailyActivity:      make([]bool, RollupWindowDays),
		DailyDurations:     make([]int, RollupWindowDays),
		DailySentiment:     make([]*decimal.Decimal, RollupWindowDays),
		AvgDurationMinutes: 0,
		CurrentTone:        ToneNeutral,
		UpdatedAt:          now,
	}
}
