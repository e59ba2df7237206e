package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

// IngestOutcome reports how a session summary landed. Duplicate is a normal
// outcome, not an error: the stored state is identical either way.
type IngestOutcome string

const (
	OutcomeApplied   IngestOutcome = "applied"
	OutcomeDuplicate IngestOutcome = "duplicate"
)

// SessionSummaryInput is a validated session summary. StartedAt is already
// normalized to UTC by the handler; SentimentScore is quantized to two
// fractional digits before storage.
type SessionSummaryInput struct {
	SessionID       string
	UserExternalID  string
	DeviceID        *string
	StartedAt       time.Time
	DurationSeconds int
	SentimentScore  decimal.Decimal
	Status          *string
}

// DashboardView is the read-model for one user's dashboard. StreakDays is
// derived from the stored activity array on every read, never persisted.
type DashboardView struct {
	Rollup     types.DashboardRollup
	StreakDays int
}

type RollupService interface {
	// Ingest applies the §4.1 contract: resolve the user, insert the
	// session behind its idempotency key, and on a non-duplicate insert
	// synchronously recompute the user's rollup — all in one transaction.
	Ingest(ctx context.Context, input SessionSummaryInput) (IngestOutcome, error)

	// Dashboard returns the precomputed rollup for an external user id,
	// lazily creating the user on first sight. It never recomputes from
	// raw session rows.
	Dashboard(ctx context.Context, userExternalID string, now time.Time) (DashboardView, error)
}

type rollupService struct {
	db       *gorm.DB
	log      *logger.Logger
	users    repos.UserRepo
	sessions repos.SessionRepo
	rollups  repos.RollupRepo
}

func NewRollupService(db *gorm.DB, baseLog *logger.Logger, users repos.UserRepo, sessions repos.SessionRepo, rollups repos.RollupRepo) RollupService {
	return &rollupService{
		db:       db,
		log:      baseLog.With("service", "RollupService"),
		users:    users,
		sessions: sessions,
		rollups:  rollups,
	}
}

func (s *rollupService) Ingest(ctx context.Context, input SessionSummaryInput) (IngestOutcome, error) {
	outcome := OutcomeDuplicate
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.users.GetOrCreate(ctx, tx, input.UserExternalID)
		if err != nil {
			return err
		}

		session := &types.Session{
			UserID:          user.ID,
			DeviceID:        input.DeviceID,
			SessionID:       input.SessionID,
			StartedAt:       input.StartedAt.UTC(),
			DurationSeconds: input.DurationSeconds,
			SentimentScore:  input.SentimentScore.Round(2),
			Status:          input.Status,
		}
		applied, err := s.sessions.InsertIgnoreDuplicate(ctx, tx, session)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}

		outcome = OutcomeApplied
		return s.recompute(ctx, tx, user.ID, time.Now().UTC())
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// recompute fetches the user's window facts and replaces the rollup row
// wholesale with the freshly computed aggregate.
func (s *rollupService) recompute(ctx context.Context, tx *gorm.DB, userID uuid.UUID, now time.Time) error {
	windowStart := windowStartUTC(now)
	facts, err := s.sessions.ListForUserSince(ctx, tx, userID, windowStart)
	if err != nil {
		return err
	}
	rollup := computeRollup(userID, now, facts)
	return s.rollups.Upsert(ctx, tx, &rollup)
}

func (s *rollupService) Dashboard(ctx context.Context, userExternalID string, now time.Time) (DashboardView, error) {
	user, err := s.users.GetOrCreate(ctx, nil, userExternalID)
	if err != nil {
		return DashboardView{}, err
	}
	rollup, err := s.rollups.Get(ctx, nil, user.ID)
	if err != nil {
		return DashboardView{}, err
	}
	if rollup == nil {
		empty := types.EmptyRollup(user.ID, now)
		return DashboardView{Rollup: empty, StreakDays: 0}, nil
	}
	return DashboardView{
		Rollup:     *rollup,
		StreakDays: StreakDays(rollup.DailyActivity),
	}, nil
}

// StreakDays counts consecutive active days scanning backward from the most
// recent day.
func StreakDays(dailyActivity []bool) int {
	streak := 0
	for i := len(dailyActivity) - 1; i >= 0; i-- {
		if !dailyActivity[i] {
			break
		}
		streak++
	}
	return streak
}

// windowStartUTC is 00:00:00 UTC of the oldest day in the trailing
// 7-calendar-day window ending today.
func windowStartUTC(now time.Time) time.Time {
	day := now.UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, -(types.RollupWindowDays - 1))
}

var (
	tonePositiveMin = decimal.RequireFromString("0.61")
	toneNeutralMin  = decimal.RequireFromString("0.40")
)

// computeRollup is a pure function of the clock and the user's window
// facts. Facts outside the window are ignored even if handed in.
func computeRollup(userID uuid.UUID, now time.Time, facts []types.Session) types.DashboardRollup {
	windowStart := windowStartUTC(now)

	buckets := make(map[string][]types.Session, types.RollupWindowDays)
	for _, fact := range facts {
		startedAt := fact.StartedAt.UTC()
		if startedAt.Before(windowStart) {
			continue
		}
		// A session is credited entirely to the UTC day it started, even
		// when it runs past midnight.
		key := startedAt.Format("2006-01-02")
		buckets[key] = append(buckets[key], fact)
	}

	dailyActivity := make([]bool, types.RollupWindowDays)
	dailyDurations := make([]int, types.RollupWindowDays)
	dailySentiment := make([]*decimal.Decimal, types.RollupWindowDays)
	var lastSessionAt *time.Time

	for offset := 0; offset < types.RollupWindowDays; offset++ {
		day := windowStart.AddDate(0, 0, offset)
		bucket := buckets[day.Format("2006-01-02")]
		if len(bucket) == 0 {
			continue
		}

		totalSeconds := 0
		sentimentSum := decimal.Zero
		for _, fact := range bucket {
			totalSeconds += fact.DurationSeconds
			sentimentSum = sentimentSum.Add(fact.SentimentScore)

			ended := fact.EndedAt()
			if lastSessionAt == nil || ended.After(*lastSessionAt) {
				endedCopy := ended
				lastSessionAt = &endedCopy
			}
		}

		dailyActivity[offset] = true
		dailyDurations[offset] = roundMinutesFromSeconds(totalSeconds)
		avg := sentimentSum.Div(decimal.NewFromInt(int64(len(bucket)))).Round(2)
		dailySentiment[offset] = &avg
	}

	return types.DashboardRollup{
		UserID:             userID,
		LastSessionAt:      lastSessionAt,
		DailyActivity:      dailyActivity,
		DailyDurations:     dailyDurations,
		DailySentiment:     dailySentiment,
		AvgDurationMinutes: averageNonZeroDuration(dailyDurations),
		CurrentTone:        determineCurrentTone(dailySentiment),
		UpdatedAt:          now,
	}
}

// roundMinutesFromSeconds converts a day's summed seconds to whole minutes,
// rounding half up on exact decimal arithmetic.
func roundMinutesFromSeconds(seconds int) int {
	minutes := decimal.NewFromInt(int64(seconds)).Div(decimal.NewFromInt(60))
	return int(minutes.Round(0).IntPart())
}

// averageNonZeroDuration averages only the active days so inactive days do
// not dilute the figure; 0 when no day has activity.
func averageNonZeroDuration(durations []int) int {
	sum, count := 0, 0
	for _, v := range durations {
		if v > 0 {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(count)))
	return int(avg.Round(0).IntPart())
}

// determineCurrentTone classifies the most recent day that has a sentiment
// value; a window with no sentiment at all reads as neutral.
func determineCurrentTone(dailySentiment []*decimal.Decimal) string {
	for i := len(dailySentiment) - 1; i >= 0; i-- {
		value := dailySentiment[i]
		if value == nil {
			continue
		}
		switch {
		case value.GreaterThanOrEqual(tonePositiveMin):
			return types.TonePositive
		case value.GreaterThanOrEqual(toneNeutralMin):
			return types.ToneNeutral
		default:
			return types.ToneNegative
		}
	}
	return types.ToneNeutral
}
