package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

func newRollupService(t *testing.T) (RollupService, *rollupFixture) {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	users := repos.NewUserRepo(gdb, log)
	sessions := repos.NewSessionRepo(gdb, log)
	rollups := repos.NewRollupRepo(gdb, log)
	svc := NewRollupService(gdb, log, users, sessions, rollups)
	return svc, &rollupFixture{users: users, rollups: rollups}
}

type rollupFixture struct {
	users   repos.UserRepo
	rollups repos.RollupRepo
}

func fact(startedAt time.Time, durationSeconds int, sentiment string) types.Session {
	return types.Session{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		SessionID:       uuid.NewString(),
		StartedAt:       startedAt,
		DurationSeconds: durationSeconds,
		SentimentScore:  decimal.RequireFromString(sentiment),
	}
}

func TestComputeRollupArrayShape(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	rollup := computeRollup(uuid.New(), now, []types.Session{fact(today, 300, "0.50")})

	if len(rollup.DailyActivity) != 7 || len(rollup.DailyDurations) != 7 || len(rollup.DailySentiment) != 7 {
		t.Fatalf("expected all arrays to have length 7, got %d/%d/%d",
			len(rollup.DailyActivity), len(rollup.DailyDurations), len(rollup.DailySentiment))
	}
	if !rollup.DailyActivity[6] {
		t.Fatalf("expected index 6 to be today's activity")
	}
	for i := 0; i < 6; i++ {
		if rollup.DailyActivity[i] {
			t.Fatalf("expected index %d to be inactive", i)
		}
	}
}

func TestComputeRollupWindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	windowStart := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	included := computeRollup(uuid.New(), now, []types.Session{fact(windowStart, 120, "0.50")})
	if !included.DailyActivity[0] {
		t.Fatalf("session at exactly window start must land on index 0")
	}

	excluded := computeRollup(uuid.New(), now, []types.Session{fact(windowStart.Add(-time.Second), 120, "0.50")})
	for i, active := range excluded.DailyActivity {
		if active {
			t.Fatalf("session before window start must be ignored, index %d active", i)
		}
	}
	if excluded.LastSessionAt != nil {
		t.Fatalf("out-of-window session must not set last_session_at")
	}
}

func TestComputeRollupToneBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		sentiment string
		want      string
	}{
		{"0.39", types.ToneNegative},
		{"0.40", types.ToneNeutral},
		{"0.60", types.ToneNeutral},
		{"0.61", types.TonePositive},
	}
	for _, tc := range cases {
		rollup := computeRollup(uuid.New(), now, []types.Session{fact(today, 60, tc.sentiment)})
		if rollup.CurrentTone != tc.want {
			t.Fatalf("sentiment %s: expected tone %s, got %s", tc.sentiment, tc.want, rollup.CurrentTone)
		}
	}
}

func TestComputeRollupToneUsesMostRecentPresentDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	facts := []types.Session{
		fact(time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC), 60, "0.90"),
		fact(time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), 60, "0.10"),
	}
	rollup := computeRollup(uuid.New(), now, facts)
	if rollup.CurrentTone != types.ToneNegative {
		t.Fatalf("expected most recent day's tone negative, got %s", rollup.CurrentTone)
	}

	empty := computeRollup(uuid.New(), now, nil)
	if empty.CurrentTone != types.ToneNeutral {
		t.Fatalf("expected neutral tone with no sentiment, got %s", empty.CurrentTone)
	}
}

func TestComputeRollupExampleScenario(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	facts := []types.Session{
		fact(time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC), 90, "0.20"),
		fact(time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), 119, "0.20"),
		fact(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 180, "0.20"),
	}
	rollup := computeRollup(uuid.New(), now, facts)

	wantDurations := []int{0, 0, 0, 0, 2, 2, 3}
	for i, want := range wantDurations {
		if rollup.DailyDurations[i] != want {
			t.Fatalf("day %d: expected %d minutes, got %d", i, want, rollup.DailyDurations[i])
		}
	}
	if got := StreakDays(rollup.DailyActivity); got != 3 {
		t.Fatalf("expected streak 3, got %d", got)
	}
	if rollup.AvgDurationMinutes != 2 {
		t.Fatalf("expected avg 2 minutes, got %d", rollup.AvgDurationMinutes)
	}
	if rollup.CurrentTone != types.ToneNegative {
		t.Fatalf("expected negative tone, got %s", rollup.CurrentTone)
	}

	wantLast := time.Date(2026, 3, 10, 9, 3, 0, 0, time.UTC)
	if rollup.LastSessionAt == nil || !rollup.LastSessionAt.Equal(wantLast) {
		t.Fatalf("expected last session at %v, got %v", wantLast, rollup.LastSessionAt)
	}
}

func TestComputeRollupDailySentimentMean(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	facts := []types.Session{
		fact(today.Add(9*time.Hour), 60, "0.50"),
		fact(today.Add(10*time.Hour), 60, "0.56"),
	}
	rollup := computeRollup(uuid.New(), now, facts)

	got := rollup.DailySentiment[6]
	if got == nil || !got.Equal(decimal.RequireFromString("0.53")) {
		t.Fatalf("expected sentiment 0.53, got %v", got)
	}
}

func TestStreakDays(t *testing.T) {
	cases := []struct {
		activity []bool
		want     int
	}{
		{[]bool{false, false, false, false, false, false, false}, 0},
		{[]bool{true, true, true, true, true, true, true}, 7},
		{[]bool{true, false, false, false, true, true, true}, 3},
		{[]bool{true, true, true, true, true, true, false}, 0},
	}
	for _, tc := range cases {
		if got := StreakDays(tc.activity); got != tc.want {
			t.Fatalf("activity %v: expected %d, got %d", tc.activity, tc.want, got)
		}
	}
}

func TestIngestDuplicateIsIdempotent(t *testing.T) {
	svc, fixture := newRollupService(t)
	ctx := context.Background()

	input := SessionSummaryInput{
		SessionID:       "sess-1",
		UserExternalID:  "family-1",
		StartedAt:       time.Now().UTC(),
		DurationSeconds: 300,
		SentimentScore:  decimal.RequireFromString("0.70"),
	}

	outcome, err := svc.Ingest(ctx, input)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %s", outcome)
	}

	// Same session id with a different duration must be a no-op.
	input.DurationSeconds = 9999
	outcome, err = svc.Ingest(ctx, input)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome)
	}

	user, err := fixture.users.GetByExternalID(ctx, nil, "family-1")
	if err != nil || user == nil {
		t.Fatalf("lookup user: %v", err)
	}
	rollup, err := fixture.rollups.Get(ctx, nil, user.ID)
	if err != nil || rollup == nil {
		t.Fatalf("lookup rollup: %v", err)
	}
	if rollup.DailyDurations[6] != 5 {
		t.Fatalf("duplicate must not change the rollup, got %d minutes", rollup.DailyDurations[6])
	}
}

func TestDashboardUnknownUserRendersEmptyRollup(t *testing.T) {
	svc, _ := newRollupService(t)

	view, err := svc.Dashboard(context.Background(), "never-seen", time.Now().UTC())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if view.StreakDays != 0 {
		t.Fatalf("expected streak 0, got %d", view.StreakDays)
	}
	if view.Rollup.CurrentTone != types.ToneNeutral {
		t.Fatalf("expected neutral tone, got %s", view.Rollup.CurrentTone)
	}
	if len(view.Rollup.DailyActivity) != 7 {
		t.Fatalf("expected 7 activity entries, got %d", len(view.Rollup.DailyActivity))
	}
	for i, v := range view.Rollup.DailySentiment {
		if v != nil {
			t.Fatalf("expected nil sentiment at %d, got %v", i, v)
		}
	}
}

func TestIngestRecomputesRollup(t *testing.T) {
	svc, _ := newRollupService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, duration := range []int{90, 119, 180} {
		input := SessionSummaryInput{
			SessionID:       uuid.NewString(),
			UserExternalID:  "family-2",
			StartedAt:       time.Now().UTC(),
			DurationSeconds: duration,
			SentimentScore:  decimal.RequireFromString("0.50"),
		}
		if _, err := svc.Ingest(ctx, input); err != nil {
			t.Fatalf("ingest %d failed: %v", i, err)
		}
	}

	view, err := svc.Dashboard(ctx, "family-2", now)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	// 389 seconds in one UTC day rounds to 6 minutes.
	if view.Rollup.DailyDurations[6] != 6 {
		t.Fatalf("expected 6 minutes today, got %d", view.Rollup.DailyDurations[6])
	}
	if view.StreakDays != 1 {
		t.Fatalf("expected streak 1, got %d", view.StreakDays)
	}
}
