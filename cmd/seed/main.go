package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/coco-family/coco-backend/internal/app"
	"github.com/coco-family/coco-backend/internal/services"
	"github.com/coco-family/coco-backend/internal/types"
)

// Seeds a handful of demo families and devices so the dashboard has
// something to show in local development.

var demoUsers = []struct {
	externalID string
	deviceID   string
}{
	{"family-ada", "coco-device-001"},
	{"family-bell", "coco-device-002"},
	{"family-curie", "coco-device-003"},
	{"family-darwin", "coco-device-004"},
}

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	rng := rand.New(rand.NewSource(now.UnixNano()))

	group, gctx := errgroup.WithContext(ctx)
	for i, user := range demoUsers {
		seed := rng.Int63()
		group.Go(func() error {
			if err := seedSessions(gctx, a.Services.Rollup, seed, user.externalID, user.deviceID, now); err != nil {
				return fmt.Errorf("seed sessions for %s: %w", user.externalID, err)
			}
			return seedHeartbeat(gctx, a.Services.Heartbeat, user.deviceID, i, now)
		})
	}
	if err := group.Wait(); err != nil {
		a.Log.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
	a.Log.Info("Seeding complete", "users", len(demoUsers))
}

func seedSessions(ctx context.Context, rollups services.RollupService, seed int64, externalID, deviceID string, now time.Time) error {
	rng := rand.New(rand.NewSource(seed))
	for dayOffset := 0; dayOffset < types.RollupWindowDays; dayOffset++ {
		// Leave the occasional gap so streaks are not all 7.
		if rng.Float64() < 0.2 {
			continue
		}
		day := now.AddDate(0, 0, -dayOffset)
		sessionsToday := 1 + rng.Intn(3)
		for n := 0; n < sessionsToday; n++ {
			startedAt := time.Date(day.Year(), day.Month(), day.Day(), 8+rng.Intn(10), rng.Intn(60), 0, 0, time.UTC)
			input := services.SessionSummaryInput{
				SessionID:       fmt.Sprintf("seed-%s-%s-%d", externalID, day.Format("20060102"), n),
				UserExternalID:  externalID,
				DeviceID:        &deviceID,
				StartedAt:       startedAt,
				DurationSeconds: 60 + rng.Intn(900),
				SentimentScore:  decimal.NewFromFloat(0.3 + rng.Float64()*0.6).Round(2),
				Status:          nil,
			}
			if _, err := rollups.Ingest(ctx, input); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedHeartbeat(ctx context.Context, heartbeats services.HeartbeatService, deviceID string, index int, now time.Time) error {
	latency := 40 + index*150
	rssi := -50 - index*5
	boot := now.Add(-6 * time.Hour)
	input := services.HeartbeatInput{
		DeviceID:     deviceID,
		AgentVersion: "1.4.2",
		Connectivity: types.ConnectivityWifi,
		Network: services.HeartbeatNetwork{
			SignalRSSI: &rssi,
			LatencyMS:  &latency,
		},
		AgentStatus: types.AgentStatusOK,
		BootTime:    &boot,
		Timestamp:   &now,
	}
	_, err := heartbeats.Record(ctx, input)
	return err
}
