package services

import (
	"context"
	"testing"
	"time"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

func TestUptimeReportsPercentage(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	heartbeats := repos.NewHeartbeatRepo(gdb, log)
	svc := NewAdminService(gdb, log, repos.NewSessionRepo(gdb, log), heartbeats)
	ctx := context.Background()
	now := time.Now().UTC()

	// 48 full hours of coverage inside the window.
	for i := 0; i < 48; i++ {
		err := heartbeats.SaveSummary(ctx, nil, &types.DeviceHeartbeatSummary{
			DeviceID:       "dev-1",
			HourBucket:     now.Truncate(time.Hour).Add(-time.Duration(i+1) * time.Hour),
			HeartbeatCount: 60,
			UptimeSeconds:  3600,
			RebootCount:    0,
		})
		if err != nil {
			t.Fatalf("save summary %d: %v", i, err)
		}
	}
	// A bucket outside the 7-day window must not count.
	err := heartbeats.SaveSummary(ctx, nil, &types.DeviceHeartbeatSummary{
		DeviceID:       "dev-1",
		HourBucket:     now.Add(-8 * 24 * time.Hour).Truncate(time.Hour),
		HeartbeatCount: 60,
		UptimeSeconds:  3600,
	})
	if err != nil {
		t.Fatalf("save stale summary: %v", err)
	}

	reports, err := svc.UptimeReports(ctx, now)
	if err != nil {
		t.Fatalf("uptime reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one device, got %d", len(reports))
	}
	report := reports[0]
	if report.TotalUptimeSeconds != 48*3600 {
		t.Fatalf("expected %d uptime seconds, got %d", 48*3600, report.TotalUptimeSeconds)
	}
	if report.HoursTracked != 48 {
		t.Fatalf("expected 48 hours tracked, got %d", report.HoursTracked)
	}
	// 172800 * 100 / 604800 = 28.57 rounded to 2dp.
	if report.UptimePct != 28.57 {
		t.Fatalf("expected 28.57%%, got %v", report.UptimePct)
	}
}

func TestDeviceUsersMapsRows(t *testing.T) {
	gdb := newTestDB(t)
	log := logger.NewNop()
	sessions := repos.NewSessionRepo(gdb, log)
	users := repos.NewUserRepo(gdb, log)
	svc := NewAdminService(gdb, log, sessions, repos.NewHeartbeatRepo(gdb, log))
	ctx := context.Background()

	user, err := users.GetOrCreate(ctx, nil, "family-1")
	if err != nil {
		t.Fatalf("get-or-create: %v", err)
	}
	device := "dev-1"
	startedAt := time.Now().UTC().Add(-time.Hour)
	if _, err := sessions.InsertIgnoreDuplicate(ctx, nil, &types.Session{
		UserID:          user.ID,
		DeviceID:        &device,
		SessionID:       "sess-1",
		StartedAt:       startedAt,
		DurationSeconds: 120,
	}); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	got, err := svc.DeviceUsers(ctx, device)
	if err != nil {
		t.Fatalf("device users: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one user, got %d", len(got))
	}
	if got[0].UserExternalID != "family-1" || got[0].SessionCount != 1 {
		t.Fatalf("unexpected row: %+v", got[0])
	}
}
