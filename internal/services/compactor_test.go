package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

func newCompactorFixture(t *testing.T, trigger TriggerPolicy) (CompactorService, repos.HeartbeatRepo) {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	heartbeats := repos.NewHeartbeatRepo(gdb, log)
	svc := NewCompactorService(gdb, log, heartbeats, trigger, 24, 7)
	return svc, heartbeats
}

func appendRawEvent(t *testing.T, heartbeats repos.HeartbeatRepo, deviceID string, receivedAt time.Time, input HeartbeatInput) {
	t.Helper()
	input.DeviceID = deviceID
	payload, err := json.Marshal(input)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	err = heartbeats.AppendEvent(context.Background(), nil, &types.DeviceHeartbeatEvent{
		DeviceID:         deviceID,
		RawPayload:       payload,
		ServerReceivedAt: receivedAt,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
}

func latencyInput(latencyMS int, connectivity, agentStatus string) HeartbeatInput {
	return HeartbeatInput{
		AgentVersion: "1.0.0",
		Connectivity: connectivity,
		Network:      HeartbeatNetwork{LatencyMS: &latencyMS},
		AgentStatus:  agentStatus,
	}
}

func TestCompactFoldsEventsIntoHourlySummary(t *testing.T) {
	svc, heartbeats := newCompactorFixture(t, TriggerFunc(func(time.Time) bool { return true }))
	ctx := context.Background()

	base := time.Now().UTC().Add(-30 * time.Hour).Truncate(time.Hour)
	appendRawEvent(t, heartbeats, "dev-1", base.Add(5*time.Minute), latencyInput(100, types.ConnectivityWifi, types.AgentStatusOK))
	appendRawEvent(t, heartbeats, "dev-1", base.Add(10*time.Minute), latencyInput(200, types.ConnectivityWifi, types.AgentStatusOK))
	appendRawEvent(t, heartbeats, "dev-1", base.Add(15*time.Minute), latencyInput(330, types.ConnectivityLTE, types.AgentStatusDegraded))

	compacted, err := svc.Compact(ctx, 24)
	if err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	if compacted != 3 {
		t.Fatalf("expected 3 events compacted, got %d", compacted)
	}

	summary, err := heartbeats.GetSummary(ctx, nil, "dev-1", base)
	if err != nil || summary == nil {
		t.Fatalf("expected summary for bucket, err=%v", err)
	}
	if summary.HeartbeatCount != 3 {
		t.Fatalf("expected count 3, got %d", summary.HeartbeatCount)
	}
	if summary.MinLatencyMS == nil || *summary.MinLatencyMS != 100 {
		t.Fatalf("expected min latency 100, got %v", summary.MinLatencyMS)
	}
	if summary.MaxLatencyMS == nil || *summary.MaxLatencyMS != 330 {
		t.Fatalf("expected max latency 330, got %v", summary.MaxLatencyMS)
	}
	// (100+200+330)/3 = 210 exactly
	if summary.AvgLatencyMS == nil || *summary.AvgLatencyMS != 210 {
		t.Fatalf("expected avg latency 210, got %v", summary.AvgLatencyMS)
	}
	if summary.ConnectivityMode != types.ConnectivityWifi {
		t.Fatalf("expected plurality wifi, got %s", summary.ConnectivityMode)
	}
	if summary.AgentStatusOKCount != 2 || summary.AgentStatusDegradedCount != 1 {
		t.Fatalf("expected 2 ok / 1 degraded, got %d/%d", summary.AgentStatusOKCount, summary.AgentStatusDegradedCount)
	}
	// span 600s + one 60s nominal interval
	if summary.UptimeSeconds != 660 {
		t.Fatalf("expected uptime 660, got %d", summary.UptimeSeconds)
	}

	remaining, err := heartbeats.ListEventsBefore(ctx, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected folded events deleted, %d remain", len(remaining))
	}
}

func TestCompactMergesWithExistingSummaryCountWeighted(t *testing.T) {
	svc, heartbeats := newCompactorFixture(t, TriggerFunc(func(time.Time) bool { return true }))
	ctx := context.Background()

	base := time.Now().UTC().Add(-30 * time.Hour).Truncate(time.Hour)
	avg := 100
	existing := &types.DeviceHeartbeatSummary{
		DeviceID:         "dev-1",
		HourBucket:       base,
		HeartbeatCount:   10,
		AvgLatencyMS:     &avg,
		ConnectivityMode: types.ConnectivityWifi,
		UptimeSeconds:    600,
	}
	if err := heartbeats.SaveSummary(ctx, nil, existing); err != nil {
		t.Fatalf("save summary: %v", err)
	}

	for i := 0; i < 5; i++ {
		appendRawEvent(t, heartbeats, "dev-1", base.Add(time.Duration(i)*time.Minute), latencyInput(200, types.ConnectivityWifi, types.AgentStatusOK))
	}

	if _, err := svc.Compact(ctx, 24); err != nil {
		t.Fatalf("compact failed: %v", err)
	}

	summary, err := heartbeats.GetSummary(ctx, nil, "dev-1", base)
	if err != nil || summary == nil {
		t.Fatalf("expected merged summary, err=%v", err)
	}
	if summary.HeartbeatCount != 15 {
		t.Fatalf("expected count 15, got %d", summary.HeartbeatCount)
	}
	// (100*10 + 200*5) / 15 = 133 truncated
	if summary.AvgLatencyMS == nil || *summary.AvgLatencyMS != 133 {
		t.Fatalf("expected weighted avg 133, got %v", summary.AvgLatencyMS)
	}
}

func TestPluralityConnectivityTieBreaksOnFirstSeen(t *testing.T) {
	received := time.Now().UTC().Add(-30 * time.Hour).Truncate(time.Hour)

	var events []types.DeviceHeartbeatEvent
	for i, mode := range []string{types.ConnectivityLTE, types.ConnectivityWifi, types.ConnectivityWifi, types.ConnectivityLTE} {
		payload, _ := json.Marshal(latencyInput(50, mode, types.AgentStatusOK))
		events = append(events, types.DeviceHeartbeatEvent{
			DeviceID:         "dev-1",
			RawPayload:       payload,
			ServerReceivedAt: received.Add(time.Duration(i) * time.Minute),
		})
	}

	batches := groupEvents(events)
	if len(batches) != 1 {
		t.Fatalf("expected one bucket, got %d", len(batches))
	}
	for _, batch := range batches {
		if got := batch.pluralityConnectivity(); got != types.ConnectivityLTE {
			t.Fatalf("tie must break to first seen lte, got %s", got)
		}
	}
}

func TestCompactDetectsReboots(t *testing.T) {
	svc, heartbeats := newCompactorFixture(t, TriggerFunc(func(time.Time) bool { return true }))
	ctx := context.Background()

	base := time.Now().UTC().Add(-30 * time.Hour).Truncate(time.Hour)
	boot1 := base.Add(-12 * time.Hour)
	boot2 := base.Add(-1 * time.Minute)

	first := latencyInput(50, types.ConnectivityWifi, types.AgentStatusOK)
	first.BootTime = &boot1
	second := latencyInput(50, types.ConnectivityWifi, types.AgentStatusOK)
	second.BootTime = &boot2

	appendRawEvent(t, heartbeats, "dev-1", base.Add(1*time.Minute), first)
	appendRawEvent(t, heartbeats, "dev-1", base.Add(2*time.Minute), second)

	if _, err := svc.Compact(ctx, 24); err != nil {
		t.Fatalf("compact failed: %v", err)
	}
	summary, err := heartbeats.GetSummary(ctx, nil, "dev-1", base)
	if err != nil || summary == nil {
		t.Fatalf("expected summary, err=%v", err)
	}
	if summary.RebootCount != 1 {
		t.Fatalf("expected 1 reboot, got %d", summary.RebootCount)
	}
}

func TestCleanupDeletesOldEventsRegardlessOfCompaction(t *testing.T) {
	svc, heartbeats := newCompactorFixture(t, TriggerFunc(func(time.Time) bool { return true }))
	ctx := context.Background()

	old := time.Now().UTC().Add(-8 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	appendRawEvent(t, heartbeats, "dev-1", old, latencyInput(50, types.ConnectivityWifi, types.AgentStatusOK))
	appendRawEvent(t, heartbeats, "dev-1", recent, latencyInput(50, types.ConnectivityWifi, types.AgentStatusOK))

	deleted, err := svc.Cleanup(ctx, 7)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	remaining, err := heartbeats.ListEventsBefore(ctx, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected the recent event to survive, got %d", len(remaining))
	}
}

func TestMaybeRunRespectsTriggerPolicy(t *testing.T) {
	svc, heartbeats := newCompactorFixture(t, TriggerFunc(func(time.Time) bool { return false }))
	ctx := context.Background()

	old := time.Now().UTC().Add(-30 * time.Hour)
	appendRawEvent(t, heartbeats, "dev-1", old, latencyInput(50, types.ConnectivityWifi, types.AgentStatusOK))

	_, _, ran, err := svc.MaybeRun(ctx)
	if err != nil {
		t.Fatalf("maybe run failed: %v", err)
	}
	if ran {
		t.Fatalf("trigger returned false but the pass ran")
	}

	remaining, err := heartbeats.ListEventsBefore(ctx, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected event untouched, got %d", len(remaining))
	}
}

func TestLatencyStatsTruncatesMean(t *testing.T) {
	min, avg, max := latencyStats([]int{100, 101})
	if *min != 100 || *max != 101 || *avg != 100 {
		t.Fatalf("expected 100/100/101, got %d/%d/%d", *min, *avg, *max)
	}

	min, avg, max = latencyStats(nil)
	if min != nil || avg != nil || max != nil {
		t.Fatalf("expected all nil with no samples")
	}
}
