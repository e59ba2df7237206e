package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

// HealthyLatencyMaxMS is the exclusive latency bound below which a live,
// agent-ok device counts as healthy.
const HealthyLatencyMaxMS = 500

// HeartbeatNetwork carries the optional network sub-object of a heartbeat.
type HeartbeatNetwork struct {
	SignalRSSI *int `json:"signal_rssi,omitempty"`
	LatencyMS  *int `json:"latency_ms,omitempty"`
}

// HeartbeatInput is a validated device heartbeat.
type HeartbeatInput struct {
	DeviceID      string           `json:"device_id"`
	AgentVersion  string           `json:"agent_version"`
	Connectivity  string           `json:"connectivity"`
	Network       HeartbeatNetwork `json:"network"`
	AgentStatus   string           `json:"agent_status"`
	LastSessionAt *time.Time       `json:"last_session_at,omitempty"`
	BootTime      *time.Time       `json:"boot_time,omitempty"`
	Timestamp     *time.Time       `json:"timestamp,omitempty"`
}

// DeviceStatus is one fleet-listing entry.
type DeviceStatus struct {
	DeviceID      string     `json:"deviceId"`
	Status        string     `json:"status"`
	LastSeen      time.Time  `json:"lastSeen"`
	Connectivity  string     `json:"connectivity"`
	AgentVersion  string     `json:"agentVersion"`
	SignalRSSI    *int       `json:"signalRssi"`
	LatencyMS     *int       `json:"latencyMs"`
	LastSessionAt *time.Time `json:"lastSessionAt"`
}

type HeartbeatService interface {
	// Record upserts the device's latest-heartbeat row and appends the
	// full payload to the raw event log, atomically.
	Record(ctx context.Context, input HeartbeatInput) (*types.DeviceLatestHeartbeat, error)

	// ListStatuses returns every known device newest-first, classified
	// dead/healthy/degraded against the stale threshold.
	ListStatuses(ctx context.Context, staleMinutes int) ([]DeviceStatus, time.Time, error)
}

type heartbeatService struct {
	db         *gorm.DB
	log        *logger.Logger
	heartbeats repos.HeartbeatRepo
}

func NewHeartbeatService(db *gorm.DB, baseLog *logger.Logger, heartbeats repos.HeartbeatRepo) HeartbeatService {
	return &heartbeatService{
		db:         db,
		log:        baseLog.With("service", "HeartbeatService"),
		heartbeats: heartbeats,
	}
}

func (s *heartbeatService) Record(ctx context.Context, input HeartbeatInput) (*types.DeviceLatestHeartbeat, error) {
	now := time.Now().UTC()

	rawPayload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal heartbeat payload: %w", err)
	}

	latest := &types.DeviceLatestHeartbeat{
		DeviceID:         input.DeviceID,
		AgentVersion:     input.AgentVersion,
		Connectivity:     input.Connectivity,
		SignalRSSI:       input.Network.SignalRSSI,
		LatencyMS:        input.Network.LatencyMS,
		AgentStatus:      input.AgentStatus,
		LastSessionAt:    input.LastSessionAt,
		BootTime:         input.BootTime,
		ServerReceivedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.heartbeats.UpsertLatest(ctx, tx, latest); err != nil {
			return err
		}
		return s.heartbeats.AppendEvent(ctx, tx, &types.DeviceHeartbeatEvent{
			DeviceID:         input.DeviceID,
			RawPayload:       rawPayload,
			ServerReceivedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

func (s *heartbeatService) ListStatuses(ctx context.Context, staleMinutes int) ([]DeviceStatus, time.Time, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(staleMinutes) * time.Minute)

	records, err := s.heartbeats.ListLatest(ctx, nil)
	if err != nil {
		return nil, now, err
	}

	statuses := make([]DeviceStatus, 0, len(records))
	for _, hb := range records {
		statuses = append(statuses, DeviceStatus{
			DeviceID:      hb.DeviceID,
			Status:        ClassifyHeartbeat(hb, cutoff),
			LastSeen:      hb.ServerReceivedAt.UTC(),
			Connectivity:  hb.Connectivity,
			AgentVersion:  hb.AgentVersion,
			SignalRSSI:    hb.SignalRSSI,
			LatencyMS:     hb.LatencyMS,
			LastSessionAt: asUTC(hb.LastSessionAt),
		})
	}
	return statuses, now, nil
}

// ClassifyHeartbeat buckets a latest-heartbeat row into exactly one of
// dead, healthy, or degraded relative to the stale cutoff.
func ClassifyHeartbeat(hb types.DeviceLatestHeartbeat, cutoff time.Time) string {
	if hb.ServerReceivedAt.UTC().Before(cutoff) {
		return types.DeviceHealthDead
	}
	if hb.AgentStatus == types.AgentStatusOK && hb.LatencyMS != nil && *hb.LatencyMS < HealthyLatencyMaxMS {
		return types.DeviceHealthHealthy
	}
	return types.DeviceHealthDegraded
}

func asUTC(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
