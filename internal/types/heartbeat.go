package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Connectivity modes reported by devices.
const (
	ConnectivityWifi    = "wifi"
	ConnectivityLTE     = "lte"
	ConnectivityOffline = "offline"
)

// Agent status tags reported by devices.
const (
	AgentStatusOK       = "ok"
	AgentStatusDegraded = "degraded"
	AgentStatusCrashed  = "crashed"
)

// Health classification computed from a latest-heartbeat row.
const (
	DeviceHealthHealthy  = "healthy"
	DeviceHealthDegraded = "degraded"
	DeviceHealthDead     = "dead"
)

// DeviceLatestHeartbeat holds the most recent heartbeat per device,
// overwritten in place on every report. No history lives here; the raw
// event log is the historical record until compaction folds it away.
type DeviceLatestHeartbeat struct {
	DeviceID         string     `gorm:"primaryKey;column:device_id" json:"device_id"`
	AgentVersion     string     `gorm:"not null" json:"agent_version"`
	Connectivity     string     `gorm:"not null" json:"connectivity"`
	SignalRSSI       *int       `gorm:"column:signal_rssi" json:"signal_rssi,omitempty"`
	LatencyMS        *int       `gorm:"column:latency_ms" json:"latency_ms,omitempty"`
	AgentStatus      string     `gorm:"not null" json:"agent_status"`
	LastSessionAt    *time.Time `json:"last_session_at,omitempty"`
	BootTime         *time.Time `json:"boot_time,omitempty"`
	ServerReceivedAt time.Time  `gorm:"not null" json:"server_received_at"`
}

func (DeviceLatestHeartbeat) TableName() string {
	return "device_latest_heartbeat"
}

// DeviceHeartbeatEvent is the append-only raw heartbeat log, the compaction
// source of truth. Rows are deleted once folded into an hourly summary and
// past retention.
type DeviceHeartbeatEvent struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DeviceID         string         `gorm:"not null;index:idx_heartbeat_events_device_ts,priority:1" json:"device_id"`
	RawPayload       datatypes.JSON `gorm:"not null" json:"raw_payload"`
	ServerReceivedAt time.Time      `gorm:"not null;index:idx_heartbeat_events_device_ts,priority:2,sort:desc" json:"server_received_at"`
}

func (DeviceHeartbeatEvent) TableName() string {
	return "device_heartbeat_events"
}

// DeviceHeartbeatSummary is one lossy hourly aggregate per (device, UTC
// hour). Mutable: later compaction passes merge further raw events into an
// existing bucket with count-weighted latency averaging.
type DeviceHeartbeatSummary struct {
	DeviceID                 string    `gorm:"primaryKey;column:device_id" json:"device_id"`
	HourBucket               time.Time `gorm:"primaryKey;column:hour_bucket;index:idx_heartbeat_summaries_device_hour,priority:2,sort:desc" json:"hour_bucket"`
	HeartbeatCount           int       `gorm:"not null" json:"heartbeat_count"`
	AvgLatencyMS             *int      `gorm:"column:avg_latency_ms" json:"avg_latency_ms,omitempty"`
	MinLatencyMS             *int      `gorm:"column:min_latency_ms" json:"min_latency_ms,omitempty"`
	MaxLatencyMS             *int      `gorm:"column:max_latency_ms" json:"max_latency_ms,omitempty"`
	ConnectivityMode         string    `gorm:"type:varchar(20);not null" json:"connectivity_mode"`
	AgentStatusOKCount       int       `gorm:"not null;default:0;column:agent_status_ok_count" json:"agent_status_ok_count"`
	AgentStatusDegradedCount int       `gorm:"not null;default:0" json:"agent_status_degraded_count"`
	UptimeSeconds            int       `gorm:"not null;default:0" json:"uptime_seconds"`
	RebootCount              int       `gorm:"not null;default:0" json:"reboot_count"`
	CreatedAt                time.Time `gorm:"not null" json:"created_at"`
}

func (DeviceHeartbeatSummary) TableName() string {
	return "device_heartbeat_summaries"
}
