package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/types"
)

// DeviceUptimeRow aggregates hourly summaries per device for the admin
// uptime endpoint.
type DeviceUptimeRow struct {
	DeviceID     string `gorm:"column:device_id"`
	TotalUptime  int    `gorm:"column:total_uptime"`
	TotalReboots int    `gorm:"column:total_reboots"`
	HoursTracked int    `gorm:"column:hours_tracked"`
}

type HeartbeatRepo interface {
	UpsertLatest(ctx context.Context, tx *gorm.DB, hb *types.DeviceLatestHeartbeat) error
	AppendEvent(ctx context.Context, tx *gorm.DB, event *types.DeviceHeartbeatEvent) error
	ListLatest(ctx context.Context, tx *gorm.DB) ([]types.DeviceLatestHeartbeat, error)

	// ListEventsBefore returns raw events older than cutoff, ordered by
	// (server_received_at, id) so grouping and plurality tie-breaks are
	// reproducible across runs.
	ListEventsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]types.DeviceHeartbeatEvent, error)
	DeleteEventsByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error)
	DeleteEventsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

	GetSummary(ctx context.Context, tx *gorm.DB, deviceID string, hourBucket time.Time) (*types.DeviceHeartbeatSummary, error)
	SaveSummary(ctx context.Context, tx *gorm.DB, summary *types.DeviceHeartbeatSummary) error
	UptimeStatsSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]DeviceUptimeRow, error)
}

type heartbeatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHeartbeatRepo(db *gorm.DB, baseLog *logger.Logger) HeartbeatRepo {
	return &heartbeatRepo{db: db, log: baseLog.With("repo", "HeartbeatRepo")}
}

func (r *heartbeatRepo) UpsertLatest(ctx context.Context, tx *gorm.DB, hb *types.DeviceLatestHeartbeat) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			UpdateAll: true,
		}).
		Create(hb).Error
}

func (r *heartbeatRepo) AppendEvent(ctx context.Context, tx *gorm.DB, event *types.DeviceHeartbeatEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(event).Error
}

func (r *heartbeatRepo) ListLatest(ctx context.Context, tx *gorm.DB) ([]types.DeviceLatestHeartbeat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []types.DeviceLatestHeartbeat
	if err := transaction.WithContext(ctx).
		Order("server_received_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *heartbeatRepo) ListEventsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]types.DeviceHeartbeatEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []types.DeviceHeartbeatEvent
	if err := transaction.WithContext(ctx).
		Where("server_received_at < ?", cutoff).
		Order("server_received_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *heartbeatRepo) DeleteEventsByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.DeviceHeartbeatEvent{})
	return res.RowsAffected, res.Error
}

func (r *heartbeatRepo) DeleteEventsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("server_received_at < ?", cutoff).
		Delete(&types.DeviceHeartbeatEvent{})
	return res.RowsAffected, res.Error
}

func (r *heartbeatRepo) GetSummary(ctx context.Context, tx *gorm.DB, deviceID string, hourBucket time.Time) (*types.DeviceHeartbeatSummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var summary types.DeviceHeartbeatSummary
	err := transaction.WithContext(ctx).
		Where("device_id = ? AND hour_bucket = ?", deviceID, hourBucket).
		Limit(1).
		Find(&summary).Error
	if err != nil {
		return nil, err
	}
	if summary.DeviceID == "" {
		return nil, nil
	}
	return &summary, nil
}

func (r *heartbeatRepo) SaveSummary(ctx context.Context, tx *gorm.DB, summary *types.DeviceHeartbeatSummary) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "hour_bucket"}},
			UpdateAll: true,
		}).
		Create(summary).Error
}

func (r *heartbeatRepo) UptimeStatsSince(ctx context.Context, tx *gorm.DB, since time.Time) ([]DeviceUptimeRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []DeviceUptimeRow
	err := transaction.WithContext(ctx).
		Model(&types.DeviceHeartbeatSummary{}).
		Select(
			"device_id, " +
				"COALESCE(SUM(uptime_seconds), 0) AS total_uptime, " +
				"COALESCE(SUM(reboot_count), 0) AS total_reboots, " +
				"COUNT(hour_bucket) AS hours_tracked",
		).
		Where("hour_bucket >= ?", since).
		Group("device_id").
		Order("device_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
