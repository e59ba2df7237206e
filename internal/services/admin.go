package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coco-family/coco-backend/internal/platform/logger"
	"github.com/coco-family/coco-backend/internal/repos"
	"github.com/coco-family/coco-backend/internal/types"
)

// DeviceUser is one user seen on a device, for the admin listing.
type DeviceUser struct {
	UserExternalID string    `json:"userExternalId"`
	LastSessionAt  time.Time `json:"lastSessionAt"`
	SessionCount   int       `json:"sessionCount"`
}

// DeviceUptimeReport covers one device's trailing 7 days of hourly
// summaries. UptimePct is against the full 604800-second week.
type DeviceUptimeReport struct {
	DeviceID           string  `json:"deviceId"`
	UptimePct          float64 `json:"uptimePct"`
	TotalUptimeSeconds int     `json:"totalUptimeSeconds"`
	TotalReboots       int     `json:"totalReboots"`
	HoursTracked       int     `json:"hoursTracked"`
}

type AdminService interface {
	DeviceUsers(ctx context.Context, deviceID string) ([]DeviceUser, error)
	UptimeReports(ctx context.Context, now time.Time) ([]DeviceUptimeReport, error)
}

type adminService struct {
	db         *gorm.DB
	log        *logger.Logger
	sessions   repos.SessionRepo
	heartbeats repos.HeartbeatRepo
}

func NewAdminService(db *gorm.DB, baseLog *logger.Logger, sessions repos.SessionRepo, heartbeats repos.HeartbeatRepo) AdminService {
	return &adminService{
		db:         db,
		log:        baseLog.With("service", "AdminService"),
		sessions:   sessions,
		heartbeats: heartbeats,
	}
}

func (s *adminService) DeviceUsers(ctx context.Context, deviceID string) ([]DeviceUser, error) {
	rows, err := s.sessions.ListDeviceUsers(ctx, nil, deviceID)
	if err != nil {
		return nil, err
	}
	users := make([]DeviceUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, DeviceUser{
			UserExternalID: row.ExternalID,
			LastSessionAt:  row.LastSessionAt.UTC(),
			SessionCount:   row.SessionCount,
		})
	}
	return users, nil
}

func (s *adminService) UptimeReports(ctx context.Context, now time.Time) ([]DeviceUptimeReport, error) {
	windowSeconds := types.RollupWindowDays * 24 * 3600
	since := now.UTC().Add(-time.Duration(windowSeconds) * time.Second)

	rows, err := s.heartbeats.UptimeStatsSince(ctx, nil, since)
	if err != nil {
		return nil, err
	}

	reports := make([]DeviceUptimeReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, DeviceUptimeReport{
			DeviceID:           row.DeviceID,
			UptimePct:          uptimePct(row.TotalUptime, windowSeconds),
			TotalUptimeSeconds: row.TotalUptime,
			TotalReboots:       row.TotalReboots,
			HoursTracked:       row.HoursTracked,
		})
	}
	return reports, nil
}

// uptimePct renders covered seconds as a percentage of the window, rounded
// half up to two fractional digits.
func uptimePct(uptimeSeconds, windowSeconds int) float64 {
	pct := decimal.NewFromInt(int64(uptimeSeconds)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(windowSeconds)))
	return pct.Round(2).InexactFloat64()
}
