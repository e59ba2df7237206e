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

// DeviceUserRow is the admin aggregation of sessions per user on a device.
type DeviceUserRow struct {
	ExternalID    string    `gorm:"column:external_id"`
	LastSessionAt time.Time `gorm:"column:last_session_at"`
	SessionCount  int       `gorm:"column:session_count"`
}

type SessionRepo interface {
	// InsertIgnoreDuplicate inserts the session keyed by its client-supplied
	// session_id. applied=false means a row with that id already existed;
	// this is the sole de-duplication mechanism and is race-safe.
	InsertIgnoreDuplicate(ctx context.Context, tx *gorm.DB, session *types.Session) (applied bool, err error)
	ListForUserSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]types.Session, error)
	ListDeviceUsers(ctx context.Context, tx *gorm.DB, deviceID string) ([]DeviceUserRow, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) InsertIgnoreDuplicate(ctx context.Context, tx *gorm.DB, session *types.Session) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(session)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepo) ListForUserSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]types.Session, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []types.Session
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND started_at >= ?", userID, since).
		Order("started_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) ListDeviceUsers(ctx context.Context, tx *gorm.DB, deviceID string) ([]DeviceUserRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []DeviceUserRow
	err := transaction.WithContext(ctx).
		Model(&types.Session{}).
		Select(
			"users.external_id AS external_id, " +
				"MAX(sessions.started_at) AS last_session_at, " +
				"COUNT(sessions.id) AS session_count",
		).
		Joins("JOIN users ON users.id = sessions.user_id").
		Where("sessions.device_id = ?", deviceID).
		Group("users.external_id").
		Order("last_session_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
