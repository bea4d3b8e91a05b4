package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ecoshower-backend/internal/model"
)

// DeviceStore defines device record operations. AddTotals must be an atomic
// increment at the storage layer; scalar updates are last-write-wins.
type DeviceStore interface {
	Get(ctx context.Context, id string) (*model.Device, error)
	Put(ctx context.Context, device *model.Device) error
	Update(ctx context.Context, id string, fields map[string]any) error
	ListByOwner(ctx context.Context, userID string) ([]model.Device, error)
	ListAll(ctx context.Context) ([]model.Device, error)
	Delete(ctx context.Context, id string) error
	AddTotals(ctx context.Context, id string, water decimal.Decimal, sessions int64) error
}

// SessionStore defines session record operations. ActiveByDevice is the
// indexed recency-ordered lookup; ScanActiveByDevice is the unordered
// consistency backstop. Delete is idempotent.
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Put(ctx context.Context, session *model.Session) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	ActiveByDevice(ctx context.Context, deviceID string, limit int) ([]model.Session, error)
	ScanActiveByDevice(ctx context.Context, deviceID string) ([]model.Session, error)
	ListByDevice(ctx context.Context, deviceID string) ([]model.Session, error)
	ListAll(ctx context.Context) ([]model.Session, error)
}

// TelemetryStore defines the append-only telemetry log.
type TelemetryStore interface {
	Append(ctx context.Context, reading *model.TelemetryReading) error
	RecentByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.TelemetryReading, error)
}

// UserStore defines user record operations.
type UserStore interface {
	Get(ctx context.Context, id string) (*model.User, error)
	Put(ctx context.Context, user *model.User) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]model.User, error)
}

// Store bundles the per-entity stores over a shared gorm connection.
type Store struct {
	Devices   DeviceStore
	Sessions  SessionStore
	Telemetry TelemetryStore
	Users     UserStore

	db *gorm.DB
}

// NewGormStore creates the GORM-backed store bundle.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Devices:   &gormDeviceStore{db: db},
		Sessions:  &gormSessionStore{db: db},
		Telemetry: &gormTelemetryStore{db: db},
		Users:     &gormUserStore{db: db},
		db:        db,
	}
}

// DB exposes the underlying connection for glue-layer aggregation queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}
