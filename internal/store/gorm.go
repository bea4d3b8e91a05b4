package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/model"
)

// gormDeviceStore implements DeviceStore using GORM.
type gormDeviceStore struct {
	db *gorm.DB
}

func (s *gormDeviceStore) Get(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	if err := s.db.WithContext(ctx).First(&device, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFoundf("device %s", id)
		}
		return nil, errs.Downstreamf("get device %s: %v", id, err)
	}
	return &device, nil
}

func (s *gormDeviceStore) Put(ctx context.Context, device *model.Device) error {
	if err := s.db.WithContext(ctx).Save(device).Error; err != nil {
		return errs.Downstreamf("put device %s: %v", device.ID, err)
	}
	return nil
}

func (s *gormDeviceStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := s.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return errs.Downstreamf("update device %s: %v", id, err)
	}
	return nil
}

func (s *gormDeviceStore) ListByOwner(ctx context.Context, userID string) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return nil, errs.Downstreamf("list devices for user %s: %v", userID, err)
	}
	return devices, nil
}

func (s *gormDeviceStore) ListAll(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Find(&devices).Error; err != nil {
		return nil, errs.Downstreamf("list devices: %v", err)
	}
	return devices, nil
}

// Delete removes a device by id. Deleting an absent device is a no-op so
// cascade retries stay safe.
func (s *gormDeviceStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Device{}, "id = ?", id).Error; err != nil {
		return errs.Downstreamf("delete device %s: %v", id, err)
	}
	return nil
}

// AddTotals applies an atomic relative update to the savings counters.
// Deltas may be negative and may drive the stored totals negative.
func (s *gormDeviceStore) AddTotals(ctx context.Context, id string, water decimal.Decimal, sessions int64) error {
	err := s.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", id).Updates(map[string]any{
		"total_water_saved": gorm.Expr("total_water_saved + ?", water),
		"total_sessions":    gorm.Expr("total_sessions + ?", sessions),
	}).Error
	if err != nil {
		return errs.Downstreamf("add totals for device %s: %v", id, err)
	}
	return nil
}

// gormSessionStore implements SessionStore using GORM.
type gormSessionStore struct {
	db *gorm.DB
}

func (s *gormSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFoundf("session %s", id)
		}
		return nil, errs.Downstreamf("get session %s: %v", id, err)
	}
	return &session, nil
}

func (s *gormSessionStore) Put(ctx context.Context, session *model.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return errs.Downstreamf("put session %s: %v", session.ID, err)
	}
	return nil
}

func (s *gormSessionStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := s.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return errs.Downstreamf("update session %s: %v", id, err)
	}
	return nil
}

func (s *gormSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Session{}, "id = ?", id).Error; err != nil {
		return errs.Downstreamf("delete session %s: %v", id, err)
	}
	return nil
}

// ActiveByDevice returns active sessions for a device ordered most recent
// first, capped at limit. This rides the (device_id, start_time) index.
func (s *gormSessionStore) ActiveByDevice(ctx context.Context, deviceID string, limit int) ([]model.Session, error) {
	var sessions []model.Session
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND status = ?", deviceID, model.SessionStatusActive).
		Order("start_time DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, errs.Downstreamf("query active sessions for device %s: %v", deviceID, err)
	}
	return sessions, nil
}

// ScanActiveByDevice is the unordered, uncapped backstop lookup.
func (s *gormSessionStore) ScanActiveByDevice(ctx context.Context, deviceID string) ([]model.Session, error) {
	var sessions []model.Session
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND status = ?", deviceID, model.SessionStatusActive).
		Find(&sessions).Error
	if err != nil {
		return nil, errs.Downstreamf("scan active sessions for device %s: %v", deviceID, err)
	}
	return sessions, nil
}

func (s *gormSessionStore) ListByDevice(ctx context.Context, deviceID string) ([]model.Session, error) {
	var sessions []model.Session
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("start_time DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, errs.Downstreamf("list sessions for device %s: %v", deviceID, err)
	}
	return sessions, nil
}

func (s *gormSessionStore) ListAll(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := s.db.WithContext(ctx).Find(&sessions).Error; err != nil {
		return nil, errs.Downstreamf("list sessions: %v", err)
	}
	return sessions, nil
}

// gormTelemetryStore implements TelemetryStore using GORM.
type gormTelemetryStore struct {
	db *gorm.DB
}

func (s *gormTelemetryStore) Append(ctx context.Context, reading *model.TelemetryReading) error {
	if err := s.db.WithContext(ctx).Create(reading).Error; err != nil {
		return errs.Downstreamf("append telemetry for device %s: %v", reading.DeviceID, err)
	}
	return nil
}

func (s *gormTelemetryStore) RecentByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]model.TelemetryReading, error) {
	var readings []model.TelemetryReading
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND timestamp >= ?", deviceID, since).
		Order("timestamp DESC").
		Limit(limit).
		Find(&readings).Error
	if err != nil {
		return nil, errs.Downstreamf("recent telemetry for device %s: %v", deviceID, err)
	}
	return readings, nil
}

// gormUserStore implements UserStore using GORM.
type gormUserStore struct {
	db *gorm.DB
}

func (s *gormUserStore) Get(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFoundf("user %s", id)
		}
		return nil, errs.Downstreamf("get user %s: %v", id, err)
	}
	return &user, nil
}

func (s *gormUserStore) Put(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return errs.Downstreamf("put user %s: %v", user.ID, err)
	}
	return nil
}

func (s *gormUserStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return errs.Downstreamf("update user %s: %v", id, err)
	}
	return nil
}

func (s *gormUserStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.User{}, "id = ?", id).Error; err != nil {
		return errs.Downstreamf("delete user %s: %v", id, err)
	}
	return nil
}

func (s *gormUserStore) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, errs.Downstreamf("list users: %v", err)
	}
	return users, nil
}
