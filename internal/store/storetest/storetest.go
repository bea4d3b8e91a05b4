// Package storetest provides in-memory implementations of the store
// interfaces for core-logic tests, with per-method error injection so
// fallback paths can be exercised.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/model"
)

// Devices is an in-memory DeviceStore.
type Devices struct {
	mu    sync.Mutex
	items map[string]model.Device

	GetErr       error
	UpdateErr    error
	AddTotalsErr error
}

// NewDevices creates a Devices fake seeded with the given records.
func NewDevices(seed ...model.Device) *Devices {
	d := &Devices{items: make(map[string]model.Device)}
	for _, device := range seed {
		d.items[device.ID] = device
	}
	return d
}

func (d *Devices) Get(_ context.Context, id string) (*model.Device, error) {
	if d.GetErr != nil {
		return nil, d.GetErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	device, ok := d.items[id]
	if !ok {
		return nil, errs.NotFoundf("device %s", id)
	}
	return &device, nil
}

func (d *Devices) Put(_ context.Context, device *model.Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[device.ID] = *device
	return nil
}

func (d *Devices) Update(_ context.Context, id string, fields map[string]any) error {
	if d.UpdateErr != nil {
		return d.UpdateErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	device, ok := d.items[id]
	if !ok {
		return nil
	}
	for key, value := range fields {
		switch key {
		case "status":
			device.Status = value.(string)
		case "name":
			device.Name = value.(string)
		case "target_temp":
			device.TargetTemp = value.(decimal.Decimal)
		case "current_temp":
			device.CurrentTemp = value.(decimal.Decimal)
		case "last_seen":
			seen := value.(time.Time)
			device.LastSeen = &seen
		}
	}
	d.items[id] = device
	return nil
}

func (d *Devices) ListByOwner(_ context.Context, userID string) ([]model.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Device
	for _, device := range d.items {
		if device.UserID == userID {
			out = append(out, device)
		}
	}
	return out, nil
}

func (d *Devices) ListAll(_ context.Context) ([]model.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Device, 0, len(d.items))
	for _, device := range d.items {
		out = append(out, device)
	}
	return out, nil
}

func (d *Devices) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, id)
	return nil
}

func (d *Devices) AddTotals(_ context.Context, id string, water decimal.Decimal, sessions int64) error {
	if d.AddTotalsErr != nil {
		return d.AddTotalsErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	device, ok := d.items[id]
	if !ok {
		return nil
	}
	device.TotalWaterSaved = device.TotalWaterSaved.Add(water)
	device.TotalSessions += sessions
	d.items[id] = device
	return nil
}

// Current returns a snapshot of a stored device for assertions.
func (d *Devices) Current(id string) model.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.items[id]
}

// Sessions is an in-memory SessionStore.
type Sessions struct {
	mu    sync.Mutex
	items map[string]model.Session

	GetErr    error
	PutErr    error
	UpdateErr error
	DeleteErr error
	ActiveErr error
	ScanErr   error
}

// NewSessions creates a Sessions fake seeded with the given records.
func NewSessions(seed ...model.Session) *Sessions {
	s := &Sessions{items: make(map[string]model.Session)}
	for _, session := range seed {
		s.items[session.ID] = session
	}
	return s
}

func (s *Sessions) Get(_ context.Context, id string) (*model.Session, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	if !ok {
		return nil, errs.NotFoundf("session %s", id)
	}
	return &session, nil
}

func (s *Sessions) Put(_ context.Context, session *model.Session) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[session.ID] = *session
	return nil
}

func (s *Sessions) Update(_ context.Context, id string, fields map[string]any) error {
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	if !ok {
		return nil
	}
	for key, value := range fields {
		switch key {
		case "status":
			session.Status = value.(string)
		case "end_time":
			end := value.(time.Time)
			session.EndTime = &end
		case "water_used":
			session.WaterUsed = value.(decimal.Decimal)
		case "money_saved":
			session.MoneySaved = value.(decimal.Decimal)
		case "duration":
			session.Duration = value.(decimal.Decimal)
		}
	}
	s.items[id] = session
	return nil
}

func (s *Sessions) Delete(_ context.Context, id string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Sessions) ActiveByDevice(_ context.Context, deviceID string, limit int) ([]model.Session, error) {
	if s.ActiveErr != nil {
		return nil, s.ActiveErr
	}
	active := s.activeFor(deviceID)
	sort.Slice(active, func(i, j int) bool {
		return active[i].StartTime.After(active[j].StartTime)
	})
	if len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (s *Sessions) ScanActiveByDevice(_ context.Context, deviceID string) ([]model.Session, error) {
	if s.ScanErr != nil {
		return nil, s.ScanErr
	}
	return s.activeFor(deviceID), nil
}

func (s *Sessions) ListByDevice(_ context.Context, deviceID string) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, session := range s.items {
		if session.DeviceID == deviceID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *Sessions) ListAll(_ context.Context) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Session, 0, len(s.items))
	for _, session := range s.items {
		out = append(out, session)
	}
	return out, nil
}

func (s *Sessions) activeFor(deviceID string) []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, session := range s.items {
		if session.DeviceID == deviceID && session.Status == model.SessionStatusActive {
			out = append(out, session)
		}
	}
	return out
}

// Current returns a snapshot of a stored session for assertions.
func (s *Sessions) Current(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	return session, ok
}

// Telemetry is an in-memory TelemetryStore.
type Telemetry struct {
	mu       sync.Mutex
	Readings []model.TelemetryReading

	AppendErr error
}

// NewTelemetry creates an empty Telemetry fake.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

func (t *Telemetry) Append(_ context.Context, reading *model.TelemetryReading) error {
	if t.AppendErr != nil {
		return t.AppendErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Readings = append(t.Readings, *reading)
	return nil
}

func (t *Telemetry) RecentByDevice(_ context.Context, deviceID string, since time.Time, limit int) ([]model.TelemetryReading, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.TelemetryReading
	for i := len(t.Readings) - 1; i >= 0 && len(out) < limit; i-- {
		r := t.Readings[i]
		if r.DeviceID == deviceID && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Users is an in-memory UserStore.
type Users struct {
	mu    sync.Mutex
	items map[string]model.User

	GetErr error
}

// NewUsers creates a Users fake seeded with the given records.
func NewUsers(seed ...model.User) *Users {
	u := &Users{items: make(map[string]model.User)}
	for _, user := range seed {
		u.items[user.ID] = user
	}
	return u
}

func (u *Users) Get(_ context.Context, id string) (*model.User, error) {
	if u.GetErr != nil {
		return nil, u.GetErr
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.items[id]
	if !ok {
		return nil, errs.NotFoundf("user %s", id)
	}
	return &user, nil
}

func (u *Users) Put(_ context.Context, user *model.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.items[user.ID] = *user
	return nil
}

func (u *Users) Update(_ context.Context, id string, fields map[string]any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.items[id]
	if !ok {
		return nil
	}
	for key, value := range fields {
		switch key {
		case "name":
			user.Name = value.(string)
		case "role":
			user.Role = value.(string)
		case "notification_channel":
			user.NotificationChannel = value.(string)
		}
	}
	u.items[id] = user
	return nil
}

func (u *Users) Delete(_ context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.items, id)
	return nil
}

func (u *Users) ListAll(_ context.Context) ([]model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]model.User, 0, len(u.items))
	for _, user := range u.items {
		out = append(out, user)
	}
	return out, nil
}
