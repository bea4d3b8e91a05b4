package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoshower-backend/internal/command"
	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/store/storetest"
)

// fakePublisher records dispatched commands.
type fakePublisher struct {
	mu       sync.Mutex
	commands []command.Command
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, cmd command.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return f.err
}

func (f *fakePublisher) sent() []command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Command(nil), f.commands...)
}

type managerFixture struct {
	devices   *storetest.Devices
	sessions  *storetest.Sessions
	users     *storetest.Users
	publisher *fakePublisher
	manager   *Manager
}

func newManagerFixture(t *testing.T, devices []model.Device, users []model.User) *managerFixture {
	t.Helper()
	f := &managerFixture{
		devices:   storetest.NewDevices(devices...),
		sessions:  storetest.NewSessions(),
		users:     storetest.NewUsers(users...),
		publisher: &fakePublisher{},
	}
	f.manager = NewManager(f.devices, f.sessions, f.users, NewResolver(f.sessions), f.publisher)
	return f
}

func testDevice() model.Device {
	return model.Device{
		ID:         "dev-1",
		UserID:     "user-1",
		Name:       "Bathroom Heater",
		Status:     model.DeviceStatusReady,
		TargetTemp: decimal.NewFromInt(38),
	}
}

func TestStartCreatesActiveSession(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	target := decimal.NewFromInt(42)
	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
		TargetTemp:    &target,
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, model.SessionStatusActive, session.Status)
	assert.True(t, session.TargetTemp.Equal(target))
	assert.Equal(t, 10, session.PlannedDuration)

	stored, ok := f.sessions.Current(session.ID)
	require.True(t, ok)
	assert.Equal(t, "user-1", stored.UserID)

	device := f.devices.Current("dev-1")
	assert.Equal(t, model.DeviceStatusHeating, device.Status)
	assert.True(t, device.TargetTemp.Equal(target))

	assert.Equal(t, []command.Command{command.StartHeating}, f.publisher.sent())
}

func TestStartRejectsOutOfRangeTarget(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	for _, v := range []int64{29, 46} {
		target := decimal.NewFromInt(v)
		_, err := f.manager.Start(context.Background(), StartParams{
			DeviceID:      "dev-1",
			RequesterID:   "user-1",
			RequesterRole: model.RoleUser,
			TargetTemp:    &target,
		})
		assert.ErrorIs(t, err, errs.ErrValidation)
	}
	assert.Empty(t, f.publisher.sent())
}

func TestStartRejectsSecondActiveSession(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	_, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	_, err = f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestStartAuthorization(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	_, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "intruder",
		RequesterRole: model.RoleUser,
	})
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	// Admins bypass ownership.
	_, err = f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "admin-1",
		RequesterRole: model.RoleAdmin,
	})
	assert.NoError(t, err)
}

func TestStartDeviceNotFound(t *testing.T) {
	f := newManagerFixture(t, nil, nil)

	_, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "ghost",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStopWithClientElapsed(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	// 300 s at 0.8 L/s is 240 L; at the default 0.008 per liter that is
	// 1.92 saved.
	elapsed := decimal.NewFromInt(300)
	result, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:             "dev-1",
		RequesterID:          "user-1",
		RequesterRole:        model.RoleUser,
		SessionID:            session.ID,
		ClientElapsedSeconds: &elapsed,
	})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, "240", result.WaterUsed.String())
	assert.Equal(t, "1.92", result.MoneySaved.String())
	assert.Equal(t, "300", result.Duration.String())

	stored, ok := f.sessions.Current(session.ID)
	require.True(t, ok)
	assert.Equal(t, model.SessionStatusCompleted, stored.Status)
	require.NotNil(t, stored.EndTime)

	device := f.devices.Current("dev-1")
	assert.Equal(t, model.DeviceStatusReady, device.Status)
	assert.Equal(t, "240", device.TotalWaterSaved.String())
	assert.Equal(t, int64(1), device.TotalSessions)

	assert.Equal(t, []command.Command{command.StartHeating, command.StopHeating}, f.publisher.sent())
}

func TestStopUsesConfiguredPrice(t *testing.T) {
	owner := model.User{
		ID:     "user-1",
		System: model.SystemPrefs{WaterPricePerLiter: decimal.RequireFromString("0.01")},
	}
	f := newManagerFixture(t, []model.Device{testDevice()}, []model.User{owner})

	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	elapsed := decimal.NewFromInt(100)
	result, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:             "dev-1",
		RequesterID:          "user-1",
		RequesterRole:        model.RoleUser,
		SessionID:            session.ID,
		ClientElapsedSeconds: &elapsed,
	})
	require.NoError(t, err)
	assert.Equal(t, "80", result.WaterUsed.String())
	assert.Equal(t, "0.8", result.MoneySaved.String())
}

func TestStopClampsNegativeClientElapsed(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	elapsed := decimal.NewFromInt(-120)
	result, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:             "dev-1",
		RequesterID:          "user-1",
		RequesterRole:        model.RoleUser,
		SessionID:            session.ID,
		ClientElapsedSeconds: &elapsed,
	})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.True(t, result.Duration.IsZero())
	assert.True(t, result.WaterUsed.IsZero())
	assert.True(t, result.MoneySaved.IsZero())

	device := f.devices.Current("dev-1")
	assert.True(t, device.TotalWaterSaved.IsZero())
	assert.Equal(t, int64(1), device.TotalSessions)
}

func TestStopServerClockFallback(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f.manager.now = func() time.Time { return start }
	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	f.manager.now = func() time.Time { return start.Add(50 * time.Second) }
	result, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
		SessionID:     session.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "50", result.Duration.String())
	assert.Equal(t, "40", result.WaterUsed.String())
}

func TestStopWithoutActiveSessionIsNoop(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	result, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)
	assert.False(t, result.Stopped)
	assert.True(t, result.WaterUsed.IsZero())

	// The heater is still told to stop.
	assert.Equal(t, []command.Command{command.StopHeating}, f.publisher.sent())

	device := f.devices.Current("dev-1")
	assert.Equal(t, int64(0), device.TotalSessions)
}

func TestStopTwiceSecondIsNoop(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	elapsed := decimal.NewFromInt(60)
	first, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:             "dev-1",
		RequesterID:          "user-1",
		RequesterRole:        model.RoleUser,
		SessionID:            session.ID,
		ClientElapsedSeconds: &elapsed,
	})
	require.NoError(t, err)
	require.True(t, first.Stopped)

	second, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:             "dev-1",
		RequesterID:          "user-1",
		RequesterRole:        model.RoleUser,
		SessionID:            session.ID,
		ClientElapsedSeconds: &elapsed,
	})
	require.NoError(t, err)
	assert.False(t, second.Stopped)

	// Totals were rolled up exactly once.
	device := f.devices.Current("dev-1")
	assert.Equal(t, int64(1), device.TotalSessions)
	assert.Equal(t, "48", device.TotalWaterSaved.String())
}

func TestDeleteDecrementsTotals(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	elapsed := decimal.NewFromInt(100)
	_, err = f.manager.Stop(context.Background(), StopParams{
		DeviceID:             "dev-1",
		RequesterID:          "user-1",
		RequesterRole:        model.RoleUser,
		SessionID:            session.ID,
		ClientElapsedSeconds: &elapsed,
	})
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete(context.Background(), session.ID, "user-1", model.RoleUser))

	_, ok := f.sessions.Current(session.ID)
	assert.False(t, ok)

	device := f.devices.Current("dev-1")
	assert.True(t, device.TotalWaterSaved.IsZero(), "got %s", device.TotalWaterSaved)
	assert.Equal(t, int64(0), device.TotalSessions)
}

func TestDeleteCanDriveCountersNegative(t *testing.T) {
	device := testDevice()
	f := newManagerFixture(t, []model.Device{device}, nil)

	// A session recorded against zeroed counters, e.g. after the device
	// record was recreated.
	orphan := model.Session{
		ID:        "s-orphan",
		DeviceID:  "dev-1",
		UserID:    "user-1",
		Status:    model.SessionStatusCompleted,
		StartTime: time.Now().Add(-time.Hour),
		WaterUsed: decimal.NewFromInt(30),
	}
	require.NoError(t, f.sessions.Put(context.Background(), &orphan))

	require.NoError(t, f.manager.Delete(context.Background(), "s-orphan", "user-1", model.RoleUser))

	got := f.devices.Current("dev-1")
	assert.Equal(t, "-30", got.TotalWaterSaved.String())
	assert.Equal(t, int64(-1), got.TotalSessions)
}

func TestDeleteAuthorization(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	session := model.Session{
		ID:        "s-1",
		DeviceID:  "dev-1",
		UserID:    "user-1",
		Status:    model.SessionStatusCompleted,
		StartTime: time.Now(),
	}
	require.NoError(t, f.sessions.Put(context.Background(), &session))

	err := f.manager.Delete(context.Background(), "s-1", "intruder", model.RoleUser)
	assert.ErrorIs(t, err, errs.ErrAccessDenied)

	assert.NoError(t, f.manager.Delete(context.Background(), "s-1", "admin-1", model.RoleAdmin))
}

func TestDeleteOwnershipViaDevice(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)

	// Legacy record without a user id; ownership resolves through the
	// device.
	session := model.Session{
		ID:        "s-legacy",
		DeviceID:  "dev-1",
		Status:    model.SessionStatusCompleted,
		StartTime: time.Now(),
	}
	require.NoError(t, f.sessions.Put(context.Background(), &session))

	assert.NoError(t, f.manager.Delete(context.Background(), "s-legacy", "user-1", model.RoleUser))
}

func TestDeleteUnverifiableOwnership(t *testing.T) {
	f := newManagerFixture(t, nil, nil)

	session := model.Session{
		ID:        "s-floating",
		DeviceID:  "dev-gone",
		Status:    model.SessionStatusCompleted,
		StartTime: time.Now(),
	}
	require.NoError(t, f.sessions.Put(context.Background(), &session))

	err := f.manager.Delete(context.Background(), "s-floating", "user-1", model.RoleUser)
	assert.ErrorIs(t, err, errs.ErrAccessDenied)
}

func TestDeleteNotFound(t *testing.T) {
	f := newManagerFixture(t, nil, nil)

	err := f.manager.Delete(context.Background(), "missing", "user-1", model.RoleUser)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCommandFailureDoesNotFailStop(t *testing.T) {
	f := newManagerFixture(t, []model.Device{testDevice()}, nil)
	session, err := f.manager.Start(context.Background(), StartParams{
		DeviceID:      "dev-1",
		RequesterID:   "user-1",
		RequesterRole: model.RoleUser,
	})
	require.NoError(t, err)

	f.publisher.err = errors.New("broker down")
	elapsed := decimal.NewFromInt(10)
	result, err := f.manager.Stop(context.Background(), StopParams{
		DeviceID:             "dev-1",
		RequesterID:          "user-1",
		RequesterRole:        model.RoleUser,
		SessionID:            session.ID,
		ClientElapsedSeconds: &elapsed,
	})
	require.NoError(t, err)
	assert.True(t, result.Stopped)
}
