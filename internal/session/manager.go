package session

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/command"
	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/store"
)

// StopLitersPerSecond is the metering rate applied when a session is stopped
// manually. It intentionally differs from the telemetry accrual rate; the two
// are kept as separate constants until product settles on one.
var StopLitersPerSecond = decimal.RequireFromString("0.8")

// Target temperature bounds and defaults (°C).
var (
	minTargetTemp     = decimal.NewFromInt(30)
	maxTargetTemp     = decimal.NewFromInt(45)
	defaultTargetTemp = decimal.NewFromInt(38)
)

// defaultPlannedDuration is the planned session length in minutes when the
// caller does not specify one.
const defaultPlannedDuration = 10

// Manager owns the session lifecycle: start, stop and delete, including the
// savings math and device counter bookkeeping.
type Manager struct {
	devices  store.DeviceStore
	sessions store.SessionStore
	users    store.UserStore
	resolver *Resolver
	commands command.Publisher

	now func() time.Time
}

// NewManager creates a Manager.
func NewManager(devices store.DeviceStore, sessions store.SessionStore, users store.UserStore, resolver *Resolver, commands command.Publisher) *Manager {
	return &Manager{
		devices:  devices,
		sessions: sessions,
		users:    users,
		resolver: resolver,
		commands: commands,
		now:      time.Now,
	}
}

// StartParams are the inputs for Start. Nil optionals fall back to the
// device's target temperature and the default planned duration.
type StartParams struct {
	DeviceID        string
	RequesterID     string
	RequesterRole   string
	TargetTemp      *decimal.Decimal
	PlannedDuration *int
}

// Start creates a new active session for the device, marks the device
// heating and dispatches a START_HEATING command.
func (m *Manager) Start(ctx context.Context, p StartParams) (*model.Session, error) {
	device, err := m.devices.Get(ctx, p.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := authorize(device.UserID, p.RequesterID, p.RequesterRole); err != nil {
		return nil, err
	}

	target := device.TargetTemp
	if target.IsZero() {
		target = defaultTargetTemp
	}
	if p.TargetTemp != nil {
		if p.TargetTemp.LessThan(minTargetTemp) || p.TargetTemp.GreaterThan(maxTargetTemp) {
			return nil, errs.Validationf("target temperature must be %s-%s°C, got %s", minTargetTemp, maxTargetTemp, p.TargetTemp)
		}
		target = *p.TargetTemp
	}

	planned := defaultPlannedDuration
	if p.PlannedDuration != nil {
		if *p.PlannedDuration <= 0 {
			return nil, errs.Validationf("planned duration must be positive, got %d", *p.PlannedDuration)
		}
		planned = *p.PlannedDuration
	}

	// Storage does not enforce the one-active-session invariant, so reject
	// starts while a previous session still resolves as active.
	if existing := m.resolver.FindActive(ctx, p.DeviceID, ""); existing != nil {
		return nil, errs.Validationf("device %s already has active session %s", p.DeviceID, existing.ID)
	}

	session := &model.Session{
		ID:              uuid.NewString(),
		DeviceID:        device.ID,
		UserID:          device.UserID,
		DeviceName:      device.Name,
		StartTime:       m.now().UTC(),
		Status:          model.SessionStatusActive,
		TargetTemp:      target,
		PlannedDuration: planned,
		WaterUsed:       decimal.Zero,
		MoneySaved:      decimal.Zero,
	}
	if err := m.sessions.Put(ctx, session); err != nil {
		return nil, err
	}

	if err := m.devices.Update(ctx, device.ID, map[string]any{
		"target_temp": target,
		"status":      model.DeviceStatusHeating,
	}); err != nil {
		return nil, err
	}

	m.dispatch(ctx, device.ID, command.StartHeating)
	return session, nil
}

// StopParams are the inputs for Stop. SessionID, when present, is passed to
// the resolver as a strong-consistency hint. ClientElapsedSeconds, when
// present, is trusted over the server-side clock.
type StopParams struct {
	DeviceID             string
	RequesterID          string
	RequesterRole        string
	SessionID            string
	ClientElapsedSeconds *decimal.Decimal
}

// StopResult reports the finalized usage of a stopped session. Stopped is
// false when no active session was found; that path still dispatches a stop
// command and is never an error.
type StopResult struct {
	Stopped    bool            `json:"stopped"`
	WaterUsed  decimal.Decimal `json:"water_used"`
	MoneySaved decimal.Decimal `json:"money_saved"`
	Duration   decimal.Decimal `json:"duration_seconds"`
}

// Stop finalizes the device's active session: computes usage and savings,
// marks the session completed, rolls the totals into the device counters and
// dispatches a STOP_HEATING command.
func (m *Manager) Stop(ctx context.Context, p StopParams) (StopResult, error) {
	device, err := m.devices.Get(ctx, p.DeviceID)
	if err != nil {
		return StopResult{}, err
	}
	if err := authorize(device.UserID, p.RequesterID, p.RequesterRole); err != nil {
		return StopResult{}, err
	}

	session := m.resolver.FindActive(ctx, p.DeviceID, p.SessionID)
	if session == nil {
		// Heating may still be on even without a tracked session; the stop
		// command is idempotent on the device side.
		log.Printf("stop: no active session for device %s, stopping heater anyway", p.DeviceID)
		m.dispatch(ctx, p.DeviceID, command.StopHeating)
		return StopResult{Stopped: false, WaterUsed: decimal.Zero, MoneySaved: decimal.Zero, Duration: decimal.Zero}, nil
	}

	var elapsed decimal.Decimal
	if p.ClientElapsedSeconds != nil {
		// Clamp like the server-clock path: usage and savings never go
		// negative, whatever the client reports.
		elapsed = *p.ClientElapsedSeconds
		if elapsed.IsNegative() {
			elapsed = decimal.Zero
		}
	} else {
		seconds := m.now().Sub(session.StartTime).Seconds()
		if seconds < 0 {
			seconds = 0
		}
		elapsed = decimal.NewFromFloat(seconds)
	}

	waterUsed := elapsed.Mul(StopLitersPerSecond)
	moneySaved := waterUsed.Mul(m.priceFor(ctx, device.UserID))

	endTime := m.now().UTC()
	if err := m.sessions.Update(ctx, session.ID, map[string]any{
		"status":      model.SessionStatusCompleted,
		"end_time":    endTime,
		"water_used":  waterUsed,
		"money_saved": moneySaved,
		"duration":    elapsed,
	}); err != nil {
		return StopResult{}, err
	}

	// Counter bookkeeping is best-effort; the session record is already
	// finalized.
	if err := m.devices.AddTotals(ctx, device.ID, waterUsed, 1); err != nil {
		log.Printf("stop: failed to update totals for device %s: %v", device.ID, err)
	}
	if err := m.devices.Update(ctx, device.ID, map[string]any{"status": model.DeviceStatusReady}); err != nil {
		log.Printf("stop: failed to mark device %s ready: %v", device.ID, err)
	}

	m.dispatch(ctx, device.ID, command.StopHeating)

	return StopResult{
		Stopped:    true,
		WaterUsed:  waterUsed,
		MoneySaved: moneySaved,
		Duration:   elapsed,
	}, nil
}

// Delete removes a session record and unconditionally backs its recorded
// usage out of the device counters. The decrements may drive counters
// negative; that is accepted rather than silently corrected.
func (m *Manager) Delete(ctx context.Context, sessionID, requesterID, requesterRole string) error {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := m.authorizeSessionOwner(ctx, session, requesterID, requesterRole); err != nil {
		return err
	}

	if err := m.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}

	if session.DeviceID != "" {
		if err := m.devices.AddTotals(ctx, session.DeviceID, session.WaterUsed.Neg(), -1); err != nil {
			log.Printf("delete: failed to decrement totals for device %s: %v", session.DeviceID, err)
		}
	}
	return nil
}

// authorizeSessionOwner resolves session ownership, preferring the owner id
// recorded on the session and falling back to the owning device.
func (m *Manager) authorizeSessionOwner(ctx context.Context, session *model.Session, requesterID, requesterRole string) error {
	if requesterRole == model.RoleAdmin {
		return nil
	}
	if session.UserID != "" {
		return authorize(session.UserID, requesterID, requesterRole)
	}
	if session.DeviceID == "" {
		return errs.AccessDeniedf("cannot verify ownership of session %s", session.ID)
	}
	device, err := m.devices.Get(ctx, session.DeviceID)
	if err != nil {
		return errs.AccessDeniedf("cannot verify ownership of session %s via device %s", session.ID, session.DeviceID)
	}
	return authorize(device.UserID, requesterID, requesterRole)
}

// priceFor loads the owner's configured water price, falling back to the
// default when the user cannot be read.
func (m *Manager) priceFor(ctx context.Context, userID string) decimal.Decimal {
	user, err := m.users.Get(ctx, userID)
	if err != nil {
		log.Printf("price lookup for user %s failed, using default: %v", userID, err)
		return model.SystemPrefs{}.PricePerLiter()
	}
	return user.System.PricePerLiter()
}

// dispatch sends a device command, logging and swallowing failures: command
// delivery never fails the triggering operation.
func (m *Manager) dispatch(ctx context.Context, deviceID string, cmd command.Command) {
	if err := m.commands.Publish(ctx, deviceID, cmd); err != nil {
		log.Printf("command %s to device %s failed: %v", cmd, deviceID, err)
	}
}

// authorize allows the owner and any admin.
func authorize(ownerID, requesterID, role string) error {
	if role == model.RoleAdmin {
		return nil
	}
	if ownerID != requesterID {
		return errs.AccessDeniedf("user %s does not own this resource", requesterID)
	}
	return nil
}
