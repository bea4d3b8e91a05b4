// Package telemetry ingests device readings and drives the automation they
// trigger: device state updates, threshold detection and session accrual.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"ecoshower-backend/internal/command"
	"ecoshower-backend/internal/errs"
	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/notification"
	"ecoshower-backend/internal/session"
	"ecoshower-backend/internal/store"
)

// AccrualLitersPerSecond is the metering rate applied by telemetry-driven
// accrual. Not the same as session.StopLitersPerSecond; the two paths bill
// at different rates until product settles on one.
var AccrualLitersPerSecond = decimal.RequireFromString("0.2")

// defaultTargetTemp applies to devices whose target was never set (°C).
var defaultTargetTemp = decimal.NewFromInt(38)

// Reading is one inbound telemetry sample.
type Reading struct {
	DeviceID    string          `json:"device_id"`
	Temperature decimal.Decimal `json:"temperature"`
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Processor applies a telemetry reading: append to the log, refresh the
// device record, detect threshold crossings and accrue session savings.
type Processor struct {
	telemetry store.TelemetryStore
	devices   store.DeviceStore
	sessions  store.SessionStore
	users     store.UserStore
	resolver  *session.Resolver
	commands  command.Publisher
	composer  *notification.Composer

	now func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(telemetry store.TelemetryStore, devices store.DeviceStore, sessions store.SessionStore, users store.UserStore, resolver *session.Resolver, commands command.Publisher, composer *notification.Composer) *Processor {
	return &Processor{
		telemetry: telemetry,
		devices:   devices,
		sessions:  sessions,
		users:     users,
		resolver:  resolver,
		commands:  commands,
		composer:  composer,
		now:       time.Now,
	}
}

// Ingest processes one reading. It is safe under at-least-once redelivery:
// the threshold check is level-triggered and accrual is a full recompute.
func (p *Processor) Ingest(ctx context.Context, r Reading) error {
	if r.DeviceID == "" {
		return errs.Validationf("device_id is required")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = p.now().UTC()
	}

	// The log is append-only and unconditional; readings for unknown
	// devices are still recorded.
	err := p.telemetry.Append(ctx, &model.TelemetryReading{
		DeviceID:    r.DeviceID,
		Timestamp:   r.Timestamp,
		Temperature: r.Temperature,
		Status:      r.Status,
	})
	if err != nil {
		return err
	}

	device, err := p.devices.Get(ctx, r.DeviceID)
	if err != nil {
		log.Printf("telemetry: device %s not loadable, dropping reading: %v", r.DeviceID, err)
		return err
	}

	now := p.now().UTC()
	if err := p.devices.Update(ctx, device.ID, map[string]any{
		"status":       r.Status,
		"current_temp": r.Temperature,
		"last_seen":    now,
	}); err != nil {
		return err
	}

	target := device.TargetTemp
	if target.IsZero() {
		target = defaultTargetTemp
	}
	if r.Status == model.DeviceStatusHeating && r.Temperature.GreaterThanOrEqual(target) {
		p.waterReady(ctx, device, target)
	}

	if r.Status == model.DeviceStatusHeating {
		p.accrue(ctx, device)
	}
	return nil
}

// waterReady handles a threshold crossing: flip the device to ready, open
// the output valve and notify the owner. Re-fires on every qualifying
// reading; consumers needing exactly-once must dedupe downstream.
func (p *Processor) waterReady(ctx context.Context, device *model.Device, target decimal.Decimal) {
	log.Printf("telemetry: water ready for device %s", device.ID)

	if err := p.devices.Update(ctx, device.ID, map[string]any{"status": model.DeviceStatusReady}); err != nil {
		log.Printf("telemetry: failed to mark device %s ready: %v", device.ID, err)
	}

	if err := p.commands.Publish(ctx, device.ID, command.OpenValve); err != nil {
		log.Printf("telemetry: open valve command to device %s failed: %v", device.ID, err)
	}

	msg := notification.WaterReady(device.Name, model.Celsius(target))
	p.composer.Notify(ctx, device.UserID, msg, notification.TypeWaterReady, device.ID)
}

// accrue recomputes the active session's savings from scratch. Only the
// indexed lookup is used: accrual may skip a beat while the index lags, and
// the next reading repairs it since the recompute is idempotent.
func (p *Processor) accrue(ctx context.Context, device *model.Device) {
	active := p.resolver.FindActiveIndexed(ctx, device.ID)
	if active == nil {
		return
	}

	seconds := p.now().Sub(active.StartTime).Seconds()
	if seconds < 0 {
		seconds = 0
	}
	elapsed := decimal.NewFromFloat(seconds)

	waterUsed := elapsed.Mul(AccrualLitersPerSecond)
	moneySaved := waterUsed.Mul(p.priceFor(ctx, device.UserID))

	if err := p.sessions.Update(ctx, active.ID, map[string]any{
		"water_used":  waterUsed,
		"money_saved": moneySaved,
	}); err != nil {
		log.Printf("telemetry: accrual update for session %s failed: %v", active.ID, err)
	}
}

func (p *Processor) priceFor(ctx context.Context, userID string) decimal.Decimal {
	user, err := p.users.Get(ctx, userID)
	if err != nil {
		return model.SystemPrefs{}.PricePerLiter()
	}
	return user.System.PricePerLiter()
}
