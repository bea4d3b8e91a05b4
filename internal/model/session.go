package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session statuses. A session is active from start until an explicit stop.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// Session represents one bounded heating/dispensing cycle on a device.
// WaterUsed and MoneySaved are overwritten by telemetry accrual while the
// session is active and finalized on stop; Duration is in seconds.
type Session struct {
	ID              string          `gorm:"primaryKey;size:64" json:"session_id"`
	DeviceID        string          `gorm:"index;size:64;not null" json:"device_id"`
	UserID          string          `gorm:"index;size:64" json:"user_id"`
	DeviceName      string          `gorm:"size:256" json:"device_name"`
	StartTime       time.Time       `gorm:"index;not null" json:"start_time"`
	EndTime         *time.Time      `json:"end_time"`
	Status          string          `gorm:"index;size:32;not null" json:"status"`
	TargetTemp      decimal.Decimal `gorm:"type:numeric" json:"target_temp"`
	PlannedDuration int             `json:"planned_duration"`
	WaterUsed       decimal.Decimal `gorm:"type:numeric" json:"water_used"`
	MoneySaved      decimal.Decimal `gorm:"type:numeric" json:"money_saved"`
	Duration        decimal.Decimal `gorm:"type:numeric" json:"duration"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
