package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Device statuses the backend writes. Devices may report other strings
// (e.g. "idle", "offline"); those are stored verbatim.
const (
	DeviceStatusReady   = "ready"
	DeviceStatusHeating = "heating"
)

// Device represents a registered water heater unit.
type Device struct {
	ID              string          `gorm:"primaryKey;size:64" json:"device_id"`
	UserID          string          `gorm:"index;size:64;not null" json:"user_id"`
	Name            string          `gorm:"size:256;not null" json:"name"`
	DeviceCode      string          `gorm:"size:32" json:"device_code"`
	Status          string          `gorm:"size:32;not null" json:"status"`
	TargetTemp      decimal.Decimal `gorm:"type:numeric" json:"target_temp"`
	CurrentTemp     decimal.Decimal `gorm:"type:numeric" json:"current_temp"`
	TotalWaterSaved decimal.Decimal `gorm:"type:numeric" json:"total_water_saved"`
	TotalSessions   int64           `json:"total_sessions"`
	LastSeen        *time.Time      `json:"last_seen"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
