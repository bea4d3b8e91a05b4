package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// NotificationPrefs gates per-type alerts. Nil means "not set", which every
// consumer treats as enabled.
type NotificationPrefs struct {
	WaterReadyAlert *bool `json:"water_ready_alert,omitempty"`
}

// SystemPrefs holds display and billing preferences.
type SystemPrefs struct {
	TemperatureUnit    string          `json:"temperature_unit,omitempty"`
	WaterPricePerLiter decimal.Decimal `json:"water_price_per_liter,omitempty"`
	Language           string          `json:"language,omitempty"`
}

// User represents an account. NotificationChannel is an opaque handle to the
// user's push channel (a serialized web push subscription), provisioned
// lazily by the settings API.
type User struct {
	ID                  string            `gorm:"primaryKey;size:64" json:"user_id"`
	Email               string            `gorm:"size:256" json:"email"`
	Name                string            `gorm:"size:256" json:"name"`
	Role                string            `gorm:"size:32;not null;default:user" json:"role"`
	Notifications       NotificationPrefs `gorm:"serializer:json" json:"notifications"`
	System              SystemPrefs       `gorm:"serializer:json" json:"system"`
	NotificationChannel string            `gorm:"type:text" json:"-"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// WaterReadyEnabled reports whether the water-ready alert is on, defaulting
// to true when the preference was never set.
func (p NotificationPrefs) WaterReadyEnabled() bool {
	return p.WaterReadyAlert == nil || *p.WaterReadyAlert
}

// defaultPricePerLiter applies when a user never configured a price (NIS).
var defaultPricePerLiter = decimal.RequireFromString("0.008")

// PricePerLiter returns the configured water price, or the default when the
// preference is unset or non-positive.
func (p SystemPrefs) PricePerLiter() decimal.Decimal {
	if p.WaterPricePerLiter.IsPositive() {
		return p.WaterPricePerLiter
	}
	return defaultPricePerLiter
}
