package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TelemetryReading is one device-reported sample. Append-only; rows are
// never updated once written.
type TelemetryReading struct {
	ID          int64           `gorm:"autoIncrement;primaryKey" json:"-"`
	DeviceID    string          `gorm:"index:idx_telemetry_device_ts;size:64;not null" json:"device_id"`
	Timestamp   time.Time       `gorm:"index:idx_telemetry_device_ts;not null" json:"timestamp"`
	Temperature decimal.Decimal `gorm:"type:numeric" json:"temperature"`
	Status      string          `gorm:"size:32" json:"status"`
}
