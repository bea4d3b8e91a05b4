package model

import "github.com/shopspring/decimal"

// Temperature units a user can select.
const (
	UnitCelsius    = "celsius"
	UnitFahrenheit = "fahrenheit"
)

// Temperature is a temperature value tagged with its unit. Carrying the
// value as a typed field lets notifications convert before rendering instead
// of pattern-matching already-rendered text.
type Temperature struct {
	Value decimal.Decimal
	Unit  string
}

// Celsius builds a Temperature in degrees Celsius.
func Celsius(v decimal.Decimal) Temperature {
	return Temperature{Value: v, Unit: UnitCelsius}
}

// In converts the temperature to the given unit. Unknown units leave the
// value unchanged.
func (t Temperature) In(unit string) Temperature {
	if t.Unit == unit {
		return t
	}
	switch {
	case t.Unit == UnitCelsius && unit == UnitFahrenheit:
		// F = C*9/5 + 32
		f := t.Value.Mul(decimal.NewFromInt(9)).Div(decimal.NewFromInt(5)).Add(decimal.NewFromInt(32))
		return Temperature{Value: f, Unit: UnitFahrenheit}
	case t.Unit == UnitFahrenheit && unit == UnitCelsius:
		c := t.Value.Sub(decimal.NewFromInt(32)).Mul(decimal.NewFromInt(5)).Div(decimal.NewFromInt(9))
		return Temperature{Value: c, Unit: UnitCelsius}
	}
	return t
}

// String renders the value with its unit marker. Fahrenheit values are
// rounded to one decimal place ("104.0°F"); Celsius values keep their
// natural precision ("40°C").
func (t Temperature) String() string {
	if t.Unit == UnitFahrenheit {
		return t.Value.StringFixed(1) + "°F"
	}
	return t.Value.String() + "°C"
}
