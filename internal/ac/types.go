// Package ac contains the air-conditioner domain model shared by the serial
// link, the MQTT translation layer and the event loop.
// This package has NO external dependencies (no serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package ac

// Mode is the numeric operating mode code used by the indoor unit.
// Values are passed through unchanged in both directions.
type Mode uint8

const (
	ModeAuto Mode = 1
	ModeCool Mode = 2
	ModeDry  Mode = 3
	ModeHeat Mode = 4
	ModeFan  Mode = 5
)

// Fan is the fan speed as reported by the unit.
type Fan uint8

const (
	FanLow    Fan = 40
	FanMedium Fan = 60
	FanHigh   Fan = 80
	FanAuto   Fan = 102
)

// WireCode maps the unit's fan speed onto the MQTT wire integer:
// low=1, medium=2, high=3, auto=0. Any other value is passed through raw.
func (f Fan) WireCode() uint8 {
	switch f {
	case FanLow:
		return 1
	case FanMedium:
		return 2
	case FanHigh:
		return 3
	case FanAuto:
		return 0
	default:
		return uint8(f)
	}
}

// FanFromWire is the inverse of WireCode. Codes outside 0..3 are taken as
// raw unit values.
func FanFromWire(code uint8) Fan {
	switch code {
	case 0:
		return FanAuto
	case 1:
		return FanLow
	case 2:
		return FanMedium
	case 3:
		return FanHigh
	default:
		return Fan(code)
	}
}

// Louver is the vane setting.
type Louver uint8

const (
	LouverOff   Louver = 0x00
	LouverSwing Louver = 0x0C
)

// LouverFromBool maps the wire "lamelle" flag to a louver setting.
func LouverFromBool(on bool) Louver {
	if on {
		return LouverSwing
	}
	return LouverOff
}

// Target temperature bounds accepted by the unit, in °C.
const (
	MinSetpoint = 16
	MaxSetpoint = 31
)

// Config is the desired (command) or reported (status) unit configuration.
type Config struct {
	On     bool
	Turbo  bool
	Eco    bool
	Soll   uint8 // target temperature °C
	Fan    Fan
	Mode   Mode
	Louver Louver
}

// ClampedSoll returns the target temperature limited to the unit's range.
func (c Config) ClampedSoll() uint8 {
	switch {
	case c.Soll < MinSetpoint:
		return MinSetpoint
	case c.Soll > MaxSetpoint:
		return MaxSetpoint
	default:
		return c.Soll
	}
}

// Status is a decoded status report from the unit.
type Status struct {
	Indoor  float64 // °C, half-degree resolution
	Outdoor float64 // °C, half-degree resolution
	Conf    Config
}
