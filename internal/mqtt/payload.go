package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sweeney/ac-mqtt-bridge/internal/ac"
)

// Celsius marshals with exactly one decimal, so 30 encodes as 30.0.
type Celsius float64

// MarshalJSON implements json.Marshaler.
func (c Celsius) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(c), 'f', 1, 64), nil
}

// StatePayload is one element of the state topic array.
type StatePayload struct {
	Ist    Celsius     `json:"ist"`
	Aussen Celsius     `json:"aussen"`
	Conf   ConfPayload `json:"conf"`
}

// ConfPayload is the unit configuration as seen on the wire.
type ConfPayload struct {
	On      bool  `json:"on"`
	Turbo   bool  `json:"turbo"`
	Eco     bool  `json:"eco"`
	Soll    uint8 `json:"soll"`
	Lamelle bool  `json:"lamelle"`
	Mode    uint8 `json:"mode"`
	Fan     uint8 `json:"fan"`
}

// FormatState creates the state topic payload: an array holding one object.
func FormatState(st ac.Status) ([]byte, error) {
	payload := []StatePayload{{
		Ist:    Celsius(st.Indoor),
		Aussen: Celsius(st.Outdoor),
		Conf: ConfPayload{
			On:      st.Conf.On,
			Turbo:   st.Conf.Turbo,
			Eco:     st.Conf.Eco,
			Soll:    st.Conf.Soll,
			Lamelle: st.Conf.Louver != ac.LouverOff,
			Mode:    uint8(st.Conf.Mode),
			Fan:     st.Conf.Fan.WireCode(),
		},
	}}
	return json.Marshal(payload)
}

// CommandPayload is the command topic schema. Absent fields stay zero.
// Numbers may carry a fraction and flags may be sent as 0/1.
type CommandPayload struct {
	On      Flag  `json:"on"`
	Turbo   Flag  `json:"turbo"`
	Eco     Flag  `json:"eco"`
	Mode    Uint8 `json:"mode"`
	Lamelle Flag  `json:"lamelle"`
	Fan     Uint8 `json:"fan"`
	Soll    Uint8 `json:"soll"`
}

// Uint8 decodes any JSON number in 0..255, truncating the fraction, so 22.0
// and 22.5 both give 22.
type Uint8 uint8

// UnmarshalJSON implements json.Unmarshaler.
func (u *Uint8) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("%s is not a number", b)
	}
	if f < 0 || f >= 256 {
		return fmt.Errorf("%s out of range 0..255", b)
	}
	*u = Uint8(f)
	return nil
}

// Flag decodes true/false or a number, where any non-zero number is true.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = Flag(x)
	case float64:
		*f = x != 0
	default:
		return fmt.Errorf("%s is not a boolean", b)
	}
	return nil
}

// ParseCommand decodes a command payload into a unit configuration.
func ParseCommand(payload []byte) (ac.Config, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ac.Config{}, fmt.Errorf("%w: not a JSON object", ErrMalformedCommand)
	}
	var cmd CommandPayload
	if err := json.Unmarshal(trimmed, &cmd); err != nil {
		return ac.Config{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return ac.Config{
		On:     bool(cmd.On),
		Turbo:  bool(cmd.Turbo),
		Eco:    bool(cmd.Eco),
		Soll:   uint8(cmd.Soll),
		Fan:    ac.FanFromWire(uint8(cmd.Fan)),
		Mode:   ac.Mode(cmd.Mode),
		Louver: ac.LouverFromBool(bool(cmd.Lamelle)),
	}, nil
}

// FormatVersion builds the version announcement.
func FormatVersion(version string) []byte {
	return []byte("midea-ac-async:" + version)
}

// FormatRSSI renders a signal strength in dBm.
func FormatRSSI(dBm int) []byte {
	return strconv.AppendInt(nil, int64(dBm), 10)
}
