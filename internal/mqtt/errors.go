package mqtt

import "errors"

var (
	// ErrNotConnected is returned when publishing or subscribing without a connection.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrMalformedCommand is returned for command payloads that are not a JSON
	// object with correctly typed fields.
	ErrMalformedCommand = errors.New("mqtt: malformed command payload")
)
