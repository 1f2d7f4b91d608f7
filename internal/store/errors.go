package store

import "errors"

var (
	// ErrFieldTooLong is returned when a broker setting exceeds its capacity.
	ErrFieldTooLong = errors.New("store: field exceeds capacity")
	// ErrNotFound is returned internally when no config file exists.
	ErrNotFound = errors.New("store: config not found")
)
