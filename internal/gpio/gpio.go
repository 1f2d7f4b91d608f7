// Package gpio drives the connection indicator LED with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Indicator is a single on/off output.
type Indicator interface {
	// Set drives the output. true = lit.
	Set(on bool) error

	// Close switches the output off and releases GPIO resources.
	Close() error
}

// DisabledPin means no LED is fitted.
const DisabledPin = -1

// Nop is an Indicator that does nothing. Used when no LED pin is configured.
type Nop struct{}

// Set does nothing.
func (Nop) Set(bool) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
