// Package led drives an indicator output line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package led

// Indicator switches a single indicator on or off.
type Indicator interface {
	// Set drives the indicator. Implementations skip redundant writes.
	Set(on bool) error

	// Close turns the indicator off and releases it.
	Close() error
}

// Nop is an Indicator that does nothing; used when no pin is configured.
type Nop struct{}

func (Nop) Set(bool) error { return nil }
func (Nop) Close() error   { return nil }
