//go:build linux

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealIndicator drives a GPIO output line using the Linux GPIO character device.
type RealIndicator struct {
	line *gpiocdev.Line
	on   bool
}

// NewRealIndicator requests pin on gpiochip0 as an output, initially off.
func NewRealIndicator(pin int) (*RealIndicator, error) {
	line, err := gpiocdev.RequestLine("gpiochip0", pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request led pin %d: %w", pin, err)
	}
	return &RealIndicator{line: line}, nil
}

// Set drives the line high for on.
func (r *RealIndicator) Set(on bool) error {
	if on == r.on {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	r.on = on
	return nil
}

// Close turns the line off, returns it to an input (boot default) and
// releases it.
func (r *RealIndicator) Close() error {
	var errs []error
	if err := r.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear led: %w", err))
	}
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure led pin: %w", err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close led pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
