package adc

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
)

// PeriphReader reads an analog pin exposed through periph.io, such as a
// channel of an external I2C/SPI converter.
type PeriphReader struct {
	pin    analog.PinADC
	lo, hi int32
	maxRaw int
}

// NewPeriphReader wraps p. Readings are rescaled from the pin's Range to
// 0..maxRaw.
func NewPeriphReader(p analog.PinADC, maxRaw int) (*PeriphReader, error) {
	lo, hi := p.Range()
	if hi.Raw <= lo.Raw || maxRaw <= 0 {
		return nil, fmt.Errorf("adc: %s: unusable range %d..%d", p, lo.Raw, hi.Raw)
	}
	return &PeriphReader{pin: p, lo: lo.Raw, hi: hi.Raw, maxRaw: maxRaw}, nil
}

// ReadRaw reads one sample from the pin.
func (r *PeriphReader) ReadRaw() (int, error) {
	s, err := r.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.pin, err)
	}
	return scale(int(s.Raw-r.lo), int(r.hi-r.lo), r.maxRaw), nil
}

// Close halts the pin.
func (r *PeriphReader) Close() error {
	return r.pin.Halt()
}
