// Package adc provides analog input reading with hardware abstraction.
// Real implementations read a Linux IIO channel, a microcontroller
// streaming readings over serial, or a periph.io analog pin.
// The fake implementation allows testing without hardware.
package adc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Reader reads raw analog samples.
type Reader interface {
	// ReadRaw returns one sample scaled to 0..maxRaw.
	ReadRaw() (int, error)

	// Close releases the underlying device.
	Close() error
}

// ErrNoSample is returned when a streaming reader has not yet received a
// reading.
var ErrNoSample = errors.New("adc: no sample received yet")

// Default device paths.
const (
	DefaultIIOPath    = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"
	DefaultSerialBaud = 115200
)

// Open opens a reader from a source spec:
//
//	iio:<path>[@fullscale]   Linux IIO raw channel file
//	serial:<device>[@baud]   one decimal reading per line
//
// Samples are scaled to 0..maxRaw.
func Open(spec string, maxRaw int) (Reader, error) {
	kind, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("adc: invalid source %q (want iio:<path> or serial:<device>)", spec)
	}
	target, param, hasParam := strings.Cut(rest, "@")
	if target == "" {
		return nil, fmt.Errorf("adc: missing path in %q", spec)
	}

	n := 0
	if hasParam {
		v, err := strconv.Atoi(param)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("adc: invalid parameter %q in %q", param, spec)
		}
		n = v
	}

	switch kind {
	case "iio":
		fullScale := maxRaw
		if n > 0 {
			fullScale = n
		}
		return NewIIOReader(target, fullScale, maxRaw)
	case "serial":
		baud := DefaultSerialBaud
		if n > 0 {
			baud = n
		}
		return OpenSerial(target, baud, maxRaw)
	}
	return nil, fmt.Errorf("adc: unknown source type %q", kind)
}

// scale maps v from 0..from to 0..to, clamping out-of-range input.
func scale(v, from, to int) int {
	if v < 0 {
		v = 0
	}
	if v > from {
		v = from
	}
	if from == to {
		return v
	}
	return v * to / from
}
