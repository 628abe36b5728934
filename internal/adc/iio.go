package adc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IIOReader reads a Linux industrial I/O raw voltage channel, e.g.
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type IIOReader struct {
	f         *os.File
	path      string
	fullScale int
	maxRaw    int
	buf       []byte
}

// NewIIOReader opens the channel file. fullScale is the converter's
// highest raw code; readings are rescaled to 0..maxRaw.
func NewIIOReader(path string, fullScale, maxRaw int) (*IIOReader, error) {
	if fullScale <= 0 || maxRaw <= 0 {
		return nil, fmt.Errorf("adc: invalid scale %d->%d", fullScale, maxRaw)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open iio channel: %w", err)
	}
	return &IIOReader{
		f:         f,
		path:      path,
		fullScale: fullScale,
		maxRaw:    maxRaw,
		buf:       make([]byte, 32),
	}, nil
}

// ReadRaw triggers a conversion by re-reading the channel file from the
// start.
func (r *IIOReader) ReadRaw() (int, error) {
	n, err := r.f.ReadAt(r.buf, 0)
	if n == 0 && err != nil {
		return 0, fmt.Errorf("read %s: %w", r.path, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(r.buf[:n])))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return scale(v, r.fullScale, r.maxRaw), nil
}

// Close closes the channel file.
func (r *IIOReader) Close() error {
	return r.f.Close()
}
