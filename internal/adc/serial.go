package adc

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// StreamReader keeps the latest reading from a line-oriented stream, such
// as a microcontroller printing one decimal ADC value per line.
// Safe for concurrent use.
type StreamReader struct {
	rc     io.ReadCloser
	maxRaw int
	done   chan struct{}

	mu      sync.Mutex
	latest  int
	have    bool
	invalid int
	err     error
}

// OpenSerial opens a serial device and starts reading from it.
// Readings are expected in 0..maxRaw.
func OpenSerial(dev string, baud, maxRaw int) (*StreamReader, error) {
	// No read timeout: tarm/serial reports a timed-out read as EOF.
	port, err := serial.OpenPort(&serial.Config{Name: dev, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", dev, err)
	}
	return NewStreamReader(port, maxRaw), nil
}

// NewStreamReader starts consuming rc in the background.
func NewStreamReader(rc io.ReadCloser, maxRaw int) *StreamReader {
	r := &StreamReader{
		rc:     rc,
		maxRaw: maxRaw,
		done:   make(chan struct{}),
	}
	go r.consume()
	return r
}

func (r *StreamReader) consume() {
	defer close(r.done)
	sc := bufio.NewScanner(r.rc)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.Atoi(line)
		if err != nil {
			r.mu.Lock()
			r.invalid++
			first := r.invalid == 1
			r.mu.Unlock()
			if first {
				log.Printf("adc: ignoring malformed serial line %q", line)
			}
			continue
		}
		r.mu.Lock()
		r.latest = scale(v, r.maxRaw, r.maxRaw)
		r.have = true
		r.mu.Unlock()
	}

	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// ReadRaw returns the most recent reading. It fails once the stream has
// ended, and with ErrNoSample until the first valid line arrives.
func (r *StreamReader) ReadRaw() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, fmt.Errorf("serial stream: %w", r.err)
	}
	if !r.have {
		return 0, ErrNoSample
	}
	return r.latest, nil
}

// Invalid returns the number of lines that could not be parsed.
func (r *StreamReader) Invalid() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invalid
}

// closeWait bounds how long Close waits for a blocked read to return.
const closeWait = time.Second

// Close closes the stream and waits briefly for the reader goroutine to
// exit.
func (r *StreamReader) Close() error {
	err := r.rc.Close()
	select {
	case <-r.done:
	case <-time.After(closeWait):
		log.Printf("adc: serial reader did not stop within %v", closeWait)
	}
	return err
}
