// Package input reads a two-axis stick from a serial line.
//
// The stick firmware prints one "x,y" line per sample, each axis a decimal
// in [-1, 1].
package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/teslashibe/go-woofer/internal/log"
)

// DefaultBaudRate is the baud rate used when none is given.
const DefaultBaudRate = 115200

// ErrMalformedLine is returned by ParseAxes for lines that are not "x,y".
var ErrMalformedLine = errors.New("malformed stick line")

// SerialStick tracks the latest axes reported on a line-oriented stream.
type SerialStick struct {
	r   io.Reader
	log *slog.Logger

	mu   sync.Mutex
	x, y float64
	ok   bool

	lines     atomic.Uint64
	malformed atomic.Uint64
}

// NewStick creates a stick reading lines from r.
func NewStick(r io.Reader) *SerialStick {
	return &SerialStick{
		r:   r,
		log: log.Component("stick"),
	}
}

// Open opens the serial port at path. A non-positive baud uses DefaultBaudRate.
func Open(path string, baud int) (*SerialStick, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewStick(port), nil
}

// Run reads lines until the stream ends or ctx is canceled. Malformed lines
// are skipped. If the underlying reader is an io.Closer it is closed on return.
// Once Run returns the stick reports no reading.
func (s *SerialStick) Run(ctx context.Context) error {
	defer s.release()
	if c, ok := s.r.(io.Closer); ok {
		defer c.Close()
		// Closing unblocks a pending read.
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scan := bufio.NewScanner(s.r)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scan.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("error reading stick: %w", err)
					}
				default:
				}
				return nil
			}
			s.handleLine(line)
		}
	}
}

func (s *SerialStick) handleLine(line string) {
	s.lines.Add(1)
	x, y, err := ParseAxes(line)
	if err != nil {
		s.malformed.Add(1)
		s.log.Debug("skipping line", "line", line, "error", err)
		return
	}

	s.mu.Lock()
	s.x, s.y, s.ok = x, y, true
	s.mu.Unlock()
}

// release marks the stick unavailable.
func (s *SerialStick) release() {
	s.mu.Lock()
	s.x, s.y, s.ok = 0, 0, false
	s.mu.Unlock()
}

// ReadStickAxes returns the latest axes. ok is false until the first valid
// line and again after Run returns.
func (s *SerialStick) ReadStickAxes() (x, y float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y, s.ok
}

// Malformed returns the number of lines that could not be parsed.
func (s *SerialStick) Malformed() uint64 {
	return s.malformed.Load()
}

// Lines returns the number of lines read.
func (s *SerialStick) Lines() uint64 {
	return s.lines.Load()
}

// ParseAxes parses an "x,y" line. Values are clamped to [-1, 1].
func ParseAxes(line string) (x, y float64, err error) {
	xs, ys, found := strings.Cut(strings.TrimSpace(line), ",")
	if !found {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	x, err = parseAxis(xs)
	if err != nil {
		return 0, 0, err
	}
	y, err = parseAxis(ys)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseAxis(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: axis %q", ErrMalformedLine, s)
	}
	return math.Max(-1, math.Min(1, v)), nil
}
