package serialout

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/lidar/scan"
)

// LinePrefix starts every scan line.
const LinePrefix = "$SCAN"

// FormatLine renders one scan as "$SCAN,<seq>,<n>,<ranges>\n" where ranges
// are space separated meters with "inf" for no return.
func FormatLine(seq uint64, ranges []float64) string {
	var b strings.Builder
	b.WriteString(LinePrefix)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(seq, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(len(ranges)))
	b.WriteByte(',')
	b.WriteString(laserscan.EncodeRanges(ranges))
	b.WriteByte('\n')
	return b.String()
}

// ParseLine is the inverse of FormatLine.
func ParseLine(line string) (seq uint64, ranges []float64, err error) {
	fields := strings.SplitN(strings.TrimRight(line, "\r\n"), ",", 4)
	if len(fields) != 4 || fields[0] != LinePrefix {
		return 0, nil, fmt.Errorf("not a scan line: %q", line)
	}
	if seq, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
		return 0, nil, fmt.Errorf("invalid sequence: %w", err)
	}
	n, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, nil, fmt.Errorf("invalid count: %w", err)
	}
	if ranges, err = laserscan.ParseRanges(fields[3]); err != nil {
		return 0, nil, err
	}
	if len(ranges) != n {
		return 0, nil, fmt.Errorf("line declares %d ranges, has %d", n, len(ranges))
	}
	return seq, ranges, nil
}

// Source is anything that can copy out its latest scan.
type Source interface {
	ReadInto(dst *scan.Scan)
}

// Emitter writes each new scan of a source to w. Tick is called from the
// simulation step.
type Emitter struct {
	name string
	src  Source

	mu       sync.Mutex
	w        io.WriteCloser
	buf      scan.Scan
	lastSeq  uint64
	lines    int
	lastErr  error
	disabled bool
}

// NewEmitter returns an emitter for src writing to w. The emitter owns w.
func NewEmitter(name string, w io.WriteCloser, src Source) *Emitter {
	return &Emitter{name: name, w: w, src: src}
}

// Tick writes the source's latest scan if it has not been written. After a
// write failure the emitter stops and Tick returns nil.
func (e *Emitter) Tick(_ context.Context, _ time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disabled {
		return nil
	}
	e.src.ReadInto(&e.buf)
	if e.buf.Seq == 0 || e.buf.Seq == e.lastSeq {
		return nil
	}
	e.lastSeq = e.buf.Seq
	if _, err := io.WriteString(e.w, FormatLine(e.buf.Seq, e.buf.Ranges)); err != nil {
		e.disabled = true
		e.lastErr = fmt.Errorf("serial %s: %w", e.name, err)
		lidar.Opsf("serial %s: disabled after write failure: %v", e.name, err)
		return e.lastErr
	}
	e.lines++
	if lidar.TraceEnabled() {
		lidar.Tracef("serial %s: wrote scan %d", e.name, e.buf.Seq)
	}
	return nil
}

// Lines returns the number of lines written.
func (e *Emitter) Lines() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines
}

// Err returns the write error that stopped the emitter, if any.
func (e *Emitter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Close stops the emitter and closes the writer. Close is idempotent.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.w == nil {
		return nil
	}
	err := e.w.Close()
	e.w = nil
	e.disabled = true
	lidar.Opsf("serial %s: closed after %d lines", e.name, e.lines)
	return err
}

// openPort is replaced in tests.
var openPort = func(path string, mode *serial.Mode) (io.WriteCloser, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Open opens the serial port at path for writing scan lines.
func Open(path string, opts PortOptions) (io.WriteCloser, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := openPort(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	lidar.Opsf("serial: opened %s at %d baud", path, mode.BaudRate)
	return port, nil
}
