package lidar

import (
	"io"
	"log"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream. A nil writer
// disables its stream.
type LogWriters struct {
	// Ops carries sensor lifecycle, backend failures and timing underruns.
	Ops io.Writer
	// Diag carries periodic scan statistics and recorder flushes.
	Diag io.Writer
	// Trace carries one line per scan or per emitted message.
	Trace io.Writer
}

type stream int

const (
	opsStream stream = iota
	diagStream
	traceStream
	numStreams
)

var streamPrefix = [numStreams]string{
	opsStream:   "[scansim] ",
	diagStream:  "[scansim diag] ",
	traceStream: "[scansim trace] ",
}

var (
	mu      sync.RWMutex
	loggers [numStreams]*log.Logger
)

// SetLogWriters replaces all three streams at once.
func SetLogWriters(w LogWriters) {
	next := [numStreams]*log.Logger{
		opsStream:   newLogger(opsStream, w.Ops),
		diagStream:  newLogger(diagStream, w.Diag),
		traceStream: newLogger(traceStream, w.Trace),
	}
	mu.Lock()
	loggers = next
	mu.Unlock()
}

func newLogger(s stream, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, streamPrefix[s], log.LstdFlags|log.Lmicroseconds)
}

func logger(s stream) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return loggers[s]
}

func logf(s stream, format string, args []interface{}) {
	if l := logger(s); l != nil {
		l.Printf(format, args...)
	}
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) { logf(opsStream, format, args) }

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) { logf(diagStream, format, args) }

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) { logf(traceStream, format, args) }

// TraceEnabled reports whether the trace stream has a writer. Per-scan
// code checks it before formatting trace arguments.
func TraceEnabled() bool { return logger(traceStream) != nil }
