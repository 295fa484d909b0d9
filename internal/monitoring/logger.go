// Package monitoring holds the process-wide logger used outside the lidar
// packages: HTTP handlers, admin routes and the command-line tools.
package monitoring

import (
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// logfWriter forwards each write to Logf as one line.
type logfWriter struct {
	prefix string
}

func (w logfWriter) Write(p []byte) (int, error) {
	Logf("%s%s", w.prefix, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// ErrorLog returns a *log.Logger that writes through Logf, for libraries
// such as net/http that take a standard logger.
func ErrorLog(prefix string) *log.Logger {
	return log.New(logfWriter{prefix: prefix}, "", 0)
}
