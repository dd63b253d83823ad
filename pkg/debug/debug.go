// Package debug provides env-gated trace logging.
//
// Set TREESCOPE_DEBUG to any value to get timestamped traces on stderr:
//
//	TREESCOPE_DEBUG=1 treescope serve tree.json
//
// With the variable unset every function here is a no-op.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

const prefix = "[TREESCOPE_DEBUG] "

var (
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("TREESCOPE_DEBUG") != "" {
		enabled = true
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// Enabled reports whether tracing is on.
func Enabled() bool {
	return enabled
}

// SetEnabled turns tracing on or off, creating the stderr logger on demand.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects traces, mostly for tests and the TUI (which owns the
// terminal and must not have stderr scribbled over it).
func SetOutput(w io.Writer) {
	logger = log.New(w, prefix, log.Ltime|log.Lmicroseconds)
}

// Log writes a printf-style trace.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes "<name> took <d>".
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogIf traces only when cond holds.
func LogIf(cond bool, format string, args ...any) {
	if !enabled || !cond {
		return
	}
	logger.Printf(format, args...)
}

// LogEnterExit traces entry now and exit with elapsed time when the returned
// function runs.
//
//	defer debug.LogEnterExit("Dispatch")()
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Dump traces a value with its type.
func Dump(name string, v any) {
	if !enabled {
		return
	}
	logger.Printf("%s: %T = %+v", name, v, v)
}

// Assert panics when cond is false, but only while tracing is on.
func Assert(cond bool, msg string) {
	if !enabled || cond {
		return
	}
	logger.Printf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}
