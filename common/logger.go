package common

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Logger is the levelled logger used across the module. Implementations must be safe for
// concurrent use since the tick loop and the window loop log from different goroutines.
type Logger interface {
	// Debugf logs a message at debug level. Dropped unless debug output is enabled.
	Debugf(format string, args ...any)

	// Infof logs a message at info level.
	Infof(format string, args ...any)

	// Warnf logs a message at warn level.
	Warnf(format string, args ...any)

	// Errorf logs a message at error level.
	Errorf(format string, args ...any)

	// DebugEnabled reports whether Debugf output is currently emitted.
	//
	// Returns:
	//   - bool: true when debug messages are written
	DebugEnabled() bool

	// SetDebug toggles debug output.
	//
	// Parameters:
	//   - enabled: true to emit Debugf messages
	SetDebug(enabled bool)
}

// defaultLogger writes "[prefix] LEVEL: message" lines through the standard library logger.
type defaultLogger struct {
	out   *log.Logger
	debug atomic.Bool
}

var _ Logger = &defaultLogger{}

// NewDefaultLogger creates a Logger writing to stderr with the given prefix.
//
// Parameters:
//   - prefix: the component name printed in brackets at the start of each line
//
// Returns:
//   - Logger: a logger with debug output disabled
func NewDefaultLogger(prefix string) Logger {
	return &defaultLogger{
		out: log.New(os.Stderr, fmt.Sprintf("[%s] ", prefix), log.LstdFlags|log.Lmsgprefix),
	}
}

func (l *defaultLogger) Debugf(format string, args ...any) {
	if !l.debug.Load() {
		return
	}
	l.out.Printf("DEBUG: "+format, args...)
}

func (l *defaultLogger) Infof(format string, args ...any) {
	l.out.Printf("INFO: "+format, args...)
}

func (l *defaultLogger) Warnf(format string, args ...any) {
	l.out.Printf("WARN: "+format, args...)
}

func (l *defaultLogger) Errorf(format string, args ...any) {
	l.out.Printf("ERROR: "+format, args...)
}

func (l *defaultLogger) DebugEnabled() bool {
	return l.debug.Load()
}

func (l *defaultLogger) SetDebug(enabled bool) {
	l.debug.Store(enabled)
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything. Useful in tests.
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
