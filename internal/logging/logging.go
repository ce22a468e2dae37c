// Package logging wraps the standard library's log.Logger with level
// filtering: a thin wrapper rather than a full structured-logging
// dependency, since the daemon's log volume and audience do not
// warrant one.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level is one of the four verbosity tiers recognised by the daemon
// config's watchmen.log_level setting.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// ParseLevel maps a config string to a Level, defaulting to Info for an
// unrecognised value.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger is a level-filtered wrapper around *log.Logger. Safe for
// concurrent use; the underlying log.Logger already serialises writes.
type Logger struct {
	mu  sync.Mutex
	out *log.Logger
	min Level
}

// New builds a Logger writing to w with date and time prefixing, at the
// given minimum level.
func New(w io.Writer, min Level) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags), min: min}
}

// Default returns a Logger writing to stderr at Info level.
func Default() *Logger {
	return New(os.Stderr, Info)
}

// SetLevel adjusts the minimum emitted level at runtime.
func (l *Logger) SetLevel(min Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.min = min
}

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.min {
		return
	}
	l.out.Output(3, fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, format, args...) }

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...any) { l.log(Info, format, args...) }

// Warnf logs at Warn level.
func (l *Logger) Warnf(format string, args ...any) { l.log(Warn, format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, format, args...) }
