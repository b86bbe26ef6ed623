// Package logsink is the process-wide logging sink: a single,
// thread-safe object created once at startup, wrapping
// gopkg.in/Sirupsen/logrus.v0. It exposes the two write paths spec
// section 6 names — a leveled write with file/line context for general
// logging, and a separate device-channel write for device TX output —
// plus SetLevel and a nil-safe SetOutputHandler for in-TUI mirroring.
package logsink

import (
	"fmt"
	"io"
	"sync"

	logrus "gopkg.in/Sirupsen/logrus.v0"
)

// Level is the sink's own level enum. logrus.v0 predates Trace; TraceLevel
// maps onto logrus's DebugLevel rather than being dropped.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel parses the debugger's "log <level>" command argument (spec
// 4.8). An unrecognized name leaves the sink's level unchanged; callers
// should check ok.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return 0, false
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelTrace, LevelDebug:
		return logrus.DebugLevel
	case LevelInfo:
		return logrus.InfoLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// OutputHandler mirrors a rendered log line somewhere else (the
// controller's in-TUI console, typically). It may be called from any
// thread and must not block for long.
type OutputHandler func(line string)

// Sink is the single process-wide logging object. The zero value is not
// usable; construct with New.
type Sink struct {
	mu      sync.RWMutex
	logger  *logrus.Logger
	handler OutputHandler
}

// New builds a Sink at LevelInfo with no output handler installed.
func New() *Sink {
	l := logrus.New()
	l.Level = logrus.InfoLevel
	return &Sink{logger: l}
}

// SetLevel changes the sink's minimum emitted level. Safe to call
// concurrently with Write/WriteDevice.
func (s *Sink) SetLevel(level Level) {
	s.mu.Lock()
	s.logger.Level = level.logrusLevel()
	s.mu.Unlock()
}

// SetOutputHandler installs (or, with a nil handler, removes) the mirror
// callback. Safe to call at any time from any thread, per spec 9's
// "set_output_handler(None) must be safe at any time".
func (s *Sink) SetOutputHandler(handler OutputHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// SetOutput redirects the sink's rendered lines to w, used when
// log_file_base (spec 6) names a file to log to instead of the default
// stream. Grounded on logger.cpp's Output::open, which swaps the
// backing FILE* a log line is written to rather than adding a second
// stream.
func (s *Sink) SetOutput(w io.Writer) {
	s.mu.Lock()
	s.logger.Out = w
	s.mu.Unlock()
}

// Write is the general leveled log path: write(level, file, line, fmt, args).
func (s *Sink) Write(level Level, file string, line int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.mu.RLock()
	entry := s.logger.WithFields(logrus.Fields{"file": file, "line": line})
	handler := s.handler
	if s.logger.Level < level.logrusLevel() {
		handler = nil
	}
	s.mu.RUnlock()

	switch level {
	case LevelTrace, LevelDebug:
		entry.Debug(msg)
	case LevelWarn:
		entry.Warn(msg)
	case LevelError:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
	if handler != nil {
		handler(msg)
	}
}

// WriteDevice is the device-channel write path: write(fmt, args), used by
// device TX flushes (UART) so device byte streams don't carry the
// file/line framing of the general log path. Satisfies
// internal/device's DeviceLog interface.
func (s *Sink) WriteDevice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.mu.RLock()
	entry := s.logger.WithField("channel", "device")
	handler := s.handler
	s.mu.RUnlock()

	entry.Info(msg)
	if handler != nil {
		handler(msg)
	}
}

// DeviceChannel adapts a Sink's WriteDevice method to the single-method
// shape internal/device.DeviceLog expects, since Sink itself exposes
// both write paths under different signatures.
type DeviceChannel struct{ Sink *Sink }

func (d DeviceChannel) Write(format string, args ...any) { d.Sink.WriteDevice(format, args...) }
