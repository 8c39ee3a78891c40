package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Severity represents log message severity levels
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a command-line level name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "debug":
		return SeverityDebug, nil
	case "info", "":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	}
	return SeverityInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the logging contract shared by the scanner, patches and hooks.
type Logger interface {
	// Log logs a message with the specified severity
	Log(severity Severity, msg string)

	// Logf logs a formatted message with the specified severity
	Logf(severity Severity, format string, args ...any)

	Error(err error)
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
}

// StdLogger implements Logger on top of the standard log package.
// Debug, info and warning go to stdout; errors go to stderr.
type StdLogger struct {
	loggers  [4]*log.Logger
	minLevel Severity
}

// NewStdLogger creates a logger writing to the process stdout/stderr.
func NewStdLogger(minLevel Severity) *StdLogger {
	return NewStdLoggerWithWriter(os.Stdout, os.Stderr, minLevel, "")
}

// NewStdLoggerWithWriter creates a logger with custom writers. A non-empty
// component is placed in front of every message.
func NewStdLoggerWithWriter(stdout, stderr io.Writer, minLevel Severity, component string) *StdLogger {
	prefix := func(s Severity) string {
		if component == "" {
			return s.String() + ": "
		}
		return s.String() + ": [" + component + "] "
	}
	return &StdLogger{
		loggers: [4]*log.Logger{
			SeverityDebug:   log.New(stdout, prefix(SeverityDebug), log.Ltime|log.Lshortfile|log.Lmsgprefix),
			SeverityInfo:    log.New(stdout, prefix(SeverityInfo), log.Ltime|log.Lmsgprefix),
			SeverityWarning: log.New(stdout, prefix(SeverityWarning), log.Ltime|log.Lmsgprefix),
			SeverityError:   log.New(stderr, prefix(SeverityError), log.Ltime|log.Lshortfile|log.Lmsgprefix),
		},
		minLevel: minLevel,
	}
}

// Enabled reports whether messages at severity would be written.
func (l *StdLogger) Enabled(severity Severity) bool {
	return severity >= l.minLevel && severity <= SeverityError
}

// Log logs a message with the specified severity
func (l *StdLogger) Log(severity Severity, msg string) { l.output(severity, msg) }

// output must be called directly by an exported method so file:line names
// that method's caller.
func (l *StdLogger) output(severity Severity, msg string) {
	if !l.Enabled(severity) {
		return
	}
	l.loggers[severity].Output(3, msg)
}

// Logf logs a formatted message with the specified severity
func (l *StdLogger) Logf(severity Severity, format string, args ...any) {
	if !l.Enabled(severity) {
		return
	}
	l.loggers[severity].Output(2, fmt.Sprintf(format, args...))
}

// Error logs an error
func (l *StdLogger) Error(err error) {
	if err != nil && l.Enabled(SeverityError) {
		l.loggers[SeverityError].Output(2, err.Error())
	}
}

func (l *StdLogger) Debug(msg string)   { l.output(SeverityDebug, msg) }
func (l *StdLogger) Info(msg string)    { l.output(SeverityInfo, msg) }
func (l *StdLogger) Warning(msg string) { l.output(SeverityWarning, msg) }

// NoOpLogger is a logger that doesn't log anything
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-op logger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Log(severity Severity, msg string)                  {}
func (l *NoOpLogger) Logf(severity Severity, format string, args ...any) {}
func (l *NoOpLogger) Error(err error)                                    {}
func (l *NoOpLogger) Debug(msg string)                                   {}
func (l *NoOpLogger) Info(msg string)                                    {}
func (l *NoOpLogger) Warning(msg string)                                 {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NewNoOpLogger()
	}
	return l
}
