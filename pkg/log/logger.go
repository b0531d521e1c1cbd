// Package log provides the logging abstraction used across streamio.
// This abstraction allows swapping logging implementations.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides leveled logging capabilities.
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})
}

// Level filters log output; messages below the level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// leveledLogger implements Logger on Go's standard log package.
// Can be swapped with other logging implementations (e.g., structured loggers).
type leveledLogger struct {
	min         Level
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
}

// New creates a logger writing to w, dropping messages below min.
func New(w io.Writer, min Level) Logger {
	return &leveledLogger{
		min:         min,
		errorLogger: log.New(w, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		warnLogger:  log.New(w, "[WARN] ", log.LstdFlags|log.Lshortfile),
		infoLogger:  log.New(w, "[INFO] ", log.LstdFlags|log.Lshortfile),
		debugLogger: log.New(w, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
	}
}

// NewDefault creates the standard logger: stderr, info level and up.
func NewDefault() Logger {
	return New(os.Stderr, LevelInfo)
}

// NewNop creates a logger that discards everything. Useful as the
// default in library code where the caller did not provide one.
func NewNop() Logger {
	return New(io.Discard, LevelError+1)
}

func (l *leveledLogger) Error(args ...interface{}) {
	if l.min <= LevelError {
		l.errorLogger.Output(3, fmt.Sprint(args...))
	}
}

func (l *leveledLogger) Errorf(format string, args ...interface{}) {
	if l.min <= LevelError {
		l.errorLogger.Output(3, fmt.Sprintf(format, args...))
	}
}

func (l *leveledLogger) Warn(args ...interface{}) {
	if l.min <= LevelWarn {
		l.warnLogger.Output(3, fmt.Sprint(args...))
	}
}

func (l *leveledLogger) Warnf(format string, args ...interface{}) {
	if l.min <= LevelWarn {
		l.warnLogger.Output(3, fmt.Sprintf(format, args...))
	}
}

func (l *leveledLogger) Info(args ...interface{}) {
	if l.min <= LevelInfo {
		l.infoLogger.Output(3, fmt.Sprint(args...))
	}
}

func (l *leveledLogger) Infof(format string, args ...interface{}) {
	if l.min <= LevelInfo {
		l.infoLogger.Output(3, fmt.Sprintf(format, args...))
	}
}

func (l *leveledLogger) Debug(args ...interface{}) {
	if l.min <= LevelDebug {
		l.debugLogger.Output(3, fmt.Sprint(args...))
	}
}

func (l *leveledLogger) Debugf(format string, args ...interface{}) {
	if l.min <= LevelDebug {
		l.debugLogger.Output(3, fmt.Sprintf(format, args...))
	}
}
