// Package logging provides the leveled, named logger used across dumpdiag.
//
// Initialize the global level once at startup, then obtain a logger per component:
//
//	logging.Initialize("debug")
//	logger := logging.GetLogger("diagnosis.engine")
//	logger.Debug("classified exception as %s", category)
//
// Child loggers carry persistent fields:
//
//	logger.WithField("source", path).Info("snapshot decoded")
//
// Output is one line per record, `[ts] [LEVEL] name: msg | k=v`, written to
// stderr unless SetOutput is called. LOG_TIMESTAMP overrides the timestamp so
// tests can assert exact lines.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
)

var (
	globalLevel = INFO
	output      io.Writer = os.Stderr
	outputMu    sync.Mutex
)

// Initialize sets the global level. Unknown level names fall back to INFO.
func Initialize(levelStr string) {
	level, err := ParseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	outputMu.Lock()
	globalLevel = level
	outputMu.Unlock()
}

// SetOutput redirects every logger to w. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()

	prev := output
	output = w
	return prev
}

// GetLogger returns a logger with the specified name
func GetLogger(name string) *Logger {
	return &Logger{
		name:   name,
		fields: make(map[string]interface{}),
	}
}

func (l *Logger) shouldLog(level LogLevel) bool {
	outputMu.Lock()
	defer outputMu.Unlock()
	return level >= globalLevel
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(DEBUG, msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(INFO, msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(WARN, msg, args...)
	}
}

func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(ERROR, msg, args...)
	}
}

// ErrorWithErr logs msg followed by err
func (l *Logger) ErrorWithErr(msg string, err error) {
	if l.shouldLog(ERROR) {
		l.logf(ERROR, msg+" - %v", err)
	}
}

// WithField returns a child logger that adds key=value to every record
func (l *Logger) WithField(key string, value interface{}) *Logger {
	child := &Logger{name: l.name, fields: cloneFields(l.fields)}
	child.fields[key] = value
	return child
}

// WithFields returns a child logger carrying all of fields
func (l *Logger) WithFields(fields ...LogField) *Logger {
	child := &Logger{name: l.name, fields: cloneFields(l.fields)}
	for _, f := range fields {
		child.fields[f.Key] = f.Value
	}
	return child
}

func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.logWithFields(DEBUG, msg, fields...)
	}
}

func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.logWithFields(INFO, msg, fields...)
	}
}

func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.logWithFields(WARN, msg, fields...)
	}
}

func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.logWithFields(ERROR, msg, fields...)
	}
}

// Method fields override persistent fields with the same key
func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	merged := cloneFields(l.fields)
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	l.writeLog(level, msg, merged)
}

// ParseLevel converts a level name to a LogLevel
func ParseLevel(levelStr string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, &LevelError{Level: levelStr}
	}
}
