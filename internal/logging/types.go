package logging

import "fmt"

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// LevelError is returned by ParseLevel for an unrecognized level name
type LevelError struct {
	Level string
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("invalid level: %s (must be DEBUG, INFO, WARN or ERROR)", e.Level)
}

// LogField represents a structured logging field
type LogField struct {
	Key   string
	Value interface{}
}

// Field creates a structured logging field
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

type Logger struct {
	name   string
	fields map[string]interface{}
}

func cloneFields(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
