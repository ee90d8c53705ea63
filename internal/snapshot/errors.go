package snapshot

import "fmt"

// FormatError reports input that cannot be decoded into a CrashSnapshot.
// Offset is -1 when the failure is not tied to a byte position.
type FormatError struct {
	Source string
	Offset int64
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	if e.Source != "" {
		msg = fmt.Sprintf("%s: %s", e.Source, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "invalid snapshot: " + msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(source string, offset int64, err error, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Source: source,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
