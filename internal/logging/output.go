package logging

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

var levelColors = map[LogLevel]*color.Color{
	DEBUG: color.New(color.FgHiBlack),
	INFO:  color.New(color.FgCyan),
	WARN:  color.New(color.FgYellow, color.Bold),
	ERROR: color.New(color.FgRed, color.Bold),
}

// writeLog renders one record. Fields are sorted by key so output is stable.
func (l *Logger) writeLog(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder

	tag := level.String()
	if c, ok := levelColors[level]; ok {
		tag = c.Sprint(tag)
	}

	fmt.Fprintf(&b, "[%s] [%s] %s: %s", GetTimestamp(), tag, l.name, msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	b.WriteByte('\n')

	outputMu.Lock()
	defer outputMu.Unlock()
	_, _ = output.Write([]byte(b.String()))
}

func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	l.writeLog(level, formatted, l.fields)
}

// GetTimestamp returns an RFC3339 timestamp, or LOG_TIMESTAMP when set
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
