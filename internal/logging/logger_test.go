package logging

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	t.Setenv("LOG_TIMESTAMP", "2024-01-01T00:00:00Z")

	noColor := color.NoColor
	color.NoColor = true

	buf := &bytes.Buffer{}
	prev := SetOutput(buf)
	Initialize(level)

	t.Cleanup(func() {
		SetOutput(prev)
		Initialize("info")
		color.NoColor = noColor
	})
	return buf
}

func TestLoggerFormat(t *testing.T) {
	buf := captureOutput(t, "debug")

	GetLogger("diagnosis.engine").Info("classified %d rules", 3)

	assert.Equal(t, "[2024-01-01T00:00:00Z] [INFO] diagnosis.engine: classified 3 rules\n", buf.String())
}

func TestLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func(l *Logger)
		expected bool
	}{
		{"debug hidden at info", "info", func(l *Logger) { l.Debug("x") }, false},
		{"info shown at info", "info", func(l *Logger) { l.Info("x") }, true},
		{"warn hidden at error", "error", func(l *Logger) { l.Warn("x") }, false},
		{"error shown at warn", "warn", func(l *Logger) { l.Error("x") }, true},
		{"unknown level falls back to info", "verbose", func(l *Logger) { l.Info("x") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t, tt.level)
			tt.logFn(GetLogger("test"))
			assert.Equal(t, tt.expected, buf.Len() > 0)
		})
	}
}

func TestLoggerFieldsSortedAndMerged(t *testing.T) {
	buf := captureOutput(t, "debug")

	logger := GetLogger("snapshot").WithField("source", "a.json").WithField("bytes", 42)
	logger.InfoWithFields("decoded", Field("threads", 2), Field("source", "b.json"))

	assert.Equal(t,
		"[2024-01-01T00:00:00Z] [INFO] snapshot: decoded | bytes=42 source=b.json threads=2\n",
		buf.String())
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	parent := GetLogger("p")
	child := parent.WithField("k", "v")

	assert.Empty(t, parent.fields)
	assert.Equal(t, "v", child.fields["k"])
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, WARN, level)

	_, err = ParseLevel("loud")
	var levelErr *LevelError
	require.ErrorAs(t, err, &levelErr)
	assert.Equal(t, "loud", levelErr.Level)
}
