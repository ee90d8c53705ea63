package diagnosis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

func TestAnalyzeStackDepthTriggered(t *testing.T) {
	snap := &snapshot.CrashSnapshot{
		Exception: snapshot.ExceptionRecord{Code: CodeUnknown},
		Threads: []snapshot.ThreadRecord{
			{ID: 1, StackTrace: frames(3, "app.exe", "idle")},
			{
				ID:           2,
				IsMainThread: true,
				StackTrace:   frames(60, "app.exe", "walk"),
				Stack:        &snapshot.StackBounds{Base: 0x100000, Limit: 0x0f0000},
			},
		},
	}

	result := AnalyzeStack(snap, DefaultStackDepthThreshold)

	assert.True(t, result.Overflow)
	require.NotNil(t, result.Analysis)
	assert.True(t, result.Analysis.OverflowDetected)
	assert.Equal(t, "intact", result.Analysis.GuardPageStatus)
	assert.Equal(t, 60, result.Analysis.Depth)
	require.NotNil(t, result.Analysis.ThreadID)
	assert.Equal(t, uint32(2), *result.Analysis.ThreadID)
	require.NotNil(t, result.Analysis.StackRange)
	assert.Equal(t, uint64(0x10000), result.Analysis.StackRange.Size())
	assert.Equal(t, "app.exe!walk", result.Analysis.RecursionFrame)
	assert.Equal(t, 60, result.Analysis.RecursionCount)

	require.Len(t, result.Evidence, 1)
	assert.Equal(t, EvidenceInstructionAnalysis, result.Evidence[0].Kind)
	assert.Equal(t, 95, result.Evidence[0].Confidence)
}

func TestAnalyzeStackTriggers(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		depth     int
		threshold int
		overflow  bool
		guard     string
	}{
		{"code triggered", CodeStackOverflow, 5, 50, true, "violated"},
		{"code triggered with deep stack", "exception_stack_overflow", 80, 50, true, "violated"},
		{"exactly at threshold", "", 50, 50, false, ""},
		{"one past threshold", "", 51, 50, true, "intact"},
		{"custom threshold", "", 21, 20, true, "intact"},
		{"non-positive threshold uses default", "", 51, 0, true, "intact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &snapshot.CrashSnapshot{
				Exception: snapshot.ExceptionRecord{Code: tt.code},
				Threads:   []snapshot.ThreadRecord{{ID: 1, StackTrace: frames(tt.depth, "app.exe", "f")}},
			}

			result := AnalyzeStack(snap, tt.threshold)

			assert.Equal(t, tt.overflow, result.Overflow)
			if !tt.overflow {
				assert.Nil(t, result.Analysis)
				assert.Empty(t, result.Evidence)
				return
			}
			assert.Equal(t, tt.guard, result.Analysis.GuardPageStatus)
		})
	}
}

func TestAnalyzeStackWithoutThreads(t *testing.T) {
	result := AnalyzeStack(&snapshot.CrashSnapshot{Exception: snapshot.ExceptionRecord{Code: CodeStackOverflow}}, 50)

	assert.True(t, result.Overflow)
	assert.Equal(t, 0, result.Analysis.Depth)
	assert.Nil(t, result.Analysis.StackRange)
	assert.Nil(t, result.Analysis.ThreadID)

	require.Len(t, result.Evidence, 1)
	assert.Equal(t, "Stack overflow exception raised; no thread stacks were captured", result.Evidence[0].Description)
	assert.NotContains(t, result.Evidence[0].Description, "thread 0")

	data, err := json.Marshal(result.Analysis)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "threadId")
}

func TestRecursionSignature(t *testing.T) {
	stack := []snapshot.StackFrame{
		{Module: "app.exe", Function: "parse"},
		{Module: "app.exe", Function: "visit"},
		{Module: "app.exe", Function: "parse"},
		{Module: "app.exe", Function: "visit"},
		{Module: "app.exe", Function: "main"},
		{Module: "ntdll.dll"},
	}

	frame, count := recursionSignature(stack)
	assert.Equal(t, "app.exe!parse", frame)
	assert.Equal(t, 2, count)

	frame, count = recursionSignature(stack[3:])
	assert.Empty(t, frame)
	assert.Zero(t, count)
}
