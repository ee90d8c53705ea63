package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

func TestScanModules(t *testing.T) {
	snap := &snapshot.CrashSnapshot{
		Exception: snapshot.ExceptionRecord{Module: "plugin.dll"},
		Modules: []snapshot.ModuleRecord{
			{Name: "app.exe", HasSymbols: true},
			{Name: "plugin.dll"},
			{Name: "ntdll.dll", IsSystemModule: true},
			{Name: "TestHarness.dll", HasSymbols: true},
			{Name: "vendor.dll"},
			{Name: "kernel_DEBUG.dll", HasSymbols: true, IsSystemModule: true},
		},
	}

	problems := ScanModules(snap, DefaultSuspiciousPatterns)

	assert.Equal(t, []string{"plugin.dll", "vendor.dll", "TestHarness.dll", "kernel_DEBUG.dll"}, problems)
}

func TestScanModulesEdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		snap     *snapshot.CrashSnapshot
		patterns []string
		expected []string
	}{
		{
			name:     "empty snapshot",
			snap:     &snapshot.CrashSnapshot{},
			patterns: DefaultSuspiciousPatterns,
			expected: []string{},
		},
		{
			name:     "faulting module absent from module list",
			snap:     &snapshot.CrashSnapshot{Exception: snapshot.ExceptionRecord{Module: "ghost.dll"}},
			patterns: DefaultSuspiciousPatterns,
			expected: []string{"ghost.dll"},
		},
		{
			name: "no duplicates when several rules match",
			snap: &snapshot.CrashSnapshot{
				Exception: snapshot.ExceptionRecord{Module: "unknown_test.dll"},
				Modules:   []snapshot.ModuleRecord{{Name: "unknown_test.dll"}},
			},
			patterns: DefaultSuspiciousPatterns,
			expected: []string{"unknown_test.dll"},
		},
		{
			name: "custom patterns",
			snap: &snapshot.CrashSnapshot{
				Modules: []snapshot.ModuleRecord{
					{Name: "inject64.dll", HasSymbols: true},
					{Name: "debug.dll", HasSymbols: true},
				},
			},
			patterns: []string{"INJECT"},
			expected: []string{"inject64.dll"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScanModules(tt.snap, tt.patterns))
		})
	}
}
