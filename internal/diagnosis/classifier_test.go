package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

func TestClassifyException(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		category    string
		severity    Severity
		rootCause   string
	}{
		{
			name:        "access violation code",
			code:        CodeAccessViolation,
			description: "Access violation reading location 0x0",
			category:    "Access Violation",
			severity:    SeverityCritical,
			rootCause:   "Null pointer dereference",
		},
		{
			name:      "access violation by numeric code",
			code:      "0xC0000005",
			category:  "Access Violation",
			severity:  SeverityCritical,
			rootCause: "Null pointer dereference",
		},
		{
			name:      "stack overflow",
			code:      CodeStackOverflow,
			category:  "Stack Overflow",
			severity:  SeverityCritical,
			rootCause: "Infinite recursion",
		},
		{
			name:        "heap corruption from description",
			code:        "0xC0000374",
			description: "A heap has been corrupted",
			category:    "Heap Corruption",
			severity:    SeverityCritical,
			rootCause:   "Heap buffer overrun",
		},
		{
			name:      "divide by zero",
			code:      "EXCEPTION_INT_DIVIDE_BY_ZERO",
			category:  "Integer Divide By Zero",
			severity:  SeverityHigh,
			rootCause: "Unvalidated divisor",
		},
		{
			name:        "posix signal in description",
			code:        "",
			description: "Fatal signal SIGSEGV in thread 4",
			category:    "Access Violation",
			severity:    SeverityCritical,
			rootCause:   "Null pointer dereference",
		},
		{
			name:      "breakpoint",
			code:      "EXCEPTION_BREAKPOINT",
			category:  "Breakpoint",
			severity:  SeverityMedium,
			rootCause: "Hard-coded breakpoint left in release build",
		},
		{
			name:      "c++ exception",
			code:      "0xE06D7363",
			category:  "Cpp Exception",
			severity:  SeverityMedium,
			rootCause: "Uncaught C++ exception",
		},
		{
			name:        "first matching rule wins",
			code:        CodeAccessViolation,
			description: "stack overflow suspected",
			category:    "Access Violation",
			severity:    SeverityCritical,
			rootCause:   "Null pointer dereference",
		},
		{
			name:      "unknown sentinel",
			code:      CodeUnknown,
			category:  "Unknown Exception",
			severity:  SeverityMedium,
			rootCause: "insufficient information to determine cause",
		},
		{
			name:      "empty exception",
			category:  "Unknown Exception",
			severity:  SeverityMedium,
			rootCause: "insufficient information to determine cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyException(snapshot.ExceptionRecord{Code: tt.code, Description: tt.description})

			assert.Equal(t, tt.category, c.Category)
			assert.Equal(t, tt.severity, c.Severity)
			assert.Equal(t, tt.rootCause, c.RootCause)
			assert.Equal(t, tt.rootCause, c.PossibleCauses[0])
		})
	}
}

func TestUnknownCausesFlagMissingDebugInfo(t *testing.T) {
	c := ClassifyException(snapshot.ExceptionRecord{})
	assert.Contains(t, c.PossibleCauses, "Debug symbols missing for faulting module")
}

func TestClassificationDoesNotShareRuleTable(t *testing.T) {
	c := ClassifyException(snapshot.ExceptionRecord{Code: CodeAccessViolation})
	c.PossibleCauses[0] = "mutated"

	again := ClassifyException(snapshot.ExceptionRecord{Code: CodeAccessViolation})
	assert.Equal(t, "Null pointer dereference", again.RootCause)
	assert.Equal(t, "Null pointer dereference", again.PossibleCauses[0])
}

func TestCategoryLabel(t *testing.T) {
	assert.Equal(t, "Access Violation", categoryLabel("ACCESS_VIOLATION"))
	assert.Equal(t, "Integer Divide By Zero", categoryLabel("INTEGER_DIVIDE_BY_ZERO"))
	assert.Equal(t, "Abort", categoryLabel("ABORT"))
}

func TestEveryRuleHasCauses(t *testing.T) {
	seen := make(map[string]bool)
	for _, rule := range classificationRules {
		assert.NotEmpty(t, rule.Keywords, rule.ID)
		assert.NotEmpty(t, rule.Causes, rule.ID)
		assert.False(t, seen[rule.ID], "duplicate rule %s", rule.ID)
		seen[rule.ID] = true
	}
}
