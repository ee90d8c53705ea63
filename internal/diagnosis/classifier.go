package diagnosis

import (
	"strings"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

const (
	unknownCategory  = "Unknown Exception"
	unknownRootCause = "insufficient information to determine cause"
)

type classificationRule struct {
	ID       string
	Keywords []string
	Severity Severity
	Causes   []string
}

// Ordered, first match wins. Keywords are matched against the lower-cased
// "code description" text.
var classificationRules = []classificationRule{
	{
		ID:       "ACCESS_VIOLATION",
		Keywords: []string{"exception_access_violation", "access violation", "0xc0000005", "segmentation fault", "sigsegv"},
		Severity: SeverityCritical,
		Causes: []string{
			"Null pointer dereference",
			"Use-after-free",
			"Buffer overflow",
			"Dangling pointer access",
			"Invalid pointer arithmetic",
		},
	},
	{
		ID:       "STACK_OVERFLOW",
		Keywords: []string{"exception_stack_overflow", "stack overflow", "0xc00000fd"},
		Severity: SeverityCritical,
		Causes: []string{
			"Infinite recursion",
			"Excessive stack allocation",
			"Unbounded call chain",
		},
	},
	{
		ID:       "HEAP_CORRUPTION",
		Keywords: []string{"status_heap_corruption", "heap corruption", "0xc0000374"},
		Severity: SeverityCritical,
		Causes: []string{
			"Heap buffer overrun",
			"Double free",
			"Use-after-free",
			"Mismatched allocator and deallocator",
		},
	},
	{
		ID:       "ILLEGAL_INSTRUCTION",
		Keywords: []string{"exception_illegal_instruction", "illegal instruction", "0xc000001d", "sigill"},
		Severity: SeverityHigh,
		Causes: []string{
			"Corrupted code pointer",
			"CPU feature not supported by processor",
			"Damaged executable image",
		},
	},
	{
		ID:       "PRIVILEGED_INSTRUCTION",
		Keywords: []string{"exception_priv_instruction", "privileged instruction", "0xc0000096"},
		Severity: SeverityHigh,
		Causes: []string{
			"Kernel-mode instruction executed in user mode",
			"Corrupted code pointer",
		},
	},
	{
		ID:       "INTEGER_DIVIDE_BY_ZERO",
		Keywords: []string{"exception_int_divide_by_zero", "divide by zero", "0xc0000094", "sigfpe"},
		Severity: SeverityHigh,
		Causes: []string{
			"Unvalidated divisor",
			"Uninitialized variable used as divisor",
		},
	},
	{
		ID:       "IN_PAGE_ERROR",
		Keywords: []string{"exception_in_page_error", "in page error", "0xc0000006"},
		Severity: SeverityHigh,
		Causes: []string{
			"Paging file or network share unavailable",
			"Storage device I/O failure",
		},
	},
	{
		ID:       "OUT_OF_MEMORY",
		Keywords: []string{"out of memory", "status_no_memory", "0xc0000017", "bad_alloc"},
		Severity: SeverityHigh,
		Causes: []string{
			"Memory leak exhausted address space",
			"Allocation request too large",
			"Heap fragmentation",
		},
	},
	{
		ID:       "DATATYPE_MISALIGNMENT",
		Keywords: []string{"exception_datatype_misalignment", "misalignment", "0x80000002", "sigbus"},
		Severity: SeverityMedium,
		Causes: []string{
			"Unaligned pointer cast",
			"Packed structure accessed without alignment",
		},
	},
	{
		ID:       "STACK_BUFFER_OVERRUN",
		Keywords: []string{"status_stack_buffer_overrun", "stack buffer overrun", "0xc0000409", "fail fast"},
		Severity: SeverityCritical,
		Causes: []string{
			"Stack cookie overwritten by buffer overflow",
			"Fail-fast triggered by security check",
		},
	},
	{
		ID:       "ABORT",
		Keywords: []string{"abort", "assertion", "sigabrt", "0x40000015"},
		Severity: SeverityHigh,
		Causes: []string{
			"Failed assertion",
			"Explicit abort on unrecoverable error",
		},
	},
	{
		ID:       "APPLICATION_HANG",
		Keywords: []string{"application hang", "not responding", "deadlock", "watchdog"},
		Severity: SeverityHigh,
		Causes: []string{
			"Deadlock between threads",
			"Blocking call on UI thread",
			"Livelock",
		},
	},
	{
		ID:       "BREAKPOINT",
		Keywords: []string{"exception_breakpoint", "breakpoint", "0x80000003", "sigtrap"},
		Severity: SeverityMedium,
		Causes: []string{
			"Hard-coded breakpoint left in release build",
			"Debugger-only code path reached",
		},
	},
	{
		ID:       "CPP_EXCEPTION",
		Keywords: []string{"0xe06d7363", "c++ exception", "unhandled exception"},
		Severity: SeverityMedium,
		Causes: []string{
			"Uncaught C++ exception",
			"Exception thrown across module boundary",
		},
	},
}

var unknownCauses = []string{
	unknownRootCause,
	"Debug symbols missing for faulting module",
	"Dump captured without full memory",
}

type Classification struct {
	Category       string
	Severity       Severity
	RootCause      string
	PossibleCauses []string
}

func ClassifyException(exc snapshot.ExceptionRecord) Classification {
	text := strings.ToLower(exc.Code + " " + exc.Description)

	for _, rule := range classificationRules {
		if matchesAny(text, rule.Keywords) {
			return Classification{
				Category:       categoryLabel(rule.ID),
				Severity:       rule.Severity,
				RootCause:      rule.Causes[0],
				PossibleCauses: append([]string(nil), rule.Causes...),
			}
		}
	}

	return Classification{
		Category:       unknownCategory,
		Severity:       SeverityMedium,
		RootCause:      unknownRootCause,
		PossibleCauses: append([]string(nil), unknownCauses...),
	}
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// categoryLabel turns ACCESS_VIOLATION into "Access Violation"
func categoryLabel(id string) string {
	words := strings.Split(strings.ToLower(id), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
