package diagnosis

import "strings"

// Findings is what the advisory tables key on. It is assembled from analyzer
// results that are already final.
type Findings struct {
	Category         string
	StackOverflow    bool
	DeadlockDetected bool
	MemoryCorruption bool
	ProblemModules   []string
	PossibleCauses   []string
	EvidenceKinds    map[EvidenceKind]bool
}

type adviceRule struct {
	Name    string
	Applies func(f Findings) bool
	Advice  []string
}

func categoryContains(words ...string) func(f Findings) bool {
	return func(f Findings) bool {
		category := strings.ToLower(f.Category)
		for _, w := range words {
			if strings.Contains(category, w) {
				return true
			}
		}
		return false
	}
}

func hasEvidence(kind EvidenceKind) func(f Findings) bool {
	return func(f Findings) bool {
		return f.EvidenceKinds[kind]
	}
}

// ===== RECOMMENDATIONS =====

var recommendationRules = []adviceRule{
	{
		Name:    "access violation",
		Applies: categoryContains("access violation"),
		Advice: []string{
			"Check pointers for null before dereferencing",
			"Run the workload under AddressSanitizer or Application Verifier to catch invalid accesses",
			"Review object lifetimes around the faulting function for use-after-free",
		},
	},
	{
		Name:    "heap corruption category",
		Applies: categoryContains("heap corruption"),
		Advice: []string{
			"Enable full page heap (gflags /p /enable) to trap the corrupting write",
			"Audit allocation and free pairs for double frees and mismatched allocators",
		},
	},
	{
		Name:    "stack overflow",
		Applies: func(f Findings) bool { return f.StackOverflow },
		Advice: []string{
			"Look for unbounded recursion in the repeated frames of the main thread",
			"Move large local buffers to the heap",
			"Increase the thread stack reservation only after ruling out recursion",
		},
	},
	{
		Name:    "deadlock",
		Applies: func(f Findings) bool { return f.DeadlockDetected },
		Advice: []string{
			"Establish a global lock acquisition order",
			"Use timed waits so blocked threads can report contention",
			"Shrink the scope of held locks around blocking calls",
		},
	},
	{
		Name:    "memory corruption",
		Applies: func(f Findings) bool { return f.MemoryCorruption },
		Advice: []string{
			"Enable full page heap (gflags /p /enable) to trap the corrupting write",
			"Check buffer bounds on every copy into heap allocations",
		},
	},
	{
		Name:    "unknown exception",
		Applies: categoryContains("unknown"),
		Advice: []string{
			"Load debug symbols for the faulting module and re-run the analysis",
			"Capture a dump with full memory so the exception context can be recovered",
		},
	},
	{
		Name:    "divide by zero",
		Applies: categoryContains("divide"),
		Advice: []string{
			"Validate divisors before integer division",
		},
	},
	{
		Name:    "out of memory",
		Applies: categoryContains("out of memory"),
		Advice: []string{
			"Capture allocation snapshots over time to locate the leak",
			"Cap request sizes before allocating",
		},
	},
	{
		Name:    "problem modules",
		Applies: func(f Findings) bool { return len(f.ProblemModules) > 0 },
		Advice: []string{
			"Update or reinstall the implicated modules and verify their signatures",
			"Obtain symbols for the implicated modules and re-analyze the dump",
		},
	},
}

var generalAdvice = []string{
	"Reproduce the crash with a debug build and full symbols",
	"Collect a full memory dump if this one is a minidump",
	"Check the vendor's known issues for the implicated versions",
}

// GenerateRecommendations evaluates every rule in order, then appends the
// general advice. Duplicates keep their first position.
func GenerateRecommendations(f Findings) []string {
	out := newOrderedSet()
	for _, rule := range recommendationRules {
		if rule.Applies(f) {
			out.add(rule.Advice...)
		}
	}
	out.add(generalAdvice...)
	return out.items
}

type orderedSet struct {
	items []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, seen: make(map[string]bool)}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if !s.seen[v] {
			s.seen[v] = true
			s.items = append(s.items, v)
		}
	}
}
