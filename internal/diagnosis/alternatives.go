package diagnosis

var alternativeRules = []adviceRule{
	{
		Name:    "access violation",
		Applies: categoryContains("access violation"),
		Advice: []string{
			"Hardware memory fault rather than a software defect",
			"Third-party code injected into the process corrupted state",
		},
	},
	{
		Name:    "stack overflow",
		Applies: func(f Findings) bool { return f.StackOverflow },
		Advice: []string{
			"Legitimately deep call chain on an undersized thread stack",
		},
	},
	{
		Name:    "deadlock",
		Applies: func(f Findings) bool { return f.DeadlockDetected },
		Advice: []string{
			"Threads were waiting on slow I/O rather than on each other",
		},
	},
	{
		Name:    "memory corruption",
		Applies: func(f Findings) bool { return f.MemoryCorruption },
		Advice: []string{
			"Corruption originated in a different module than the one that faulted",
		},
	},
	{
		Name:    "thread state",
		Applies: hasEvidence(EvidenceThreadState),
		Advice: []string{
			"Priority inversion between waiting threads",
			"Resource starvation from an exhausted thread pool",
		},
	},
	{
		Name:    "register state",
		Applies: hasEvidence(EvidenceRegisterState),
		Advice: []string{
			"Uninitialized variable rather than a freed object",
		},
	},
	{
		Name:    "heap corruption evidence",
		Applies: hasEvidence(EvidenceHeapCorruption),
		Advice: []string{
			"Race condition between threads sharing the heap block",
		},
	},
	{
		Name:    "problem modules",
		Applies: func(f Findings) bool { return len(f.ProblemModules) > 0 },
		Advice: []string{
			"Incompatible module version loaded at runtime",
		},
	},
}

// GenerateAlternatives lists the non-primary candidate causes, then every
// matching counter-hypothesis. Alternatives are listed, not ranked.
func GenerateAlternatives(f Findings) []string {
	out := newOrderedSet()
	if len(f.PossibleCauses) > 1 {
		out.add(f.PossibleCauses[1:]...)
	}
	for _, rule := range alternativeRules {
		if rule.Applies(f) {
			out.add(rule.Advice...)
		}
	}
	return out.items
}
