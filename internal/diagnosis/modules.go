package diagnosis

import (
	"strings"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

var DefaultSuspiciousPatterns = []string{"unknown", "debug", "test", "corrupted", "unsigned"}

// ScanModules returns implicated module names in first-seen order: the
// faulting module, non-system modules without symbols, then suspicious names.
func ScanModules(snap *snapshot.CrashSnapshot, patterns []string) []string {
	problems := []string{}
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			problems = append(problems, name)
		}
	}

	add(snap.Exception.Module)

	for _, m := range snap.Modules {
		if !m.IsSystemModule && !m.HasSymbols {
			add(m.Name)
		}
	}

	for _, m := range snap.Modules {
		name := strings.ToLower(m.Name)
		for _, p := range patterns {
			if p != "" && strings.Contains(name, strings.ToLower(p)) {
				add(m.Name)
				break
			}
		}
	}

	return problems
}
