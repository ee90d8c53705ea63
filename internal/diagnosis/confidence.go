package diagnosis

import (
	"math"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

// Confidence weights. The score measures how complete the evidence is,
// not whether the diagnosis is right.
const (
	knownCodeWeight    = 30.0
	perStackWeight     = 5.0
	maxStackWeight     = 30.0
	symbolWeight       = 25.0
	moduleMatchWeight  = 15.0
	minConfidenceScore = 0
	maxConfidenceScore = 100
)

func ScoreConfidence(snap *snapshot.CrashSnapshot) int {
	score := 0.0

	if hasKnownCode(snap.Exception.Code) {
		score += knownCodeWeight
	}

	stacks := 0
	for _, t := range snap.Threads {
		if len(t.StackTrace) > 0 {
			stacks++
		}
	}
	score += math.Min(maxStackWeight, perStackWeight*float64(stacks))

	if total := len(snap.Modules); total > 0 {
		withSymbols := 0
		for _, m := range snap.Modules {
			if m.HasSymbols {
				withSymbols++
			}
		}
		score += math.Min(symbolWeight, symbolWeight*float64(withSymbols)/float64(total))
	}

	if snap.Exception.Module != "" {
		if _, ok := snap.FindModule(snap.Exception.Module); ok {
			score += moduleMatchWeight
		}
	}

	return clampScore(int(math.Round(score)))
}

func clampScore(score int) int {
	return max(minConfidenceScore, min(maxConfidenceScore, score))
}
