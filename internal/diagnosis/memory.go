package diagnosis

import (
	"fmt"
	"strings"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

const (
	heapCorruptionConfidence = 90
	// One weak signal alone is not enough
	corruptionIndicatorThreshold = 2
)

var heapCorruptionPatterns = []string{
	"Heap buffer overrun",
	"Use-after-free",
	"Double free",
	"Heap metadata corruption",
}

type MemoryResult struct {
	Corruption bool
	Heap       *HeapAnalysis
	Evidence   []Evidence
}

type corruptionIndicators struct {
	accessViolation bool
	heapCode        bool
	description     bool
	suspectModule   bool
}

func (c corruptionIndicators) count() int {
	n := 0
	for _, ok := range []bool{c.accessViolation, c.heapCode, c.description, c.suspectModule} {
		if ok {
			n++
		}
	}
	return n
}

func (c corruptionIndicators) names() []string {
	var names []string
	if c.accessViolation {
		names = append(names, "access violation code")
	}
	if c.heapCode {
		names = append(names, "heap corruption code")
	}
	if c.description {
		names = append(names, "corruption in description")
	}
	if c.suspectModule {
		names = append(names, "unsigned or symbol-less module")
	}
	return names
}

func AnalyzeMemoryCorruption(snap *snapshot.CrashSnapshot) MemoryResult {
	exc := snap.Exception
	ind := corruptionIndicators{
		accessViolation: codeIs(exc.Code, CodeAccessViolation),
		heapCode:        codeIs(exc.Code, CodeHeapCorruption),
		description:     strings.Contains(strings.ToLower(exc.Description), "corruption"),
		suspectModule:   hasSuspectModule(snap.Modules),
	}

	result := MemoryResult{
		Corruption: ind.count() >= corruptionIndicatorThreshold,
	}
	if !result.Corruption || !(ind.accessViolation || ind.heapCode || ind.description) {
		return result
	}

	result.Heap = &HeapAnalysis{
		CorruptionDetected: true,
		CorruptionPatterns: append([]string(nil), heapCorruptionPatterns...),
		Blocks:             implicatedHeapBlocks(snap),
	}
	result.Evidence = []Evidence{{
		Kind:        EvidenceHeapCorruption,
		Description: fmt.Sprintf("Heap corruption indicated by %d of 4 signals", ind.count()),
		TechnicalDetails: fmt.Sprintf("signals: %s; implicated heap blocks: %d",
			strings.Join(ind.names(), ", "), len(result.Heap.Blocks)),
		Confidence: heapCorruptionConfidence,
		Address:    addressPtr(exc.Address),
	}}
	return result
}

func hasSuspectModule(modules []snapshot.ModuleRecord) bool {
	for _, m := range modules {
		name := strings.ToLower(m.Name)
		if name == "" || strings.Contains(name, "unknown") || strings.Contains(name, "unsigned") || !m.HasSymbols {
			return true
		}
	}
	return false
}

// Blocks flagged corrupt by the producer, or containing the faulting address
func implicatedHeapBlocks(snap *snapshot.CrashSnapshot) []snapshot.HeapBlock {
	blocks := []snapshot.HeapBlock{}
	fault := snap.Exception.Address

	for _, b := range snap.HeapBlocks {
		contains := fault >= b.Address && uint64(fault-b.Address) < b.Size
		if contains || strings.EqualFold(b.Status, "corrupted") {
			blocks = append(blocks, b)
		}
	}
	return blocks
}
