package diagnosis

import (
	"strings"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type EvidenceKind string

const (
	EvidenceRegisterState       EvidenceKind = "register_state"
	EvidenceMemoryPattern       EvidenceKind = "memory_pattern"
	EvidenceInstructionAnalysis EvidenceKind = "instruction_analysis"
	EvidenceThreadState         EvidenceKind = "thread_state"
	EvidenceHeapCorruption      EvidenceKind = "heap_corruption"
)

// Exception code tokens, compared case-insensitively
const (
	CodeAccessViolation = "EXCEPTION_ACCESS_VIOLATION"
	CodeStackOverflow   = "EXCEPTION_STACK_OVERFLOW"
	CodeHeapCorruption  = "STATUS_HEAP_CORRUPTION"
	CodeUnknown         = "UNKNOWN"
)

// Evidence is one confidence-scored technical finding
type Evidence struct {
	Kind             EvidenceKind      `json:"kind"`
	Description      string            `json:"description"`
	TechnicalDetails string            `json:"technicalDetails"`
	Confidence       int               `json:"confidence"`
	Address          *snapshot.Address `json:"address,omitempty"`
	RawData          string            `json:"rawData,omitempty"`
}

type DeadlockCycle struct {
	ThreadIDs       []uint32 `json:"threadIds"`
	ResourceHandles []string `json:"resourceHandles"`
	Evidence        Evidence `json:"evidence"`
}

type DeadlockInfo struct {
	Detected bool            `json:"detected"`
	Cycles   []DeadlockCycle `json:"cycles"`
	// Strongly connected waiter -> owner groups, only when ownership analysis is enabled
	OwnershipCycles [][]uint32 `json:"ownershipCycles,omitempty"`
}

type HeapAnalysis struct {
	CorruptionDetected bool                 `json:"corruptionDetected"`
	CorruptionPatterns []string             `json:"corruptionPatterns"`
	Blocks             []snapshot.HeapBlock `json:"blocks"`
}

type StackAnalysis struct {
	OverflowDetected bool                  `json:"overflowDetected"`
	ThreadID         *uint32               `json:"threadId,omitempty"`
	Depth            int                   `json:"depth"`
	GuardPageStatus  string                `json:"guardPageStatus"`
	StackRange       *snapshot.StackBounds `json:"stackRange,omitempty"`
	RecursionFrame   string                `json:"recursionFrame,omitempty"`
	RecursionCount   int                   `json:"recursionCount,omitempty"`
}

// CrashDiagnosis is the engine output. It must not be modified once returned,
// cached diagnoses are shared between callers.
type CrashDiagnosis struct {
	Category                string         `json:"category"`
	Severity                Severity       `json:"severity"`
	Confidence              int            `json:"confidence"`
	RootCause               string         `json:"rootCause"`
	PossibleCauses          []string       `json:"possibleCauses"`
	Recommendations         []string       `json:"recommendations"`
	ProblemModules          []string       `json:"problemModules"`
	DeadlockDetected        bool           `json:"deadlockDetected"`
	MemoryCorruption        bool           `json:"memoryCorruption"`
	StackOverflow           bool           `json:"stackOverflow"`
	Evidence                []Evidence     `json:"evidence"`
	DeadlockInfo            DeadlockInfo   `json:"deadlockInfo"`
	HeapAnalysis            *HeapAnalysis  `json:"heapAnalysis,omitempty"`
	StackAnalysis           *StackAnalysis `json:"stackAnalysis,omitempty"`
	AlternativeExplanations []string       `json:"alternativeExplanations"`
}

// EvidenceKinds lists the distinct kinds present, in first-seen order
func (d *CrashDiagnosis) EvidenceKinds() []EvidenceKind {
	seen := make(map[EvidenceKind]bool)
	var kinds []EvidenceKind
	for _, e := range d.Evidence {
		if !seen[e.Kind] {
			seen[e.Kind] = true
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

func codeIs(code, token string) bool {
	return strings.EqualFold(strings.TrimSpace(code), token)
}

// hasKnownCode is false for an empty code or the unknown sentinel
func hasKnownCode(code string) bool {
	return strings.TrimSpace(code) != "" && !codeIs(code, CodeUnknown)
}

func addressPtr(a snapshot.Address) *snapshot.Address {
	if a == 0 {
		return nil
	}
	return &a
}
