package diagnosis

import (
	"fmt"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

const (
	DefaultStackDepthThreshold = 50
	stackEvidenceConfidence    = 95

	guardViolated = "violated"
	guardIntact   = "intact"
)

type StackResult struct {
	Overflow bool
	Analysis *StackAnalysis
	Evidence []Evidence
}

// AnalyzeStack flags stack exhaustion from the exception code or from the
// main thread unwinding deeper than threshold frames.
func AnalyzeStack(snap *snapshot.CrashSnapshot, threshold int) StackResult {
	if threshold <= 0 {
		threshold = DefaultStackDepthThreshold
	}

	mainThread, hasMain := snap.MainThread()
	byCode := codeIs(snap.Exception.Code, CodeStackOverflow)
	byDepth := hasMain && len(mainThread.StackTrace) > threshold

	if !byCode && !byDepth {
		return StackResult{}
	}

	analysis := &StackAnalysis{
		OverflowDetected: true,
		Depth:            len(mainThread.StackTrace),
		GuardPageStatus:  guardIntact,
	}
	if hasMain {
		id := mainThread.ID
		analysis.ThreadID = &id
	}
	if byCode {
		analysis.GuardPageStatus = guardViolated
	}
	if mainThread.Stack != nil {
		bounds := *mainThread.Stack
		analysis.StackRange = &bounds
	}
	analysis.RecursionFrame, analysis.RecursionCount = recursionSignature(mainThread.StackTrace)

	description := fmt.Sprintf("Main thread %d unwound %d frames, beyond the %d frame limit", mainThread.ID, analysis.Depth, threshold)
	switch {
	case byCode && hasMain:
		description = fmt.Sprintf("Stack overflow exception raised with %d frames on thread %d", analysis.Depth, mainThread.ID)
	case byCode:
		description = "Stack overflow exception raised; no thread stacks were captured"
	}

	details := fmt.Sprintf("guard page: %s; depth: %d", analysis.GuardPageStatus, analysis.Depth)
	if analysis.StackRange != nil {
		details += fmt.Sprintf("; stack range: %s-%s (%d bytes)",
			analysis.StackRange.Limit, analysis.StackRange.Base, analysis.StackRange.Size())
	}
	if analysis.RecursionCount > 0 {
		details += fmt.Sprintf("; repeated frame: %s x%d", analysis.RecursionFrame, analysis.RecursionCount)
	}

	return StackResult{
		Overflow: true,
		Analysis: analysis,
		Evidence: []Evidence{{
			Kind:             EvidenceInstructionAnalysis,
			Description:      description,
			TechnicalDetails: details,
			Confidence:       stackEvidenceConfidence,
			Address:          addressPtr(snap.Exception.Address),
		}},
	}
}

// recursionSignature returns the most repeated module!function and its count.
// Ties go to the frame seen first. A frame seen once is not a signature.
func recursionSignature(frames []snapshot.StackFrame) (string, int) {
	counts := make(map[string]int)
	var order []string

	for _, f := range frames {
		if f.Function == "" {
			continue
		}
		key := f.Module + "!" + f.Function
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	best, bestCount := "", 0
	for _, key := range order {
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	if bestCount < 2 {
		return "", 0
	}
	return best, bestCount
}
