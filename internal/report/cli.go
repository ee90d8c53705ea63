package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
	"github.com/mabhi256/dumpdiag/internal/snapshot"
	"github.com/mabhi256/dumpdiag/utils"
)

const ruleWidth = 50

// WriteCLI renders a plain terminal report. snap is optional and only adds
// the process header.
func WriteCLI(w io.Writer, source string, snap *snapshot.CrashSnapshot, d *diagnosis.CrashDiagnosis) error {
	if d == nil {
		return fmt.Errorf("invalid report data: diagnosis cannot be nil")
	}

	p := &printer{w: w}

	p.header(source, snap, d)
	p.summary(d)
	p.evidence(d.Evidence)
	p.deadlock(d)
	p.heap(d.HeapAnalysis)
	p.stack(d.StackAnalysis)
	p.modules(d.ProblemModules)
	p.list("💡 RECOMMENDATIONS", d.Recommendations, true)
	p.list("🔀 ALTERNATIVE EXPLANATIONS", d.AlternativeExplanations, false)

	return p.err
}

// printer keeps the first write error so the section helpers stay linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) section(title string) {
	p.printf("\n%s\n%s\n", title, strings.Repeat("─", ruleWidth))
}

func (p *printer) header(source string, snap *snapshot.CrashSnapshot, d *diagnosis.CrashDiagnosis) {
	p.printf("🔍 Crash Diagnosis: %s\n", d.Category)

	var meta []string
	if source != "" {
		meta = append(meta, source)
	}
	if snap != nil {
		if snap.Process.Name != "" {
			meta = append(meta, fmt.Sprintf("%s (pid %d)", snap.Process.Name, snap.Process.PID))
		}
		if uptime := snap.Process.Uptime(); uptime > 0 {
			meta = append(meta, "uptime "+utils.FormatDuration(uptime))
		}
		meta = append(meta, fmt.Sprintf("%d threads", len(snap.Threads)), fmt.Sprintf("%d modules", len(snap.Modules)))
	}
	if len(meta) > 0 {
		p.printf("%s\n", strings.Join(meta, "  |  "))
	}
	p.printf("%s\n", strings.Repeat("═", 65))

	if snap != nil && snap.Exception.Code != "" {
		exc := snap.Exception
		p.printf("Exception: %s at %s", exc.Code, exc.Address)
		if exc.Module != "" {
			p.printf(" in %s", exc.Module)
			if exc.Function != "" {
				p.printf("!%s", exc.Function)
			}
		}
		p.printf("\n")
	}
}

func (p *printer) summary(d *diagnosis.CrashDiagnosis) {
	p.section("📈 SUMMARY")

	severity := string(d.Severity)
	p.printf("%s Severity:   %s\n", utils.GetSeverityIcon(severity), utils.GetSeverityStyle(severity).Render(strings.ToUpper(severity)))
	p.printf("   Confidence: %s\n", utils.ConfidenceBar(d.Confidence, 20))
	p.printf("   Root cause: %s\n", d.RootCause)

	flag := func(on bool) string {
		if on {
			return "yes"
		}
		return "no"
	}
	p.printf("   Deadlock: %s  |  Memory corruption: %s  |  Stack overflow: %s\n",
		flag(d.DeadlockDetected), flag(d.MemoryCorruption), flag(d.StackOverflow))
}

func (p *printer) evidence(items []diagnosis.Evidence) {
	p.section("🧪 EVIDENCE")

	if len(items) == 0 {
		p.printf("No evidence collected.\n")
		return
	}

	for i, e := range items {
		p.printf("%d. [%s] %s (%d%%)\n", i+1, e.Kind, e.Description, e.Confidence)
		for _, line := range utils.WrapText(e.TechnicalDetails, 70) {
			p.printf("   %s\n", line)
		}
		if e.Address != nil {
			p.printf("   Address: %s\n", e.Address)
		}
		if e.RawData != "" {
			for _, line := range strings.Split(e.RawData, "\n") {
				p.printf("   │ %s\n", line)
			}
		}
	}
}

func (p *printer) deadlock(d *diagnosis.CrashDiagnosis) {
	info := d.DeadlockInfo
	if len(info.Cycles) == 0 && len(info.OwnershipCycles) == 0 {
		return
	}

	p.section("🔒 THREAD CONTENTION")
	for _, c := range info.Cycles {
		p.printf("Threads %s share %s\n", joinIDs(c.ThreadIDs, " ↔ "), strings.Join(c.ResourceHandles, ", "))
	}
	for _, scc := range info.OwnershipCycles {
		p.printf("Ownership cycle: %s\n", joinIDs(scc, " → "))
	}
}

func (p *printer) heap(h *diagnosis.HeapAnalysis) {
	if h == nil {
		return
	}

	p.section("🧱 HEAP")
	for _, pattern := range h.CorruptionPatterns {
		p.printf("• %s\n", pattern)
	}
	for _, b := range h.Blocks {
		p.printf("  %s  %-8s %s\n", b.Address, utils.SizeOf(b.Size), b.Status)
	}
}

func (p *printer) stack(s *diagnosis.StackAnalysis) {
	if s == nil {
		return
	}

	p.section("📚 STACK")
	if s.ThreadID != nil {
		p.printf("Thread %d, ", *s.ThreadID)
	}
	p.printf("depth %d, guard page %s\n", s.Depth, s.GuardPageStatus)
	if s.StackRange != nil {
		p.printf("Range %s - %s (%s)\n", s.StackRange.Base, s.StackRange.Limit, utils.SizeOf(s.StackRange.Size()))
	}
	if s.RecursionFrame != "" {
		p.printf("Repeated frame %s x%d\n", s.RecursionFrame, s.RecursionCount)
	}
}

func (p *printer) modules(names []string) {
	p.section("📦 PROBLEM MODULES")
	if len(names) == 0 {
		p.printf("None implicated.\n")
		return
	}
	for _, name := range names {
		p.printf("• %s\n", name)
	}
}

func (p *printer) list(title string, items []string, numbered bool) {
	p.section(title)
	if len(items) == 0 {
		p.printf("None.\n")
		return
	}
	for i, item := range items {
		if numbered {
			p.printf("%d. %s\n", i+1, item)
		} else {
			p.printf("• %s\n", item)
		}
	}
}

func joinIDs(ids []uint32, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, sep)
}

// SummaryLine is the one-line form used by watch and validate.
func SummaryLine(source string, d *diagnosis.CrashDiagnosis) string {
	var flags []string
	if d.DeadlockDetected {
		flags = append(flags, "deadlock")
	}
	if d.MemoryCorruption {
		flags = append(flags, "memory-corruption")
	}
	if d.StackOverflow {
		flags = append(flags, "stack-overflow")
	}
	line := fmt.Sprintf("%s %s: %s [%s] confidence=%d%%", utils.GetSeverityIcon(string(d.Severity)), source, d.Category, d.Severity, d.Confidence)
	if len(flags) > 0 {
		line += " flags=" + strings.Join(flags, ",")
	}
	return line
}
