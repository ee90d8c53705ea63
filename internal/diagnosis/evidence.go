package diagnosis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

const (
	registerEvidenceConfidence    = 85
	memoryEvidenceConfidence      = 90
	threadEvidenceConfidence      = 70
	instructionEvidenceConfidence = 95

	// thread_state evidence needs more than this many waiting threads
	waitingThreadThreshold = 2

	// Accesses below this land in the reserved null page
	nullPageLimit snapshot.Address = 0x10000
)

// SynthesizeEvidence derives independent evidence items from the snapshot.
// Each check only adds its own item, absent data simply skips it.
func SynthesizeEvidence(snap *snapshot.CrashSnapshot) []Evidence {
	evidence := []Evidence{}

	if e, ok := registerEvidence(snap); ok {
		evidence = append(evidence, e)
	}
	if e, ok := memoryPatternEvidence(snap); ok {
		evidence = append(evidence, e)
	}
	if e, ok := threadStateEvidence(snap.Threads); ok {
		evidence = append(evidence, e)
	}
	if e, ok := instructionEvidence(snap.Exception); ok {
		evidence = append(evidence, e)
	}

	return evidence
}

// ===== REGISTERS =====

// registerWidth is the hex digit count of a machine word. The null pattern
// is the all-zero word on every supported architecture.
func registerWidth(arch string) int {
	switch strings.ToLower(arch) {
	case "x86", "i386", "i686", "arm", "arm32":
		return 8
	default:
		return 16
	}
}

func registerEvidence(snap *snapshot.CrashSnapshot) (Evidence, bool) {
	regs := snap.Exception.Registers
	if len(regs) == 0 {
		return Evidence{}, false
	}

	names := regs.Names()
	var nullRegs []string
	for _, name := range names {
		if regs[name] == 0 {
			nullRegs = append(nullRegs, name)
		}
	}
	if len(nullRegs) == 0 {
		return Evidence{}, false
	}

	width := registerWidth(snap.SystemInfo.Architecture)
	return Evidence{
		Kind:        EvidenceRegisterState,
		Description: fmt.Sprintf("Null value in %s at the time of the fault", strings.Join(nullRegs, ", ")),
		TechnicalDetails: fmt.Sprintf("faulting address %s; %d of %d registers hold the null pattern %s",
			snap.Exception.Address.Hex(width), len(nullRegs), len(regs), snapshot.Address(0).Hex(width)),
		Confidence: registerEvidenceConfidence,
		Address:    addressPtr(snap.Exception.Address),
		RawData:    dumpRegisters(regs, names, width),
	}, true
}

func dumpRegisters(regs snapshot.Registers, names []string, width int) string {
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s=%s", name, regs[name].Hex(width)))
	}
	return strings.Join(lines, "\n")
}

// ===== MEMORY =====

func memoryPatternEvidence(snap *snapshot.CrashSnapshot) (Evidence, bool) {
	exc := snap.Exception
	if !codeIs(exc.Code, CodeAccessViolation) {
		return Evidence{}, false
	}

	instruction := exc.FaultingInstruction
	if instruction == "" {
		instruction = "unavailable"
	}
	protection := exc.Protection
	if protection == "" {
		protection = "unknown"
	}

	description := fmt.Sprintf("Invalid memory access at %s", exc.Address)
	if exc.Address < nullPageLimit {
		description = fmt.Sprintf("Invalid memory access at %s inside the null page", exc.Address)
	}

	details := fmt.Sprintf("faulting instruction: %s; protection: %s", instruction, protection)
	if region, ok := regionFor(exc.MemoryRegions, exc.Address); ok {
		details += fmt.Sprintf("; region %s+0x%x state=%s protect=%s",
			region.BaseAddress, region.Size, region.State, region.Protection)
	}

	return Evidence{
		Kind:             EvidenceMemoryPattern,
		Description:      description,
		TechnicalDetails: details,
		Confidence:       memoryEvidenceConfidence,
		Address:          addressPtr(exc.Address),
	}, true
}

func regionFor(regions []snapshot.MemoryRegion, addr snapshot.Address) (snapshot.MemoryRegion, bool) {
	for _, r := range regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return snapshot.MemoryRegion{}, false
}

// ===== THREADS =====

func threadStateEvidence(threads []snapshot.ThreadRecord) (Evidence, bool) {
	var ids []string
	var kinds []string
	seenKind := make(map[snapshot.WaitObjectKind]bool)

	for _, t := range threads {
		if t.State != snapshot.StateWaiting {
			continue
		}
		ids = append(ids, strconv.FormatUint(uint64(t.ID), 10))
		for _, w := range t.WaitObjects {
			if !seenKind[w.Kind] {
				seenKind[w.Kind] = true
				kinds = append(kinds, string(w.Kind))
			}
		}
	}

	if len(ids) <= waitingThreadThreshold {
		return Evidence{}, false
	}

	waitKinds := "none recorded"
	if len(kinds) > 0 {
		waitKinds = strings.Join(kinds, ", ")
	}

	return Evidence{
		Kind:             EvidenceThreadState,
		Description:      fmt.Sprintf("%d of %d threads are waiting", len(ids), len(threads)),
		TechnicalDetails: fmt.Sprintf("waiting threads: %s; wait object kinds: %s", strings.Join(ids, ", "), waitKinds),
		Confidence:       threadEvidenceConfidence,
	}, true
}

// ===== INSTRUCTIONS =====

func instructionEvidence(exc snapshot.ExceptionRecord) (Evidence, bool) {
	text := strings.TrimSpace(exc.FaultingInstruction)
	if text == "" {
		return Evidence{}, false
	}

	decoded := DecodeInstruction(text)

	var b strings.Builder
	fmt.Fprintf(&b, "instruction: %s\n", text)
	fmt.Fprintf(&b, "decoded: %s", decoded)
	if len(exc.Disassembly) > 0 {
		b.WriteString("\ncontext:\n")
		b.WriteString(renderDisassembly(exc.Disassembly, exc.Address))
	}

	description := fmt.Sprintf("Faulting instruction %q", decoded.Mnemonic)
	if decoded.MemoryOperand != "" {
		description = fmt.Sprintf("Faulting instruction %q %ss memory through %s",
			decoded.Mnemonic, decoded.Access, decoded.MemoryOperand)
	}

	return Evidence{
		Kind:             EvidenceInstructionAnalysis,
		Description:      description,
		TechnicalDetails: b.String(),
		Confidence:       instructionEvidenceConfidence,
		Address:          addressPtr(exc.Address),
	}, true
}

// DecodedInstruction is a textual decode of one disassembly line
type DecodedInstruction struct {
	Mnemonic      string
	Operands      []string
	MemoryOperand string
	// "read", "write" or "" when no memory operand is involved
	Access string
}

func (d DecodedInstruction) String() string {
	s := fmt.Sprintf("mnemonic=%s operands=[%s]", d.Mnemonic, strings.Join(d.Operands, ", "))
	if d.MemoryOperand != "" {
		s += fmt.Sprintf(" memory=%s access=%s", d.MemoryOperand, d.Access)
	}
	return s
}

// Instructions whose first operand is a source, not a destination
var sourceFirstMnemonics = map[string]bool{
	"cmp": true, "test": true, "push": true, "call": true, "jmp": true,
	"ldr": true, "ldrb": true, "ldrh": true, "ldp": true,
}

// DecodeInstruction splits Intel-syntax text such as
// "mov rax, qword ptr [rcx+8]" into mnemonic and operands, and works out
// whether the memory operand is read or written.
func DecodeInstruction(text string) DecodedInstruction {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return DecodedInstruction{}
	}

	mnemonic := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))
	// rep/lock prefixes
	if (mnemonic == "rep" || mnemonic == "lock" || mnemonic == "repne") && len(fields) > 1 {
		mnemonic = mnemonic + " " + strings.ToLower(fields[1])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
	}

	decoded := DecodedInstruction{Mnemonic: mnemonic, Operands: splitOperands(rest)}

	for i, op := range decoded.Operands {
		if !strings.Contains(op, "[") {
			continue
		}
		decoded.MemoryOperand = op
		decoded.Access = "read"
		if i == 0 && len(decoded.Operands) > 1 && !sourceFirstMnemonics[mnemonic] {
			decoded.Access = "write"
		}
		if strings.HasPrefix(mnemonic, "str") || strings.HasPrefix(mnemonic, "stp") {
			decoded.Access = "write"
		}
		break
	}
	return decoded
}

// splitOperands splits on commas outside brackets
func splitOperands(s string) []string {
	var ops []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				ops = append(ops, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		ops = append(ops, last)
	}
	return ops
}

func renderDisassembly(lines []snapshot.Instruction, fault snapshot.Address) string {
	out := make([]string, 0, len(lines))
	for _, inst := range lines {
		marker := "  "
		if inst.Address == fault {
			marker = "=>"
		}
		out = append(out, fmt.Sprintf("%s %s  %s", marker, inst.Address, inst.Text))
	}
	return strings.Join(out, "\n")
}
