package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

func kinds(evidence []Evidence) []EvidenceKind {
	out := []EvidenceKind{}
	for _, e := range evidence {
		out = append(out, e.Kind)
	}
	return out
}

func TestSynthesizeEvidenceEmpty(t *testing.T) {
	evidence := SynthesizeEvidence(&snapshot.CrashSnapshot{})
	assert.NotNil(t, evidence)
	assert.Empty(t, evidence)
}

func TestSynthesizeEvidenceAllItems(t *testing.T) {
	snap := &snapshot.CrashSnapshot{
		SystemInfo: snapshot.SystemInfo{Architecture: "x86"},
		Exception: snapshot.ExceptionRecord{
			Code:                CodeAccessViolation,
			Address:             0x401000,
			FaultingInstruction: "mov eax, dword ptr [ecx+4]",
			Protection:          "PAGE_NOACCESS",
			Registers:           map[string]snapshot.Address{"ecx": 0, "eax": 0x10, "ebx": 0},
			Disassembly: []snapshot.Instruction{
				{Address: 0x400ffc, Text: "push ebp"},
				{Address: 0x401000, Text: "mov eax, dword ptr [ecx+4]"},
			},
		},
		Threads: []snapshot.ThreadRecord{waiting(1, "a"), waiting(2, "b"), waiting(3), running(4)},
	}

	evidence := SynthesizeEvidence(snap)
	require.Equal(t, []EvidenceKind{
		EvidenceRegisterState,
		EvidenceMemoryPattern,
		EvidenceThreadState,
		EvidenceInstructionAnalysis,
	}, kinds(evidence))

	reg := evidence[0]
	assert.Equal(t, 85, reg.Confidence)
	assert.Equal(t, "Null value in ebx, ecx at the time of the fault", reg.Description)
	assert.Equal(t, "eax=0x00000010\nebx=0x00000000\necx=0x00000000", reg.RawData)
	assert.Contains(t, reg.TechnicalDetails, "0x00401000")

	mem := evidence[1]
	assert.Equal(t, 90, mem.Confidence)
	assert.Contains(t, mem.TechnicalDetails, "mov eax, dword ptr [ecx+4]")
	assert.Contains(t, mem.TechnicalDetails, "PAGE_NOACCESS")

	threads := evidence[2]
	assert.Equal(t, 70, threads.Confidence)
	assert.Equal(t, "3 of 4 threads are waiting", threads.Description)
	assert.Equal(t, "waiting threads: 1, 2, 3; wait object kinds: mutex", threads.TechnicalDetails)

	inst := evidence[3]
	assert.Equal(t, 95, inst.Confidence)
	assert.Contains(t, inst.TechnicalDetails, "=> 0x0000000000401000  mov eax, dword ptr [ecx+4]")
	assert.Contains(t, inst.TechnicalDetails, "   0x0000000000400FFC  push ebp")
	assert.Contains(t, inst.Description, "reads memory through dword ptr [ecx+4]")
}

func TestSynthesizeEvidencePreconditions(t *testing.T) {
	tests := []struct {
		name     string
		snap     *snapshot.CrashSnapshot
		expected []EvidenceKind
	}{
		{
			name: "registers without null values",
			snap: &snapshot.CrashSnapshot{Exception: snapshot.ExceptionRecord{
				Registers: map[string]snapshot.Address{"rax": 1},
			}},
			expected: []EvidenceKind{},
		},
		{
			name:     "two waiting threads are not enough",
			snap:     &snapshot.CrashSnapshot{Threads: []snapshot.ThreadRecord{waiting(1, "a"), waiting(2, "a")}},
			expected: []EvidenceKind{},
		},
		{
			name: "blocked threads do not count as waiting",
			snap: &snapshot.CrashSnapshot{Threads: []snapshot.ThreadRecord{
				waiting(1, "a"), waiting(2, "a"), {ID: 3, State: snapshot.StateBlocked},
			}},
			expected: []EvidenceKind{},
		},
		{
			name:     "memory pattern without instruction",
			snap:     &snapshot.CrashSnapshot{Exception: snapshot.ExceptionRecord{Code: CodeAccessViolation}},
			expected: []EvidenceKind{EvidenceMemoryPattern},
		},
		{
			name:     "instruction without access violation",
			snap:     &snapshot.CrashSnapshot{Exception: snapshot.ExceptionRecord{FaultingInstruction: "ud2"}},
			expected: []EvidenceKind{EvidenceInstructionAnalysis},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, kinds(SynthesizeEvidence(tt.snap)))
		})
	}
}

func TestMemoryPatternNullPage(t *testing.T) {
	snap := &snapshot.CrashSnapshot{Exception: snapshot.ExceptionRecord{
		Code:    CodeAccessViolation,
		Address: 0x8,
		MemoryRegions: []snapshot.MemoryRegion{
			{BaseAddress: 0, Size: 0x10000, State: "MEM_FREE", Protection: "PAGE_NOACCESS"},
		},
	}}

	e, ok := memoryPatternEvidence(snap)
	require.True(t, ok)
	assert.Contains(t, e.Description, "inside the null page")
	assert.Contains(t, e.TechnicalDetails, "state=MEM_FREE")
}

func TestRegisterWidth(t *testing.T) {
	assert.Equal(t, 8, registerWidth("x86"))
	assert.Equal(t, 8, registerWidth("ARM"))
	assert.Equal(t, 16, registerWidth("amd64"))
	assert.Equal(t, 16, registerWidth("arm64"))
	assert.Equal(t, 16, registerWidth(""))
}

func TestDecodeInstruction(t *testing.T) {
	tests := []struct {
		text     string
		mnemonic string
		operands []string
		memory   string
		access   string
	}{
		{"mov rax, qword ptr [rcx+8]", "mov", []string{"rax", "qword ptr [rcx+8]"}, "qword ptr [rcx+8]", "read"},
		{"mov qword ptr [rax], rcx", "mov", []string{"qword ptr [rax]", "rcx"}, "qword ptr [rax]", "write"},
		{"cmp dword ptr [rbx+rsi*4], 0", "cmp", []string{"dword ptr [rbx+rsi*4]", "0"}, "dword ptr [rbx+rsi*4]", "read"},
		{"call qword ptr [rax+10h]", "call", []string{"qword ptr [rax+10h]"}, "qword ptr [rax+10h]", "read"},
		{"rep movsb", "rep movsb", nil, "", ""},
		{"str x1, [x0, #8]", "str", []string{"x1", "[x0, #8]"}, "[x0, #8]", "write"},
		{"ud2", "ud2", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d := DecodeInstruction(tt.text)
			assert.Equal(t, tt.mnemonic, d.Mnemonic)
			assert.Equal(t, tt.operands, d.Operands)
			assert.Equal(t, tt.memory, d.MemoryOperand)
			assert.Equal(t, tt.access, d.Access)
		})
	}
}
