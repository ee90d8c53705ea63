package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonSnapshot = `{
  "format": "crash-snapshot/v1",
  "systemInfo": {"osVersion": "10.0.19045", "architecture": "amd64", "processorCount": 8},
  "processInfo": {"name": "app.exe", "pid": 4242},
  "exception": {
    "code": "EXCEPTION_ACCESS_VIOLATION",
    "address": "0x00007FF6A1B2C3D4",
    "description": "Access violation reading location 0x0",
    "module": "app.exe",
    "registers": {"rax": 0, "rip": "0x7FF6A1B2C3D4"}
  },
  "threads": [
    {"id": 1, "state": "running", "isMainThread": true,
     "stackTrace": [{"address": 140695243195348, "module": "app.exe", "function": "main", "offset": 16, "hasSymbols": true}]},
    {"id": 2, "state": "waiting",
     "waitObjects": [{"kind": "mutex", "handle": "0x1a4", "ownerThread": 1}]}
  ],
  "modules": [
    {"name": "app.exe", "baseAddress": "0x7FF6A1B00000", "size": 1048576, "hasSymbols": true}
  ]
}`

const yamlSnapshot = `# captured by the agent
format: crash-snapshot/v1
exception:
  code: EXCEPTION_STACK_OVERFLOW
  address: 0x7FF6A1B2C3D4
threads:
  - id: 7
    state: blocked
    waitObjects:
      - kind: critical_section
        handle: cs-1
modules:
  - name: ntdll.dll
    baseAddress: "0x7FFB00000000"
    endAddress: "0x7FFB00100000"
    isSystemModule: true
`

func TestDecodeJSON(t *testing.T) {
	snap, err := Decode([]byte(jsonSnapshot), "crash.json")
	require.NoError(t, err)

	assert.Equal(t, Address(0x00007FF6A1B2C3D4), snap.Exception.Address)
	assert.Equal(t, Address(0), snap.Exception.Registers["rax"])
	assert.Equal(t, Address(0x7FF6A1B2C3D4), snap.Exception.Registers["rip"])
	require.Len(t, snap.Threads, 2)
	require.NotNil(t, snap.Threads[1].WaitObjects[0].OwnerThread)
	assert.Equal(t, uint32(1), *snap.Threads[1].WaitObjects[0].OwnerThread)
	assert.True(t, snap.Threads[1].IsWaiter())
	assert.Equal(t, Address(0x7FF6A1B00000+1048576), snap.Modules[0].EndAddress)
}

func TestDecodeYAML(t *testing.T) {
	snap, err := Decode([]byte(yamlSnapshot), "crash.yaml")
	require.NoError(t, err)

	assert.Equal(t, "EXCEPTION_STACK_OVERFLOW", snap.Exception.Code)
	assert.Equal(t, Address(0x7FF6A1B2C3D4), snap.Exception.Address)
	assert.Equal(t, WaitCriticalSection, snap.Threads[0].WaitObjects[0].Kind)
	assert.Equal(t, uint64(0x100000), snap.Modules[0].Size)
}

func TestBinaryContainer(t *testing.T) {
	snap, err := Decode([]byte(jsonSnapshot), "crash.json")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap))
	assert.True(t, strings.HasPrefix(buf.String(), Magic))

	decoded, err := Decode(buf.Bytes(), "crash.cdmp")
	require.NoError(t, err)
	assert.Equal(t, snap.Exception.Registers, decoded.Exception.Registers)
	assert.Equal(t, snap.Threads[1].WaitObjects, decoded.Threads[1].WaitObjects)

	t.Run("truncated payload", func(t *testing.T) {
		data := buf.Bytes()[:buf.Len()-5]
		_, err := Decode(data, "short.cdmp")

		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Reason, "truncated payload")
	})

	t.Run("trailing bytes", func(t *testing.T) {
		data := append(bytes.Clone(buf.Bytes()), 0xde, 0xad)
		_, err := Decode(data, "long.cdmp")

		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Reason, "2 trailing bytes")
	})

	t.Run("unsupported version", func(t *testing.T) {
		data := bytes.Clone(buf.Bytes())
		data[len(Magic)+1] = 9
		_, err := Decode(data, "v9.cdmp")

		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.Reason, "unsupported container version 9")
	})
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	reader := NewBinaryReader(strings.NewReader("MDMP\x93\xa7\x00\x00\x00\x00\x00\x00"))
	_, err := ParseHeader(reader, "dump.dmp")

	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, int64(0), formatErr.Offset)
	assert.Contains(t, formatErr.Error(), "invalid magic")
}

func TestDecodeFormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty input", "", "unrecognized signature"},
		{"binary garbage", "\x00\x01\x02\x03", "unrecognized signature"},
		{"malformed json", `{"format": `, "malformed json document"},
		{"missing format", `{"exception": {"code": "X"}}`, "unsupported format"},
		{"wrong format", `{"format": "minidump"}`, "unsupported format"},
		{"scalar yaml", "just some words", "malformed yaml document"},
		{
			"unknown thread state",
			`{"format": "crash-snapshot/v1", "threads": [{"id": 1, "state": "sleeping"}]}`,
			"invalid content",
		},
		{
			"duplicate thread id",
			`{"format": "crash-snapshot/v1", "threads": [{"id": 1, "state": "running"}, {"id": 1, "state": "waiting"}]}`,
			"invalid content",
		},
		{
			"duplicate module name",
			`{"format": "crash-snapshot/v1", "modules": [{"name": "a.dll"}, {"name": "a.dll"}]}`,
			"invalid content",
		},
		{
			"unknown wait kind",
			`{"format": "crash-snapshot/v1", "threads": [{"id": 1, "state": "waiting", "waitObjects": [{"kind": "futex", "handle": "h"}]}]}`,
			"invalid content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input), "input")

			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Contains(t, formatErr.Reason, tt.reason)
		})
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonSnapshot), 0644))

	snap, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "app.exe", snap.Process.Name)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDigestIsContentAddressed(t *testing.T) {
	a, err := Decode([]byte(jsonSnapshot), "a")
	require.NoError(t, err)
	b, err := Decode([]byte(jsonSnapshot), "b")
	require.NoError(t, err)

	digestA, err := Digest(a)
	require.NoError(t, err)
	digestB, err := Digest(b)
	require.NoError(t, err)
	assert.Equal(t, digestA, digestB)
	assert.Len(t, digestA, 64)

	b.Exception.Registers["rcx"] = 1
	digestC, err := Digest(b)
	require.NoError(t, err)
	assert.NotEqual(t, digestA, digestC)
}

func registerSnapshot() *CrashSnapshot {
	regs := Registers{}
	for i, name := range []string{"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp", "rip"} {
		regs[name] = Address(i * 0x10)
	}
	return &CrashSnapshot{
		Format:    FormatV1,
		Exception: ExceptionRecord{Code: "EXCEPTION_ACCESS_VIOLATION", Registers: regs},
		Threads: []ThreadRecord{
			{ID: 1, State: StateRunning, Registers: Registers{"r8": 8, "r9": 9, "r10": 10, "r11": 11, "r12": 12}},
		},
	}
}

func TestDigestIsStableAcrossCalls(t *testing.T) {
	snap := registerSnapshot()

	seen := make(map[string]int)
	for range 200 {
		digest, err := Digest(snap)
		require.NoError(t, err)
		seen[digest]++
	}
	assert.Len(t, seen, 1)
}

func TestRegistersEncodeSorted(t *testing.T) {
	snap := registerSnapshot()

	var first bytes.Buffer
	require.NoError(t, Encode(&first, snap))
	for range 50 {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, snap))
		require.Equal(t, first.Bytes(), buf.Bytes())
	}

	decoded, err := Decode(first.Bytes(), "regs.cdmp")
	require.NoError(t, err)
	assert.Equal(t, snap.Exception.Registers, decoded.Exception.Registers)
	assert.Equal(t, snap.Threads[0].Registers, decoded.Threads[0].Registers)
	assert.Equal(t, []string{"rax", "rbp", "rbx", "rcx", "rdi", "rdx", "rip", "rsi", "rsp"}, decoded.Exception.Registers.Names())

	want, err := Digest(snap)
	require.NoError(t, err)
	got, err := Digest(decoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMainThread(t *testing.T) {
	tests := []struct {
		name     string
		threads  []ThreadRecord
		expected uint32
		found    bool
	}{
		{"flagged thread wins", []ThreadRecord{{ID: 3}, {ID: 9, IsMainThread: true}}, 9, true},
		{"falls back to first thread", []ThreadRecord{{ID: 3}, {ID: 9}}, 3, true},
		{"no threads", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &CrashSnapshot{Threads: tt.threads}
			thread, ok := snap.MainThread()
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, thread.ID)
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected Address
		wantErr  bool
	}{
		{"0x1000", 0x1000, false},
		{"4096", 4096, false},
		{"0x00007ff6`12345678", 0x00007ff612345678, false},
		{"", 0, false},
		{"0xZZ", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr)
		})
	}
}

func TestStackFrameSymbol(t *testing.T) {
	assert.Equal(t, "app.exe!main+0x10", StackFrame{Module: "app.exe", Function: "main", Offset: 16}.Symbol())
	assert.Equal(t, "<unknown>+0x0", StackFrame{}.Symbol())
}
