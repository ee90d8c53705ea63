package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ThreadState string

const (
	StateRunning    ThreadState = "running"
	StateWaiting    ThreadState = "waiting"
	StateBlocked    ThreadState = "blocked"
	StateSuspended  ThreadState = "suspended"
	StateTerminated ThreadState = "terminated"
)

func (s ThreadState) Valid() bool {
	switch s {
	case StateRunning, StateWaiting, StateBlocked, StateSuspended, StateTerminated:
		return true
	}
	return false
}

type WaitObjectKind string

const (
	WaitMutex           WaitObjectKind = "mutex"
	WaitEvent           WaitObjectKind = "event"
	WaitCriticalSection WaitObjectKind = "critical_section"
	WaitSemaphore       WaitObjectKind = "semaphore"
	WaitUnknown         WaitObjectKind = "unknown"
)

func (k WaitObjectKind) Valid() bool {
	switch k {
	case WaitMutex, WaitEvent, WaitCriticalSection, WaitSemaphore, WaitUnknown:
		return true
	}
	return false
}

// Address is a virtual address. JSON accepts a number or a "0x" hex string
// and always writes a number.
type Address uint64

func (a Address) String() string {
	return fmt.Sprintf("0x%016X", uint64(a))
}

// Hex renders the address zero-padded to width hex digits
func (a Address) Hex(width int) string {
	return fmt.Sprintf("0x%0*X", width, uint64(a))
}

func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(a), 10)), nil
}

func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseAddress(s)
		if err != nil {
			return err
		}
		*a = v
		return nil
	}

	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid address %s: %w", data, err)
	}
	*a = Address(v)
	return nil
}

// ParseAddress accepts "0x"-prefixed hex or plain decimal
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	s = strings.ReplaceAll(s, "`", "") // windbg style 00007ff6`12345678

	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(v), nil
}

// CrashSnapshot is the decoded state of a crashed process
type CrashSnapshot struct {
	Format     string          `json:"format,omitempty"`
	SystemInfo SystemInfo      `json:"systemInfo"`
	Process    ProcessInfo     `json:"processInfo"`
	Exception  ExceptionRecord `json:"exception"`
	Threads    []ThreadRecord  `json:"threads"`
	Modules    []ModuleRecord  `json:"modules"`
	HeapBlocks []HeapBlock     `json:"heapBlocks,omitempty"`
}

type SystemInfo struct {
	OSVersion       string `json:"osVersion,omitempty"`
	Architecture    string `json:"architecture,omitempty"`
	ProcessorCount  int    `json:"processorCount,omitempty"`
	TotalMemory     uint64 `json:"totalMemory,omitempty"`
	AvailableMemory uint64 `json:"availableMemory,omitempty"`
}

type ProcessInfo struct {
	Name         string    `json:"name,omitempty"`
	PID          uint32    `json:"pid,omitempty"`
	StartTime    time.Time `json:"startTime,omitempty"`
	CrashTime    time.Time `json:"crashTime,omitempty"`
	WorkingSet   uint64    `json:"workingSet,omitempty"`
	PrivateBytes uint64    `json:"privateBytes,omitempty"`
	VirtualBytes uint64    `json:"virtualBytes,omitempty"`
	HandleCount  int       `json:"handleCount,omitempty"`
}

// Uptime is zero when either timestamp is missing
func (p ProcessInfo) Uptime() time.Duration {
	if p.StartTime.IsZero() || p.CrashTime.IsZero() {
		return 0
	}
	return p.CrashTime.Sub(p.StartTime)
}

type ExceptionRecord struct {
	Code                string             `json:"code"`
	Address             Address            `json:"address"`
	Description         string             `json:"description,omitempty"`
	Module              string             `json:"module,omitempty"`
	Function            string             `json:"function,omitempty"`
	Offset              uint64             `json:"offset,omitempty"`
	SeverityHint        string             `json:"severityHint,omitempty"`
	Registers           Registers          `json:"registers,omitempty"`
	FaultingInstruction string             `json:"faultingInstruction,omitempty"`
	Disassembly         []Instruction      `json:"disassembly,omitempty"`
	MemoryRegions       []MemoryRegion     `json:"memoryRegions,omitempty"`
	Protection          string             `json:"protection,omitempty"`
}

type Instruction struct {
	Address Address `json:"address"`
	Text    string  `json:"text"`
}

type MemoryRegion struct {
	BaseAddress Address `json:"baseAddress"`
	Size        uint64  `json:"size"`
	State       string  `json:"state,omitempty"`
	Protection  string  `json:"protection,omitempty"`
	Type        string  `json:"type,omitempty"`
}

func (r MemoryRegion) Contains(addr Address) bool {
	return addr >= r.BaseAddress && uint64(addr-r.BaseAddress) < r.Size
}

type ThreadRecord struct {
	ID           uint32             `json:"id"`
	Name         string             `json:"name,omitempty"`
	State        ThreadState        `json:"state"`
	Priority     int                `json:"priority"`
	StackTrace   []StackFrame       `json:"stackTrace"`
	CPU          int                `json:"cpu"`
	KernelTimeMs uint64             `json:"kernelTimeMs"`
	UserTimeMs   uint64             `json:"userTimeMs"`
	WaitReason   string             `json:"waitReason,omitempty"`
	IsMainThread bool               `json:"isMainThread"`
	Registers    Registers          `json:"registers,omitempty"`
	WaitObjects  []WaitObject       `json:"waitObjects,omitempty"`
	Stack        *StackBounds       `json:"stack,omitempty"`
}

// IsWaiter reports whether the thread is parked on at least one wait object
func (t ThreadRecord) IsWaiter() bool {
	return (t.State == StateWaiting || t.State == StateBlocked) && len(t.WaitObjects) > 0
}

type StackBounds struct {
	Base  Address `json:"base"`
	Limit Address `json:"limit"`
}

func (b StackBounds) Size() uint64 {
	if b.Base < b.Limit {
		return uint64(b.Limit - b.Base)
	}
	return uint64(b.Base - b.Limit)
}

type WaitObject struct {
	Kind           WaitObjectKind `json:"kind"`
	Handle         string         `json:"handle"`
	OwnerThread    *uint32        `json:"ownerThread,omitempty"`
	WaitDurationMs uint64         `json:"waitDurationMs"`
	Address        Address        `json:"address"`
}

type StackFrame struct {
	Address    Address `json:"address"`
	Module     string  `json:"module"`
	Function   string  `json:"function"`
	Offset     uint64  `json:"offset"`
	HasSymbols bool    `json:"hasSymbols"`
	SourceFile string  `json:"sourceFile,omitempty"`
	SourceLine int     `json:"sourceLine,omitempty"`
}

// Symbol renders the frame as module!function+0xoffset
func (f StackFrame) Symbol() string {
	module := f.Module
	if module == "" {
		module = "<unknown>"
	}
	if f.Function == "" {
		return fmt.Sprintf("%s+0x%x", module, f.Offset)
	}
	return fmt.Sprintf("%s!%s+0x%x", module, f.Function, f.Offset)
}

type ModuleRecord struct {
	Name           string  `json:"name"`
	BaseAddress    Address `json:"baseAddress"`
	EndAddress     Address `json:"endAddress"`
	Size           uint64  `json:"size"`
	Version        string  `json:"version,omitempty"`
	Company        string  `json:"company,omitempty"`
	Path           string  `json:"path,omitempty"`
	ImageKind      string  `json:"imageKind,omitempty"`
	HasSymbols     bool    `json:"hasSymbols"`
	IsSystemModule bool    `json:"isSystemModule"`
	Checksum       uint32  `json:"checksum,omitempty"`
	Timestamp      uint32  `json:"timestamp,omitempty"`
}

func (m ModuleRecord) Contains(addr Address) bool {
	return addr >= m.BaseAddress && addr < m.EndAddress
}

type HeapBlock struct {
	Address Address `json:"address"`
	Size    uint64  `json:"size"`
	Status  string  `json:"status"`
}
