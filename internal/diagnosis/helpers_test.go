package diagnosis

import (
	"fmt"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

func frames(n int, module, function string) []snapshot.StackFrame {
	out := make([]snapshot.StackFrame, n)
	for i := range out {
		out[i] = snapshot.StackFrame{
			Address:    snapshot.Address(0x7ff600001000 + i*0x10),
			Module:     module,
			Function:   function,
			HasSymbols: true,
		}
	}
	return out
}

func waiting(id uint32, handles ...string) snapshot.ThreadRecord {
	t := snapshot.ThreadRecord{ID: id, State: snapshot.StateWaiting}
	for _, h := range handles {
		t.WaitObjects = append(t.WaitObjects, snapshot.WaitObject{Kind: snapshot.WaitMutex, Handle: h})
	}
	return t
}

func running(id uint32) snapshot.ThreadRecord {
	return snapshot.ThreadRecord{ID: id, State: snapshot.StateRunning}
}

func owner(id uint32) *uint32 {
	return &id
}

// accessViolationSnapshot is a null dereference in app.exe with full symbols
func accessViolationSnapshot() *snapshot.CrashSnapshot {
	return &snapshot.CrashSnapshot{
		SystemInfo: snapshot.SystemInfo{Architecture: "amd64"},
		Exception: snapshot.ExceptionRecord{
			Code:        CodeAccessViolation,
			Address:     0x7ff612340010,
			Description: "Access violation reading location 0x0000000000000000",
			Module:      "app.exe",
		},
		Threads: []snapshot.ThreadRecord{
			{ID: 1, State: snapshot.StateRunning, IsMainThread: true, StackTrace: frames(1, "app.exe", "main")},
			{ID: 2, State: snapshot.StateRunning, StackTrace: frames(1, "kernel32.dll", "BaseThreadInitThunk")},
		},
		Modules: []snapshot.ModuleRecord{
			{Name: "app.exe", BaseAddress: 0x7ff612340000, EndAddress: 0x7ff612440000, HasSymbols: true},
			{Name: "kernel32.dll", BaseAddress: 0x7ffb10000000, EndAddress: 0x7ffb10100000, HasSymbols: true, IsSystemModule: true},
		},
	}
}

func manyThreads(n int) []snapshot.ThreadRecord {
	out := make([]snapshot.ThreadRecord, n)
	for i := range out {
		out[i] = snapshot.ThreadRecord{
			ID:         uint32(i + 1),
			Name:       fmt.Sprintf("worker-%d", i+1),
			State:      snapshot.StateRunning,
			StackTrace: frames(3, "app.exe", "work"),
		}
	}
	return out
}
