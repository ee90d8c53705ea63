package snapshot

import (
	"errors"
	"fmt"
)

// Validate checks the structural constraints the engine relies on:
// enum values, unique thread ids and unique module names.
func (s *CrashSnapshot) Validate() error {
	var errs []error

	seenThreads := make(map[uint32]bool, len(s.Threads))
	for i, t := range s.Threads {
		if seenThreads[t.ID] {
			errs = append(errs, fmt.Errorf("threads[%d]: duplicate thread id %d", i, t.ID))
		}
		seenThreads[t.ID] = true

		if !t.State.Valid() {
			errs = append(errs, fmt.Errorf("threads[%d]: unknown state %q", i, t.State))
		}

		for j, w := range t.WaitObjects {
			if !w.Kind.Valid() {
				errs = append(errs, fmt.Errorf("threads[%d].waitObjects[%d]: unknown kind %q", i, j, w.Kind))
			}
		}
	}

	seenModules := make(map[string]bool, len(s.Modules))
	for i, m := range s.Modules {
		if m.Name == "" {
			continue
		}
		if seenModules[m.Name] {
			errs = append(errs, fmt.Errorf("modules[%d]: duplicate module name %q", i, m.Name))
		}
		seenModules[m.Name] = true
	}

	return errors.Join(errs...)
}

// MainThread returns the first thread flagged as main, else the first thread
func (s *CrashSnapshot) MainThread() (ThreadRecord, bool) {
	for _, t := range s.Threads {
		if t.IsMainThread {
			return t, true
		}
	}
	if len(s.Threads) > 0 {
		return s.Threads[0], true
	}
	return ThreadRecord{}, false
}

func (s *CrashSnapshot) FindModule(name string) (ModuleRecord, bool) {
	for _, m := range s.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleRecord{}, false
}

func (s *CrashSnapshot) FindThread(id uint32) (ThreadRecord, bool) {
	for _, t := range s.Threads {
		if t.ID == id {
			return t, true
		}
	}
	return ThreadRecord{}, false
}
