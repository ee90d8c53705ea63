package diagnosis

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

const contentionConfidence = 80

type DeadlockResult struct {
	// Structural smell test: more than one waiter and waiters are at least half of all threads
	Suspected bool
	Info      DeadlockInfo
}

// AnalyzeDeadlocks reports every pair of waiters contending on a shared
// wait-object handle. With ownership enabled it also runs SCC detection over
// the waiter -> owner graph.
func AnalyzeDeadlocks(threads []snapshot.ThreadRecord, ownership bool) DeadlockResult {
	var waiters []snapshot.ThreadRecord
	for _, t := range threads {
		if t.IsWaiter() {
			waiters = append(waiters, t)
		}
	}

	result := DeadlockResult{
		Suspected: len(waiters) > 1 && 2*len(waiters) >= len(threads),
		Info: DeadlockInfo{
			Cycles: []DeadlockCycle{},
		},
	}

	for i := 0; i < len(waiters); i++ {
		for j := i + 1; j < len(waiters); j++ {
			shared := sharedHandles(waiters[i], waiters[j])
			if len(shared) == 0 {
				continue
			}
			result.Info.Cycles = append(result.Info.Cycles, newContentionCycle(waiters[i], waiters[j], shared))
		}
	}
	result.Info.Detected = len(result.Info.Cycles) > 0

	if ownership {
		result.Info.OwnershipCycles = findOwnershipCycles(threads, waiters)
	}

	return result
}

// sharedHandles keeps a's wait-object order
func sharedHandles(a, b snapshot.ThreadRecord) []string {
	inB := make(map[string]bool, len(b.WaitObjects))
	for _, w := range b.WaitObjects {
		inB[w.Handle] = true
	}

	var shared []string
	for _, w := range a.WaitObjects {
		if inB[w.Handle] && !slices.Contains(shared, w.Handle) {
			shared = append(shared, w.Handle)
		}
	}
	return shared
}

func newContentionCycle(a, b snapshot.ThreadRecord, shared []string) DeadlockCycle {
	kinds := make(map[string]snapshot.WaitObjectKind)
	for _, t := range []snapshot.ThreadRecord{a, b} {
		for _, w := range t.WaitObjects {
			if _, ok := kinds[w.Handle]; !ok {
				kinds[w.Handle] = w.Kind
			}
		}
	}

	resources := make([]string, 0, len(shared))
	for _, h := range shared {
		resources = append(resources, fmt.Sprintf("%s (%s)", h, kinds[h]))
	}

	return DeadlockCycle{
		ThreadIDs:       []uint32{a.ID, b.ID},
		ResourceHandles: shared,
		Evidence: Evidence{
			Kind: EvidenceThreadState,
			Description: fmt.Sprintf("Threads %d and %d are both %s on %s, a circular wait condition",
				a.ID, b.ID, waitVerb(a, b), strings.Join(shared, ", ")),
			TechnicalDetails: fmt.Sprintf("thread %d: %s, %d wait objects; thread %d: %s, %d wait objects; shared: %s",
				a.ID, a.State, len(a.WaitObjects), b.ID, b.State, len(b.WaitObjects), strings.Join(resources, ", ")),
			Confidence: contentionConfidence,
		},
	}
}

func waitVerb(a, b snapshot.ThreadRecord) string {
	if a.State == snapshot.StateBlocked || b.State == snapshot.StateBlocked {
		return "blocked"
	}
	return "waiting"
}

// findOwnershipCycles runs Tarjan's algorithm over edges waiter -> owner.
// Owners not present in the snapshot are dropped so every reported id is real.
func findOwnershipCycles(threads, waiters []snapshot.ThreadRecord) [][]uint32 {
	known := make(map[uint32]bool, len(threads))
	for _, t := range threads {
		known[t.ID] = true
	}

	edges := make(map[uint32][]uint32)
	var nodes []uint32
	addNode := func(id uint32) {
		if _, ok := edges[id]; !ok {
			edges[id] = nil
			nodes = append(nodes, id)
		}
	}

	for _, w := range waiters {
		addNode(w.ID)
		for _, obj := range w.WaitObjects {
			if obj.OwnerThread == nil || !known[*obj.OwnerThread] {
				continue
			}
			owner := *obj.OwnerThread
			addNode(owner)
			if !slices.Contains(edges[w.ID], owner) {
				edges[w.ID] = append(edges[w.ID], owner)
			}
		}
	}

	t := &tarjan{
		edges:   edges,
		index:   make(map[uint32]int),
		lowlink: make(map[uint32]int),
		onStack: make(map[uint32]bool),
	}
	for _, n := range nodes {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}

	var cycles [][]uint32
	for _, scc := range t.components {
		if len(scc) > 1 || slices.Contains(edges[scc[0]], scc[0]) {
			slices.Sort(scc)
			cycles = append(cycles, scc)
		}
	}
	slices.SortFunc(cycles, func(a, b []uint32) int {
		return cmp.Compare(a[0], b[0])
	})
	return cycles
}

type tarjan struct {
	edges      map[uint32][]uint32
	index      map[uint32]int
	lowlink    map[uint32]int
	onStack    map[uint32]bool
	stack      []uint32
	counter    int
	components [][]uint32
}

func (t *tarjan) strongConnect(v uint32) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.edges[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}

	var scc []uint32
	for {
		n := len(t.stack) - 1
		w := t.stack[n]
		t.stack = t.stack[:n]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, scc)
}
