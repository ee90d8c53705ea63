package diagnosis

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/dumpdiag/internal/logging"
	"github.com/mabhi256/dumpdiag/internal/snapshot"
)

type Options struct {
	StackDepthThreshold int
	SuspiciousPatterns  []string
	// Run SCC detection over waiter -> owner edges in addition to pairwise contention
	OwnershipCycles bool
	// Run the independent analyzers concurrently
	Parallel bool
	// Number of diagnoses memoized by snapshot digest, 0 disables the cache
	CacheSize int
}

func DefaultOptions() Options {
	return Options{
		StackDepthThreshold: DefaultStackDepthThreshold,
		SuspiciousPatterns:  append([]string(nil), DefaultSuspiciousPatterns...),
	}
}

// Recorder receives instrumentation events. It is optional.
type Recorder interface {
	ObserveDiagnosis(d *CrashDiagnosis, elapsed time.Duration)
	ObserveCache(hit bool)
}

type Engine struct {
	opts     Options
	recorder Recorder
	cache    *lru.Cache[string, *CrashDiagnosis]
	logger   *logging.Logger
}

func NewEngine(opts Options, recorder Recorder) (*Engine, error) {
	if opts.StackDepthThreshold <= 0 {
		opts.StackDepthThreshold = DefaultStackDepthThreshold
	}
	if opts.SuspiciousPatterns == nil {
		opts.SuspiciousPatterns = append([]string(nil), DefaultSuspiciousPatterns...)
	}

	e := &Engine{
		opts:     opts,
		recorder: recorder,
		logger:   logging.GetLogger("diagnosis.engine"),
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, *CrashDiagnosis](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create diagnosis cache: %w", err)
		}
		e.cache = cache
	}

	return e, nil
}

// Diagnose runs every analyzer over snap with default options. It never fails.
func Diagnose(snap *snapshot.CrashSnapshot) *CrashDiagnosis {
	e := &Engine{opts: DefaultOptions(), logger: logging.GetLogger("diagnosis.engine")}
	d, _ := e.Diagnose(context.Background(), snap)
	return d
}

// stageResults holds one private slot per analyzer so concurrent stages
// never share writes.
type stageResults struct {
	classification Classification
	deadlock       DeadlockResult
	memory         MemoryResult
	stack          StackResult
	modules        []string
	evidence       []Evidence
	confidence     int
}

// Diagnose returns either a complete diagnosis or ctx's error, never both.
func (e *Engine) Diagnose(ctx context.Context, snap *snapshot.CrashSnapshot) (*CrashDiagnosis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snap == nil {
		snap = &snapshot.CrashSnapshot{}
	}

	start := time.Now()

	digest := ""
	if e.cache != nil {
		if d, err := snapshot.Digest(snap); err == nil {
			digest = d
			if cached, ok := e.cache.Get(digest); ok {
				e.observeCache(true)
				e.logger.Debug("cache hit for snapshot %s", shortDigest(digest))
				return cached, nil
			}
			e.observeCache(false)
		} else {
			e.logger.Warn("snapshot digest failed, caching disabled for this call: %v", err)
		}
	}

	var (
		results stageResults
		err     error
	)
	if e.opts.Parallel {
		err = e.runParallel(ctx, snap, &results)
	} else {
		err = e.runSequential(ctx, snap, &results)
	}
	if err != nil {
		return nil, err
	}

	d := e.aggregate(&results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.logger.DebugWithFields("diagnosis complete",
		logging.Field("category", d.Category),
		logging.Field("confidence", d.Confidence),
		logging.Field("evidence", len(d.Evidence)),
		logging.Field("elapsed", elapsed),
	)

	if e.cache != nil && digest != "" {
		e.cache.Add(digest, d)
	}
	if e.recorder != nil {
		e.recorder.ObserveDiagnosis(d, elapsed)
	}
	return d, nil
}

func (e *Engine) stages(snap *snapshot.CrashSnapshot, r *stageResults) []func() {
	return []func(){
		func() { r.classification = ClassifyException(snap.Exception) },
		func() { r.deadlock = AnalyzeDeadlocks(snap.Threads, e.opts.OwnershipCycles) },
		func() { r.memory = AnalyzeMemoryCorruption(snap) },
		func() { r.stack = AnalyzeStack(snap, e.opts.StackDepthThreshold) },
		func() { r.modules = ScanModules(snap, e.opts.SuspiciousPatterns) },
		func() { r.evidence = SynthesizeEvidence(snap) },
		func() { r.confidence = ScoreConfidence(snap) },
	}
}

// runSequential checks for cancellation between stages
func (e *Engine) runSequential(ctx context.Context, snap *snapshot.CrashSnapshot, r *stageResults) error {
	for _, stage := range e.stages(snap, r) {
		if err := ctx.Err(); err != nil {
			return err
		}
		stage()
	}
	return nil
}

func (e *Engine) runParallel(ctx context.Context, snap *snapshot.CrashSnapshot, r *stageResults) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, stage := range e.stages(snap, r) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stage()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// aggregate is the single merge step. Advisory tables run last because
// they read the flags computed by the analyzers.
func (e *Engine) aggregate(r *stageResults) *CrashDiagnosis {
	evidence := make([]Evidence, 0, len(r.memory.Evidence)+len(r.stack.Evidence)+len(r.evidence))
	evidence = append(evidence, r.memory.Evidence...)
	evidence = append(evidence, r.stack.Evidence...)
	evidence = append(evidence, r.evidence...)

	d := &CrashDiagnosis{
		Category:         r.classification.Category,
		Severity:         r.classification.Severity,
		Confidence:       clampScore(r.confidence),
		RootCause:        r.classification.RootCause,
		PossibleCauses:   r.classification.PossibleCauses,
		ProblemModules:   r.modules,
		DeadlockDetected: r.deadlock.Suspected,
		MemoryCorruption: r.memory.Corruption,
		StackOverflow:    r.stack.Overflow,
		Evidence:         evidence,
		DeadlockInfo:     r.deadlock.Info,
		HeapAnalysis:     r.memory.Heap,
		StackAnalysis:    r.stack.Analysis,
	}

	f := Findings{
		Category:         d.Category,
		StackOverflow:    d.StackOverflow,
		DeadlockDetected: d.DeadlockDetected,
		MemoryCorruption: d.MemoryCorruption,
		ProblemModules:   d.ProblemModules,
		PossibleCauses:   d.PossibleCauses,
		EvidenceKinds:    make(map[EvidenceKind]bool),
	}
	for _, kind := range d.EvidenceKinds() {
		f.EvidenceKinds[kind] = true
	}

	d.Recommendations = GenerateRecommendations(f)
	d.AlternativeExplanations = GenerateAlternatives(f)
	return d
}

func (e *Engine) observeCache(hit bool) {
	if e.recorder != nil {
		e.recorder.ObserveCache(hit)
	}
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
