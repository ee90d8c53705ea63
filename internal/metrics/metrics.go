package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
)

// Metrics instruments the diagnosis engine. It satisfies diagnosis.Recorder.
type Metrics struct {
	DiagnosesTotal  *prometheus.CounterVec // by category and severity
	EvidenceTotal   *prometheus.CounterVec // by evidence kind
	FlagsTotal      *prometheus.CounterVec // deadlock, memory_corruption, stack_overflow
	CacheLookups    *prometheus.CounterVec // by result: hit or miss
	Confidence      prometheus.Histogram
	AnalysisSeconds prometheus.Histogram
}

// NewMetrics registers every collector with reg. Pass prometheus.NewRegistry()
// in tests to avoid collisions with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DiagnosesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dumpdiag_diagnoses_total",
			Help: "Total number of diagnoses produced",
		}, []string{"category", "severity"}),

		EvidenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dumpdiag_evidence_items_total",
			Help: "Total number of evidence items synthesized",
		}, []string{"kind"}),

		FlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dumpdiag_flags_raised_total",
			Help: "Total number of diagnoses raising each condition flag",
		}, []string{"flag"}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dumpdiag_cache_lookups_total",
			Help: "Diagnosis cache lookups by result",
		}, []string{"result"}),

		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dumpdiag_confidence_score",
			Help:    "Distribution of diagnosis confidence scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),

		AnalysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dumpdiag_analysis_duration_seconds",
			Help:    "Time spent producing a diagnosis",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	reg.MustRegister(m.DiagnosesTotal, m.EvidenceTotal, m.FlagsTotal, m.CacheLookups, m.Confidence, m.AnalysisSeconds)
	return m
}

func (m *Metrics) ObserveDiagnosis(d *diagnosis.CrashDiagnosis, elapsed time.Duration) {
	m.DiagnosesTotal.WithLabelValues(d.Category, string(d.Severity)).Inc()

	for _, e := range d.Evidence {
		m.EvidenceTotal.WithLabelValues(string(e.Kind)).Inc()
	}

	if d.DeadlockDetected {
		m.FlagsTotal.WithLabelValues("deadlock").Inc()
	}
	if d.MemoryCorruption {
		m.FlagsTotal.WithLabelValues("memory_corruption").Inc()
	}
	if d.StackOverflow {
		m.FlagsTotal.WithLabelValues("stack_overflow").Inc()
	}

	m.Confidence.Observe(float64(d.Confidence))
	m.AnalysisSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
