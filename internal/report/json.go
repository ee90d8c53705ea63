package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
)

// Envelope wraps a diagnosis for export. The diagnosis itself is embedded
// unchanged so consumers can rely on its field names.
type Envelope struct {
	ID          string                    `json:"id"`
	GeneratedAt time.Time                 `json:"generatedAt"`
	Source      string                    `json:"source"`
	Diagnosis   *diagnosis.CrashDiagnosis `json:"diagnosis"`
}

func NewEnvelope(source string, d *diagnosis.CrashDiagnosis) *Envelope {
	return &Envelope{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Diagnosis:   d,
	}
}

func WriteJSON(w io.Writer, env *Envelope) error {
	if env == nil || env.Diagnosis == nil {
		return fmt.Errorf("invalid report data: diagnosis cannot be nil")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
