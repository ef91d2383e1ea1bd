package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas-scanner/constants"
)

// Scan represents one capture-and-extract attempt for data transfer
// between layers.
type Scan struct {
	ID           uuid.UUID            `json:"id"`
	Source       string               `json:"source"`
	Status       constants.ScanStatus `json:"status"`
	Engine       *string              `json:"engine,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
	DurationMS   *int64               `json:"duration_ms,omitempty"`
	OCRText      *string              `json:"ocr_text,omitempty"`
	Fields       map[string]string    `json:"fields,omitempty"`
	Confidence   *float32             `json:"confidence,omitempty"`
	NeedsReview  bool                 `json:"needs_review"`
	ErrorMessage *string              `json:"error_message,omitempty"`
}

// Finished reports whether the scan left the RUNNING state.
func (s *Scan) Finished() bool {
	return s.Status != constants.ScanStatusRunning
}
