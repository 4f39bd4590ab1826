// Package jobs defines the processing job model, its status state machine,
// and the dispatch/progress infrastructure that drives a document through
// the OCR → translation → simplification → summarization pipeline.
package jobs

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the canonical processing status for a job. The exact strings
// are stored in the database and surfaced to API clients.
type Status string

const (
	StatusQueued               Status = "queued"
	StatusProcessing           Status = "processing"
	StatusOCRStarted           Status = "ocr_started"
	StatusOCRCompleted         Status = "ocr_completed"
	StatusTranslationStarted   Status = "translation_started"
	StatusTranslationCompleted Status = "translation_completed"
	StatusSummarising          Status = "summarising"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions encodes the legal status graph. The translation pair loops
// once per page; completed is reachable straight from ocr_completed when a
// document has no text-bearing pages; failed is reachable from any
// non-terminal state.
var transitions = map[Status][]Status{
	StatusQueued:               {StatusProcessing},
	StatusProcessing:           {StatusOCRStarted},
	StatusOCRStarted:           {StatusOCRCompleted},
	StatusOCRCompleted:         {StatusTranslationStarted, StatusCompleted},
	StatusTranslationStarted:   {StatusTranslationCompleted},
	StatusTranslationCompleted: {StatusTranslationStarted, StatusSummarising},
	StatusSummarising:          {StatusCompleted},
}

// CanTransition reports whether moving from one status to another is a
// legal step in the state machine.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourceKind tags the kind of source artifact a job processes. It is
// resolved once at submission time, not re-derived inside stages.
type SourceKind string

const (
	SourceKindPDF   SourceKind = "pdf"
	SourceKindImage SourceKind = "image"
)

// supportedExtensions maps lowercased file extensions to their source kind.
var supportedExtensions = map[string]SourceKind{
	".pdf":  SourceKindPDF,
	".png":  SourceKindImage,
	".jpg":  SourceKindImage,
	".jpeg": SourceKindImage,
	".tiff": SourceKindImage,
}

// KindForPath resolves the source kind from a file path's extension.
func KindForPath(path string) (SourceKind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := supportedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	return kind, nil
}

// PageResult holds the per-page output of the translation and
// simplification stages. Error carries a per-page note when a recoverable
// stage failed and the raw text was used as fallback.
type PageResult struct {
	PageNumber     int    `json:"page_number"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	SimplifiedText string `json:"simplified_text"`
	Error          string `json:"error,omitempty"`
}

// Job is one submitted document's pipeline execution record. The job ID
// doubles as the work-queue task ID so status lookups are O(1).
type Job struct {
	ID          uuid.UUID    `json:"job_id"`
	OwnerID     uuid.UUID    `json:"owner_id"`
	SourceKind  SourceKind   `json:"source_kind"`
	SourcePath  string       `json:"source_path"`
	Status      Status       `json:"status"`
	CurrentPage *int         `json:"current_page,omitempty"`
	TotalPages  *int         `json:"total_pages,omitempty"`
	PageResults []PageResult `json:"page_results,omitempty"`
	Summary     *string      `json:"summary,omitempty"`
	OutputPath  *string      `json:"output_path,omitempty"`
	ErrorMsg    *string      `json:"error_message,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Stale reports whether a non-terminal job has not been touched within
// the given threshold. A stale job's worker is presumed dead, which makes
// the document eligible for re-submission.
func (j *Job) Stale(threshold time.Duration, now time.Time) bool {
	if j.Status.Terminal() {
		return false
	}
	return now.Sub(j.UpdatedAt) > threshold
}
