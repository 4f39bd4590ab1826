package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"processing to ocr_started", StatusProcessing, StatusOCRStarted, true},
		{"ocr_started to ocr_completed", StatusOCRStarted, StatusOCRCompleted, true},
		{"ocr_completed to translation_started", StatusOCRCompleted, StatusTranslationStarted, true},
		{"ocr_completed direct to completed", StatusOCRCompleted, StatusCompleted, true},
		{"translation pair loops forward", StatusTranslationStarted, StatusTranslationCompleted, true},
		{"translation pair loops back", StatusTranslationCompleted, StatusTranslationStarted, true},
		{"translation_completed to summarising", StatusTranslationCompleted, StatusSummarising, true},
		{"summarising to completed", StatusSummarising, StatusCompleted, true},

		{"failed from queued", StatusQueued, StatusFailed, true},
		{"failed from processing", StatusProcessing, StatusFailed, true},
		{"failed from summarising", StatusSummarising, StatusFailed, true},

		{"no skipping ocr", StatusProcessing, StatusOCRCompleted, false},
		{"no skipping translation", StatusOCRCompleted, StatusSummarising, false},
		{"queued cannot complete", StatusQueued, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"completed cannot fail", StatusCompleted, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusQueued, false},
		{"failed cannot fail again", StatusFailed, StatusFailed, false},
		{"no backwards to queued", StatusProcessing, StatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusSummarising.Terminal())
}

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    SourceKind
		wantErr bool
	}{
		{"/docs/deed.pdf", SourceKindPDF, false},
		{"/docs/DEED.PDF", SourceKindPDF, false},
		{"/docs/scan.png", SourceKindImage, false},
		{"/docs/scan.jpg", SourceKindImage, false},
		{"/docs/scan.jpeg", SourceKindImage, false},
		{"/docs/scan.tiff", SourceKindImage, false},
		{"/docs/notes.docx", "", true},
		{"/docs/noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, err := KindForPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestStale(t *testing.T) {
	now := time.Now().UTC()
	threshold := 30 * time.Minute

	fresh := &Job{Status: StatusProcessing, UpdatedAt: now.Add(-time.Minute)}
	assert.False(t, fresh.Stale(threshold, now))

	abandoned := &Job{Status: StatusTranslationStarted, UpdatedAt: now.Add(-time.Hour)}
	assert.True(t, abandoned.Stale(threshold, now))

	// Terminal jobs are never stale, no matter how old.
	done := &Job{Status: StatusCompleted, UpdatedAt: now.Add(-24 * time.Hour)}
	assert.False(t, done.Stale(threshold, now))
}
