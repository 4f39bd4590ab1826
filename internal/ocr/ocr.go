// Package ocr extracts page text from scanned documents by shelling out
// to poppler and tesseract.
package ocr

import (
	"context"
)

// Page is one page's extracted text, 1-indexed in document order. Pages
// with no extractable text are retained with empty text so page-number
// continuity is preserved.
type Page struct {
	Number int
	Text   string
}

// Engine extracts ordered page text from a source artifact. A failure is
// reported as a single error covering the whole document.
type Engine interface {
	ExtractPDF(ctx context.Context, path string) ([]Page, error)
	ExtractImage(ctx context.Context, path string) ([]Page, error)
}

// Config holds the external binaries and tuning for the tesseract engine.
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Languages string // tesseract -l value, default "tam+eng"
	DPI       int    // rasterization DPI for scanned PDFs, default 300
	MaxPages  int    // 0 = no limit

	TessdataDir string
}

func (c Config) withDefaults() Config {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Languages == "" {
		c.Languages = "tam+eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	return c
}
