package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tesseract is the production Engine. PDFs are rasterized page by page
// with pdftoppm, then each page image goes through tesseract; images are
// a single page.
type Tesseract struct {
	cfg    Config
	runner Runner
}

// NewTesseract creates an engine with the default exec runner.
func NewTesseract(cfg Config) *Tesseract {
	return &Tesseract{cfg: cfg.withDefaults(), runner: execRunner{}}
}

// NewTesseractWithRunner creates an engine with a custom runner, used by
// tests to stub the external binaries.
func NewTesseractWithRunner(cfg Config, runner Runner) *Tesseract {
	return &Tesseract{cfg: cfg.withDefaults(), runner: runner}
}

// ExtractPDF rasterizes the PDF and OCRs every page in order.
func (t *Tesseract) ExtractPDF(ctx context.Context, path string) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "legalease-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := t.runner.Run(ctx, t.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", t.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm names pages prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if t.cfg.MaxPages > 0 && len(matches) > t.cfg.MaxPages {
		matches = matches[:t.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no page images for %s", path)
	}

	pages := make([]Page, 0, len(matches))
	for i, img := range matches {
		text, err := t.ocrImage(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("ocr page %d: %w", i+1, err)
		}
		pages = append(pages, Page{Number: i + 1, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}

// ExtractImage OCRs a single image as page 1.
func (t *Tesseract) ExtractImage(ctx context.Context, path string) ([]Page, error) {
	text, err := t.ocrImage(ctx, path)
	if err != nil {
		return nil, err
	}
	return []Page{{Number: 1, Text: strings.TrimSpace(text)}}, nil
}

func (t *Tesseract) ocrImage(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", t.cfg.Languages}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <langs>
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
