package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner emulates pdftoppm and tesseract. A pdftoppm call writes
// fake page images under the requested prefix; a tesseract call returns
// canned text keyed by the image's page number.
type stubRunner struct {
	pageCount    int
	pageText     map[int]string
	pdftoppmErr  error
	tesseractErr error

	calls []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name)

	switch name {
	case "pdftoppm":
		if s.pdftoppmErr != nil {
			return nil, []byte("syntax error"), s.pdftoppmErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= s.pageCount; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		if s.tesseractErr != nil {
			return nil, []byte("no such language"), s.tesseractErr
		}
		img := args[0]
		base := strings.TrimSuffix(filepath.Base(img), ".png")
		var page int
		fmt.Sscanf(base[strings.LastIndex(base, "-")+1:], "%d", &page)
		return []byte(s.pageText[page] + "\n"), nil, nil
	default:
		return nil, nil, fmt.Errorf("unexpected command %q", name)
	}
}

func TestExtractPDF(t *testing.T) {
	runner := &stubRunner{
		pageCount: 3,
		pageText:  map[int]string{1: "page one", 2: "page two", 3: "page three"},
	}
	engine := NewTesseractWithRunner(Config{}, runner)

	pages, err := engine.ExtractPDF(context.Background(), "/docs/deed.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, page := range pages {
		assert.Equal(t, i+1, page.Number, "pages are 1-indexed in document order")
	}
	assert.Equal(t, "page one", pages[0].Text, "OCR output is trimmed")
	assert.Equal(t, "page three", pages[2].Text)

	assert.Equal(t, "pdftoppm", runner.calls[0])
	assert.Equal(t, 4, len(runner.calls), "one rasterize plus one OCR per page")
}

func TestExtractPDFMaxPages(t *testing.T) {
	runner := &stubRunner{
		pageCount: 5,
		pageText:  map[int]string{1: "a", 2: "b", 3: "c", 4: "d", 5: "e"},
	}
	engine := NewTesseractWithRunner(Config{MaxPages: 2}, runner)

	pages, err := engine.ExtractPDF(context.Background(), "/docs/deed.pdf")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestExtractPDFRasterizeFailure(t *testing.T) {
	runner := &stubRunner{pdftoppmErr: errors.New("exit status 1")}
	engine := NewTesseractWithRunner(Config{}, runner)

	_, err := engine.ExtractPDF(context.Background(), "/docs/deed.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftoppm")
	assert.Contains(t, err.Error(), "syntax error", "stderr is carried in the error")
}

func TestExtractPDFNoPages(t *testing.T) {
	runner := &stubRunner{pageCount: 0}
	engine := NewTesseractWithRunner(Config{}, runner)

	_, err := engine.ExtractPDF(context.Background(), "/docs/empty.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no page images")
}

func TestExtractPDFOCRFailure(t *testing.T) {
	runner := &stubRunner{pageCount: 1, tesseractErr: errors.New("exit status 1")}
	engine := NewTesseractWithRunner(Config{}, runner)

	_, err := engine.ExtractPDF(context.Background(), "/docs/deed.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr page 1")
}

func TestExtractImage(t *testing.T) {
	runner := &stubRunner{pageText: map[int]string{0: "single page text"}}
	engine := NewTesseractWithRunner(Config{}, runner)

	pages, err := engine.ExtractImage(context.Background(), "/docs/scan-0.png")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "single page text", pages[0].Text)
	assert.Equal(t, []string{"tesseract"}, runner.calls)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "pdftoppm", cfg.Pdftoppm)
	assert.Equal(t, "tesseract", cfg.Tesseract)
	assert.Equal(t, "tam+eng", cfg.Languages)
	assert.Equal(t, 300, cfg.DPI)
}
