// Package render turns a processed document into a downloadable PDF.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"
)

// Section is one block of rendered text: the per-page translated content
// or the document summary.
type Section struct {
	Title string
	Body  string
}

// PDF renders a title and ordered sections to PDF bytes. Body lines use a
// light markdown subset: leading '#' marks a heading, "- " or "* " marks
// a bullet.
func PDF(title string, sections []Section) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("legalease", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 10, title, "", "L", false)
	pdf.Ln(6)

	for _, section := range sections {
		writeSection(pdf, section)
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gofpdf.Fpdf, section Section) {
	if section.Title != "" {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 8, section.Title, "", "L", false)
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "", 12)

	for _, line := range strings.Split(section.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			pdf.Ln(4)
			continue
		}
		switch {
		case strings.HasPrefix(line, "#"):
			text := strings.TrimSpace(strings.TrimLeft(line, "#"))
			pdf.SetFont("Helvetica", "B", 13)
			pdf.MultiCell(0, 7, text, "", "L", false)
			pdf.SetFont("Helvetica", "", 12)
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			pdf.MultiCell(0, 6, fmt.Sprintf("• %s", strings.TrimSpace(line[2:])), "", "L", false)
		default:
			pdf.MultiCell(0, 6, line, "", "L", false)
		}
	}
}
