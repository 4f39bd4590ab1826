package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// tamil reports whether the rune falls in the Tamil Unicode block
// (U+0B80–U+0BFF).
func tamil(r rune) bool {
	return r >= 0x0B80 && r <= 0x0BFF
}

// ContainsTamil is the source-script detector: a page is routed to
// translation only when it contains at least one Tamil character.
func ContainsTamil(text string) bool {
	for _, r := range text {
		if tamil(r) {
			return true
		}
	}
	return false
}

// PageContent is one page's contribution to the document summary.
type PageContent struct {
	Number int
	Text   string
}

const translatePrompt = `You are a legal translator. Translate the following Tamil legal document text (page %d) into precise legal English. Preserve names, dates, amounts, and legal terms exactly. Output only the translation, no commentary.

Text:
%s`

const simplifyPrompt = `You are a plain-language editor. Rewrite the following legal English text (page %d) in simple, plain English that a layperson can understand. Keep all facts, names, dates and amounts. Output only the rewrite, no commentary.

Text:
%s`

const summarizePrompt = `You are a legal assistant. Summarize the following translated legal document. Respond with JSON matching this shape exactly:
{"summary": "<two or three sentence synopsis>", "key_points": ["<point>", ...]}

Document:
%s`

// Translator runs the three language-model operations of the pipeline:
// per-page translation, per-page simplification, and whole-document
// summarization.
type Translator struct {
	client Client
}

// NewTranslator wraps an LLM client.
func NewTranslator(client Client) *Translator {
	return &Translator{client: client}
}

// TranslatePage translates one page of Tamil legal text to legal English.
func (t *Translator) TranslatePage(ctx context.Context, text string, pageNum int) (string, error) {
	out, err := t.client.GenerateContent(ctx, fmt.Sprintf(translatePrompt, pageNum, text), TierLite)
	if err != nil {
		return "", fmt.Errorf("translate page %d: %w", pageNum, err)
	}
	return strings.TrimSpace(out), nil
}

// SimplifyPage rewrites one page of legal English as plain language.
func (t *Translator) SimplifyPage(ctx context.Context, text string, pageNum int) (string, error) {
	out, err := t.client.GenerateContent(ctx, fmt.Sprintf(simplifyPrompt, pageNum, text), TierLite)
	if err != nil {
		return "", fmt.Errorf("simplify page %d: %w", pageNum, err)
	}
	return strings.TrimSpace(out), nil
}

// summaryResponse is the structured summary the model must return.
type summaryResponse struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Summarize produces a document-level synopsis from the ordered per-page
// results. The model's JSON response is validated against a schema before
// being accepted.
func (t *Translator) Summarize(ctx context.Context, pages []PageContent) (string, error) {
	var doc strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&doc, "Page %d\n%s\n\n", p.Number, p.Text)
	}

	raw, err := t.client.GenerateJSON(ctx, fmt.Sprintf(summarizePrompt, doc.String()), TierStandard)
	if err != nil {
		return "", fmt.Errorf("summarize document: %w", err)
	}

	if err := ValidateSummaryJSON(raw); err != nil {
		return "", fmt.Errorf("summary response rejected: %w", err)
	}

	var resp summaryResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", fmt.Errorf("parse summary response: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(resp.Summary))
	if len(resp.KeyPoints) > 0 {
		sb.WriteString("\n")
		for _, kp := range resp.KeyPoints {
			sb.WriteString("\n- ")
			sb.WriteString(strings.TrimSpace(kp))
		}
	}
	return sb.String(), nil
}
