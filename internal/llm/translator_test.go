package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsTamil(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"pure tamil", "இது ஒரு சட்ட ஆவணம்", true},
		{"mixed script", "Sale deed no. 42: விற்பனை பத்திரம்", true},
		{"pure english", "This deed is made on the first of June.", false},
		{"empty", "", false},
		{"digits and punctuation", "42 / 2024 - §3(b)", false},
		{"devanagari is not tamil", "यह एक दस्तावेज़ है", false},
		{"block boundaries", string(rune(0x0B80)) + string(rune(0x0BFF)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsTamil(tt.text))
		})
	}
}

// fakeClient returns canned responses per method.
type fakeClient struct {
	content     string
	jsonContent string
	err         error

	lastPrompt string
	lastTier   ModelTier
}

func (f *fakeClient) GenerateContent(_ context.Context, prompt string, tier ModelTier) (string, error) {
	f.lastPrompt, f.lastTier = prompt, tier
	return f.content, f.err
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, tier ModelTier) (string, error) {
	f.lastPrompt, f.lastTier = prompt, tier
	return f.jsonContent, f.err
}

func (f *fakeClient) Close() error { return nil }

func TestTranslatePageUsesLiteTier(t *testing.T) {
	client := &fakeClient{content: "  The seller transfers the property.  "}
	translator := NewTranslator(client)

	out, err := translator.TranslatePage(context.Background(), "விற்பனையாளர்", 3)
	require.NoError(t, err)
	assert.Equal(t, "The seller transfers the property.", out, "output is trimmed")
	assert.Equal(t, TierLite, client.lastTier)
	assert.Contains(t, client.lastPrompt, "விற்பனையாளர்")
	assert.Contains(t, client.lastPrompt, "page 3")
}

func TestSimplifyPagePropagatesError(t *testing.T) {
	client := &fakeClient{err: errors.New("quota exceeded")}
	translator := NewTranslator(client)

	_, err := translator.SimplifyPage(context.Background(), "legal text", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simplify page 1")
}

func TestSummarize(t *testing.T) {
	client := &fakeClient{jsonContent: `{"summary": "A sale deed between two parties.", "key_points": ["Price: 5 lakh", "Registered 2021"]}`}
	translator := NewTranslator(client)

	out, err := translator.Summarize(context.Background(), []PageContent{
		{Number: 1, Text: "page one text"},
		{Number: 2, Text: "page two text"},
	})
	require.NoError(t, err)
	assert.Equal(t, TierStandard, client.lastTier)
	assert.Contains(t, client.lastPrompt, "page one text")
	assert.Equal(t, "A sale deed between two parties.\n\n- Price: 5 lakh\n- Registered 2021", out)
}

func TestSummarizeWithoutKeyPoints(t *testing.T) {
	client := &fakeClient{jsonContent: `{"summary": "Just a synopsis."}`}
	translator := NewTranslator(client)

	out, err := translator.Summarize(context.Background(), []PageContent{{Number: 1, Text: "text"}})
	require.NoError(t, err)
	assert.Equal(t, "Just a synopsis.", out)
}

func TestSummarizeRejectsInvalidResponse(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", "I cannot summarize this document."},
		{"missing summary", `{"key_points": ["a"]}`},
		{"empty summary", `{"summary": ""}`},
		{"unexpected field", `{"summary": "ok", "verdict": "guilty"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translator := NewTranslator(&fakeClient{jsonContent: tt.json})
			_, err := translator.Summarize(context.Background(), []PageContent{{Number: 1, Text: "text"}})
			require.Error(t, err)
		})
	}
}
