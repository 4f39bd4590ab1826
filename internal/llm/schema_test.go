package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSummaryJSON(t *testing.T) {
	valid := []string{
		`{"summary": "A short synopsis."}`,
		`{"summary": "s", "key_points": []}`,
		`{"summary": "s", "key_points": ["one", "two"]}`,
	}
	for _, raw := range valid {
		assert.NoError(t, ValidateSummaryJSON(raw), raw)
	}

	invalid := []string{
		`{}`,
		`{"summary": ""}`,
		`{"summary": 42}`,
		`{"summary": "s", "key_points": [""]}`,
		`{"summary": "s", "key_points": ["ok", 7]}`,
		`{"summary": "s", "extra": true}`,
		`not json at all`,
	}
	for _, raw := range invalid {
		assert.Error(t, ValidateSummaryJSON(raw), raw)
	}
}

func TestValidateSummaryJSONErrorNamesField(t *testing.T) {
	err := ValidateSummaryJSON(`{"summary": "s", "key_points": [""]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_points")
}
