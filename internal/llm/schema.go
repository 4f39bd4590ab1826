package llm

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// summarySchema constrains the structured summary the model returns.
// Key points are optional but must be non-empty strings when present.
const summarySchema = `{
  "type": "object",
  "required": ["summary"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "key_points": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    }
  },
  "additionalProperties": false
}`

var summarySchemaLoader = gojsonschema.NewStringLoader(summarySchema)

// ValidateSummaryJSON checks a raw model response against the summary
// schema, returning a field-level error list on failure.
func ValidateSummaryJSON(raw string) error {
	result, err := gojsonschema.Validate(summarySchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("invalid summary JSON:")
	for _, desc := range result.Errors() {
		fmt.Fprintf(&sb, " %s: %s;", desc.Field(), desc.Description())
	}
	return fmt.Errorf("%s", strings.TrimSuffix(sb.String(), ";"))
}
