package analysis

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// responseSchema checks the shape of a metrics response. It constrains
// container types only: figures may be numbers, strings or null. The metrics
// key is required, but a metrics object without any groups is accepted here
// and rejected later as the wrong document.
const responseSchema = `{
  "type": "object",
  "required": ["metrics"],
  "properties": {
    "metrics": {
      "type": ["object", "null"],
      "properties": {
        "current_quarter": {"type": ["object", "null"]},
        "full_year": {"type": ["object", "null"]},
        "forward_guidance": {
          "type": ["object", "null"],
          "additionalProperties": {"type": ["object", "null"]}
        }
      }
    },
    "sentiment_snippets": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "snippet": {"type": "string"},
          "classification": {"type": "string"}
        }
      }
    }
  }
}`

// LoadSchema compiles the built-in response schema, or the schema at path when set.
func LoadSchema(path string) (*gojsonschema.Schema, error) {
	loader := gojsonschema.NewStringLoader(responseSchema)
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve schema path: %w", err)
		}
		loader = gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs))
	}

	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema: %w", err)
	}
	return schema, nil
}

// validate returns an error listing every schema violation in doc.
func validate(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("response does not match schema: %s", strings.Join(problems, "; "))
}
