package gateway

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// judgeSchemaJSON describes the /judge request body shape, compiled
// once at startup so malformed submissions are rejected before a
// sandboxed run is ever spent on them.
const judgeSchemaJSON = `{
  "type": "object",
  "required": ["wasm", "specs"],
  "properties": {
    "wasm": {"type": "string"},
    "callback": {"type": "string"},
    "specs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["output_hash", "cost", "memory"],
        "properties": {
          "input": {"type": "string"},
          "input_url": {"type": "string"},
          "input_auth": {"type": "string"},
          "output_hash": {"type": "string"},
          "cost": {"type": "integer", "minimum": 0},
          "memory": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

// compileJudgeSchema compiles the embedded schema document the same
// way the teacher's StructuredValidator compiles agent-response
// schemas: UnmarshalJSON for json.Number handling, AddResource, Compile.
func compileJudgeSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(judgeSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal judge schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("judge.json", doc); err != nil {
		return nil, fmt.Errorf("add judge schema resource: %w", err)
	}
	schema, err := c.Compile("judge.json")
	if err != nil {
		return nil, fmt.Errorf("compile judge schema: %w", err)
	}
	return schema, nil
}

// validateJudgeBody re-decodes the raw body through jsonschema's
// UnmarshalJSON (for its json.Number handling) and validates it,
// independent of the typed decode handleJudge also performs.
func validateJudgeBody(schema *jsonschema.Schema, body []byte) error {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
