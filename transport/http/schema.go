package http

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CompilePayloadSchema compiles a JSON Schema document describing the
// shape an incoming event's payload must take. The result is assigned to
// Transport.PayloadSchema to turn on request-time validation; a
// Transport with a nil schema skips this check entirely.
func CompilePayloadSchema(schemaJSON []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal payload schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("payload.json", doc); err != nil {
		return nil, fmt.Errorf("add payload schema resource: %w", err)
	}
	schema, err := c.Compile("payload.json")
	if err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	return schema, nil
}

// rawField extracts one top-level field from a JSON object body without
// fully decoding it, for handing to validatePayload.
func rawField(body []byte, field string) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	return obj[field]
}

// validatePayload checks raw (the event's json.RawMessage payload) against
// schema. A nil schema always passes.
func validatePayload(schema *jsonschema.Schema, raw []byte) error {
	if schema == nil || len(raw) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload schema: %w", err)
	}
	return nil
}
