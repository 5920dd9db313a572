package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const comparisonSchemaURL = "comparison.schema.json"

// CompileSchema compiles the verdict schema under draft 2020-12.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(comparisonSchemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return c.Compile(comparisonSchemaURL)
}

// ValidateJSON decodes data with json.Number and checks it against schema.
// A violation is reported at its deepest instance location.
func ValidateJSON(schema *jsonschema.Schema, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}

	err := schema.Validate(doc)
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := deepestCause(ve)
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Errorf("schema violation at %s: %s", loc, leaf.Message)
	}
	return err
}

func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
