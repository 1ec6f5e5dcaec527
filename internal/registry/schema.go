package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/pkg/models"
)

// schemaCache compiles each tool's input_schema once, keyed by its raw JSON
// text.
var schemaCache sync.Map

func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// validateArgs checks args against spec.InputSchema when the tool declares
// one. Tools with no InputSchema accept any well-formed JSON object.
func validateArgs(spec models.ToolSpec, args json.RawMessage) error {
	if len(spec.InputSchema) == 0 {
		return nil
	}
	schema, err := compileSchema(spec.InputSchema)
	if err != nil {
		return errkind.New(errkind.Internal, "registry.validateArgs", fmt.Errorf("compile schema for %s: %w", spec.Name, err))
	}

	var decoded any
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return errkind.New(errkind.BadRequest, "registry.validateArgs", fmt.Errorf("args is not valid JSON: %w", err))
	}
	if err := schema.Validate(decoded); err != nil {
		return errkind.New(errkind.BadRequest, "registry.validateArgs", fmt.Errorf("args for %s: %w", spec.Name, err))
	}
	return nil
}
