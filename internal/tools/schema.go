package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// noArgs is the argument type of tools that take no parameters.
type noArgs struct{}

// SchemaFor reflects the JSON Schema of the argument struct T. Field
// descriptions come from `jsonschema_description` tags; fields without
// omitempty are required.
func SchemaFor[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	schema := reflector.Reflect(&zero)

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tools: marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("tools: unmarshal schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out, nil
}

// mustSchema is SchemaFor for static argument types defined in this package.
func mustSchema[T any]() map[string]any {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// decodeArgs converts the model's argument object into dst.
func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

// objectOf converts a result struct into a JSON object.
func objectOf(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

// outcome is the {success, message} object returned by mutating tools.
func outcome(success bool, message string) Result {
	return Result{Response: map[string]any{"success": success, "message": message}}
}
