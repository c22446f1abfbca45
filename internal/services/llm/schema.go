package llm

import "fmt"

// validateAgainstSchema performs a shallow structural check: every
// property listed in schema["required"] must be present in value, and
// where schema["properties"][name]["type"] is given, the value's dynamic
// type must be compatible. This is intentionally not a full JSON Schema
// implementation — no example repo in the pack carries one, and the
// gateway only needs to catch the common drift cases (missing field,
// wrong primitive kind) to decide whether a repair round-trip is needed.
func validateAgainstSchema(value map[string]interface{}, schema map[string]interface{}) error {
	required, _ := schema["required"].([]interface{})
	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := value[name]; !present {
			return fmt.Errorf("schema-violation: missing required field %q", name)
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})
	for name, propSchema := range properties {
		propMap, ok := propSchema.(map[string]interface{})
		if !ok {
			continue
		}
		wantType, _ := propMap["type"].(string)
		if wantType == "" {
			continue
		}
		got, present := value[name]
		if !present {
			continue
		}
		if !typeMatches(got, wantType) {
			return fmt.Errorf("schema-violation: field %q expected type %q", name, wantType)
		}
	}

	return nil
}

func typeMatches(value interface{}, wantType string) bool {
	switch wantType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, int:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	default:
		return true
	}
}

// emptyValueForSchema builds a schema-valid but semantically empty result,
// used by the no-credentials and disabled degradation rungs.
func emptyValueForSchema(schema map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	properties, _ := schema["properties"].(map[string]interface{})
	for name, propSchema := range properties {
		propMap, ok := propSchema.(map[string]interface{})
		if !ok {
			out[name] = nil
			continue
		}
		switch propMap["type"] {
		case "string":
			out[name] = ""
		case "array":
			out[name] = []interface{}{}
		case "object":
			out[name] = map[string]interface{}{}
		case "boolean":
			out[name] = false
		case "number":
			out[name] = 0
		default:
			out[name] = nil
		}
	}
	return out
}
