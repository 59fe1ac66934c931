package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// RawArgumentsKey marks arguments the model sent as unparseable JSON
const RawArgumentsKey = "_raw"

// Validate checks args against a JSON-schema-like parameter contract:
// required fields, primitive types, and string enums. Unknown fields are
// ignored.
func Validate(args Args, schema map[string]interface{}) error {
	if raw, ok := args[RawArgumentsKey]; ok {
		return fmt.Errorf("arguments are not valid JSON: %v", raw)
	}
	if schema == nil {
		return nil
	}

	for _, field := range requiredFields(schema["required"]) {
		if _, exists := args[field]; !exists {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})
	if len(properties) == 0 {
		return nil
	}

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		propDef, ok := properties[key].(map[string]interface{})
		if !ok {
			continue
		}
		value := args[key]

		if expected, _ := propDef["type"].(string); expected != "" {
			if err := validateType(value, expected); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
		}
		if enum, ok := propDef["enum"].([]interface{}); ok && len(enum) > 0 {
			if !inEnum(value, enum) {
				return fmt.Errorf("field %s: %v is not one of %v", key, value, enum)
			}
		}
	}
	return nil
}

func requiredFields(v interface{}) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, item := range req {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func inEnum(value interface{}, enum []interface{}) bool {
	for _, candidate := range enum {
		if candidate == value {
			return true
		}
	}
	return false
}

func validateType(value interface{}, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
	case "array":
		switch value.(type) {
		case []interface{}, []string:
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func isNumber(value interface{}) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value interface{}) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
