// Package schema implements the minimal JSON-Schema subset used to describe
// and validate tool parameters: object schemas with typed properties, a
// required list and optional enums.
package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationError reports a parameter that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// FromStruct derives an object schema from a struct's exported fields using
// `json` and `description` tags. Pointer and omitempty fields are optional;
// everything else lands in the required list.
func FromStruct(v any) map[string]any {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	properties := map[string]any{}
	var required []string

	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, opts, ok := fieldName(field)
			if !ok {
				continue
			}
			prop := map[string]any{"type": jsonType(field.Type)}
			if desc := field.Tag.Get("description"); desc != "" {
				prop["description"] = desc
			}
			properties[name] = prop
			if field.Type.Kind() != reflect.Ptr && !opts.omitempty {
				required = append(required, name)
			}
		}
	}

	out := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

type tagOpts struct{ omitempty bool }

func fieldName(field reflect.StructField) (string, tagOpts, bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", tagOpts{}, false
	}
	name := field.Name
	var opts tagOpts
	if tag != "" {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, p := range parts[1:] {
			if strings.TrimSpace(p) == "omitempty" {
				opts.omitempty = true
			}
		}
	}
	return name, opts, true
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

// Validate checks params against an object schema. It verifies required
// fields, property types and enum membership; unknown extra fields pass
// through untouched so schema evolution stays backwards compatible.
func Validate(params map[string]any, sch map[string]any) error {
	for _, name := range requiredFields(sch) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := sch["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		wantType, _ := prop["type"].(string)
		if !typeMatches(value, wantType) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", wantType, value),
			}
		}
		if enum := enumValues(prop); len(enum) > 0 {
			if s, ok := value.(string); ok && !contains(enum, s) {
				return &ValidationError{
					Field:   name,
					Value:   value,
					Message: fmt.Sprintf("value must be one of %v", enum),
				}
			}
		}
	}
	return nil
}

// requiredFields tolerates both []string (hand-written schemas) and []any
// (schemas round-tripped through JSON).
func requiredFields(sch map[string]any) []string {
	switch req := sch["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func enumValues(prop map[string]any) []string {
	switch enum := prop["enum"].(type) {
	case []string:
		return enum
	case []any:
		out := make([]string, 0, len(enum))
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func typeMatches(value any, wantType string) bool {
	if value == nil {
		return true
	}
	switch wantType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON decoding yields float64 for all numbers
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
