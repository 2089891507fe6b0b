package descgen

import "github.com/toolbridge/dispatcher/internal/schema"

// truncate300 caps s at 300 characters, appending an ellipsis when it
// overflows. The ellipsis itself counts toward the 300-character total.
func truncate300(s string) string {
	const max = 300
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	const ellipsis = "..."
	return string(runes[:max-len(ellipsis)]) + ellipsis
}

// sanitizeSchema produces the description generator's safe-to-publish form
// of a tool's declared schema.Schema: it preserves additionalProperties,
// enum, numeric/string bounds, and description (truncated); always
// serializes required as an array; coerces default to its declared type;
// and recurses into properties and items. $ref/oneOf/allOf/anyOf are
// copied through as-is, unsanitized. Returns nil for a nil/empty input.
func sanitizeSchema(s schema.Schema) map[string]any {
	if len(s) == 0 {
		return nil
	}

	out := make(map[string]any, len(s))

	for _, key := range []string{
		"type", "format", "enum", "additionalProperties",
		"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum",
		"minLength", "maxLength", "minItems", "maxItems", "pattern",
		"$ref", "oneOf", "allOf", "anyOf",
	} {
		if v, ok := s[key]; ok {
			out[key] = v
		}
	}

	if desc, ok := s["description"].(string); ok {
		out["description"] = truncate300(desc)
	}

	out["required"] = sanitizeRequired(s["required"])

	if props, ok := asSchemaMap(s["properties"]); ok {
		sanitizedProps := make(map[string]any, len(props))
		for name, p := range props {
			if ps, ok := asSchema(p); ok {
				if sanitized := sanitizeSchema(ps); sanitized != nil {
					sanitizedProps[name] = sanitized
					continue
				}
			}
			sanitizedProps[name] = p
		}
		out["properties"] = sanitizedProps
	}

	if items, ok := asSchema(s["items"]); ok {
		if sanitized := sanitizeSchema(items); sanitized != nil {
			out["items"] = sanitized
		}
	}

	if def, ok := s["default"]; ok {
		out["default"] = coerceDefault(def, out["type"])
	}

	return out
}

// sanitizeRequired always returns a []any, never nil/object/string:
// required must always be serialized as an array.
func sanitizeRequired(v any) []any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		copy(out, val)
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return []any{}
	}
}

// coerceDefault coerces a default value to its schema's declared type:
// string→String, number/integer→Number, boolean→Boolean, array→wrap-if-not-array,
// object→{} if not object.
func coerceDefault(def any, declaredType any) any {
	t, _ := declaredType.(string)
	switch t {
	case "string":
		if s, ok := def.(string); ok {
			return s
		}
		return ""
	case "number", "integer":
		switch n := def.(type) {
		case float64, int, int64:
			return n
		default:
			return 0
		}
	case "boolean":
		if b, ok := def.(bool); ok {
			return b
		}
		return false
	case "array":
		if arr, ok := def.([]any); ok {
			return arr
		}
		return []any{def}
	case "object":
		if m, ok := def.(map[string]any); ok {
			return m
		}
		if m, ok := def.(schema.Schema); ok {
			return map[string]any(m)
		}
		return map[string]any{}
	default:
		return def
	}
}

func asSchema(v any) (schema.Schema, bool) {
	switch m := v.(type) {
	case schema.Schema:
		return m, true
	case map[string]any:
		return schema.Schema(m), true
	default:
		return nil, false
	}
}

func asSchemaMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case schema.Schema:
		return map[string]any(m), true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}
