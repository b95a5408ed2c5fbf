package airesponse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmarianski/polytrans/pkg/models"
)

// ParseResult is the outcome of schema-validated parsing. Warnings carry
// per-field coercion problems that did not fail the parse as a whole.
type ParseResult struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	DataKeys []string       `json:"data_keys,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Affirmative and negative string tokens accepted as booleans. Responses come
// back in the content language, so the common yes/no words of the languages
// the plugin translates between are included.
var (
	trueTokens = map[string]struct{}{
		"true": {}, "yes": {}, "1": {}, "y": {},
		"tak": {}, "ja": {}, "si": {}, "sí": {}, "oui": {}, "da": {},
	}
	falseTokens = map[string]struct{}{
		"false": {}, "no": {}, "0": {}, "n": {},
		"nie": {}, "nein": {}, "non": {}, "nej": {},
	}
)

// ParseWithSchema extracts JSON from raw and coerces it to the schema. It
// never panics outward; any internal failure becomes {Success: false}.
func ParseWithSchema(raw string, schema models.OutputSchema) (result ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			result = ParseResult{
				Success: false,
				Error:   fmt.Sprintf("internal parser error: %v", r),
			}
		}
	}()

	parsed, ok := ExtractJSON(raw)
	if !ok {
		return ParseResult{
			Success: false,
			Error:   "no valid JSON found in response",
		}
	}

	keys := KeyOrder(raw)

	if len(schema) == 0 {
		return ParseResult{Success: true, Data: parsed, DataKeys: keys}
	}

	data, warnings := coerceObject(parsed, schema, "")

	return ParseResult{
		Success:  true,
		Data:     data,
		DataKeys: mergeKeyOrder(keys, data),
		Warnings: warnings,
	}
}

// coerceObject applies the schema to parsed. Schema fields missing from
// parsed become nil with a warning; parsed fields missing from the schema are
// preserved as-is.
func coerceObject(parsed map[string]any, schema models.OutputSchema, prefix string) (map[string]any, []string) {
	data := make(map[string]any, len(parsed))
	warnings := make([]string, 0)

	for name, value := range parsed {
		data[name] = value
	}

	for name, spec := range schema {
		qualified := name
		if prefix != "" {
			qualified = prefix + "." + name
		}

		value, present := parsed[name]
		if !present {
			data[name] = nil
			warnings = append(warnings, fmt.Sprintf("missing field %q", qualified))

			continue
		}

		if spec.IsNested() {
			nested, ok := value.(map[string]any)
			if !ok {
				data[name] = nil
				warnings = append(warnings, fmt.Sprintf("field %q: expected object, got %T", qualified, value))

				continue
			}

			coerced, nestedWarnings := coerceObject(nested, spec.Nested, qualified)
			data[name] = coerced
			warnings = append(warnings, nestedWarnings...)

			continue
		}

		coerced, warning := coerceValue(value, spec.Type, qualified)
		data[name] = coerced

		if warning != "" {
			warnings = append(warnings, warning)
		}
	}

	return data, warnings
}

func coerceValue(value any, fieldType, qualified string) (any, string) {
	switch fieldType {
	case models.FieldTypeString:
		return coerceString(value), ""
	case models.FieldTypeNumber:
		return coerceNumber(value, qualified)
	case models.FieldTypeArray:
		if arr, ok := value.([]any); ok {
			return arr, ""
		}

		return []any{value}, ""
	case models.FieldTypeObject:
		if obj, ok := value.(map[string]any); ok {
			return obj, ""
		}

		return map[string]any{"value": value}, ""
	case models.FieldTypeBoolean:
		return coerceBoolean(value), ""
	default:
		// Unknown type name: pass through untouched.
		return value, ""
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}

		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return prettyJSON(v)
	}
}

// coerceNumber keeps the int vs. float distinction: numeric strings without a
// decimal point become ints. Non-numeric input fails coercion and becomes
// nil with a warning.
func coerceNumber(value any, qualified string) (any, string) {
	switch v := value.(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v), ""
		}

		return v, ""
	case int:
		return int64(v), ""
	case int64:
		return v, ""
	case string:
		trimmed := strings.TrimSpace(v)

		if strings.Contains(trimmed, ".") {
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				return f, ""
			}
		} else if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return i, ""
		}

		return nil, fmt.Sprintf("field %q: cannot coerce %q to number", qualified, v)
	default:
		return nil, fmt.Sprintf("field %q: cannot coerce %T to number", qualified, value)
	}
}

func coerceBoolean(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		token := strings.ToLower(strings.TrimSpace(v))

		if _, ok := trueTokens[token]; ok {
			return true
		}

		if _, ok := falseTokens[token]; ok {
			return false
		}

		return v != ""
	case float64:
		return v != 0
	case nil:
		return false
	default:
		return true
	}
}

// mergeKeyOrder keeps the document order for keys the model returned and
// appends schema-only keys (the nulled missing fields) afterwards.
func mergeKeyOrder(documentOrder []string, data map[string]any) []string {
	seen := make(map[string]struct{}, len(documentOrder))
	keys := make([]string, 0, len(data))

	for _, key := range documentOrder {
		if _, ok := data[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}

	for key := range data {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}

	return keys
}
