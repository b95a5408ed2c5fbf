// Package airesponse extracts and schema-coerces JSON from free-form AI
// output. Models wrap JSON in prose, markdown fences, or nothing at all; the
// parser tries progressively looser extraction strategies and never lets an
// internal failure escape to the caller.
package airesponse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	anyFencePattern  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
)

// ExtractJSON pulls the first parseable JSON object out of raw text.
// Strategies, in order: the whole string, a ```json fence, any fence, the
// first balanced {...} span, and finally everything between the outermost
// braces. The first strategy yielding valid JSON wins.
func ExtractJSON(raw string) (map[string]any, bool) {
	parsed, _, ok := extract(raw)

	return parsed, ok
}

func candidates(raw string) []string {
	out := make([]string, 0, 5)
	out = append(out, strings.TrimSpace(raw))

	if match := jsonFencePattern.FindStringSubmatch(raw); match != nil {
		out = append(out, strings.TrimSpace(match[1]))
	}

	if match := anyFencePattern.FindStringSubmatch(raw); match != nil {
		out = append(out, strings.TrimSpace(match[1]))
	}

	if span := balancedObject(raw); span != "" {
		out = append(out, span)
	}

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		out = append(out, raw[start:end+1])
	}

	return out
}

func extract(raw string) (map[string]any, string, bool) {
	for _, candidate := range candidates(raw) {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, candidate, true
		}
	}

	return nil, "", false
}

// balancedObject returns the first {...} span with balanced braces, tracking
// string literals and escapes so braces inside strings do not count.
func balancedObject(raw string) string {
	start := strings.Index(raw, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]

		if escaped {
			escaped = false

			continue
		}

		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1]
				}
			}
		}
	}

	return ""
}

// topLevelKeyOrder returns the object's keys in document order. encoding/json
// maps lose ordering, and the output layer's auto-detection needs "first
// field" to mean first as written by the model.
func topLevelKeyOrder(raw string) []string {
	decoder := json.NewDecoder(strings.NewReader(raw))

	token, err := decoder.Token()
	if err != nil {
		return nil
	}

	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil
	}

	var keys []string

	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			break
		}

		key, ok := token.(string)
		if !ok {
			break
		}

		keys = append(keys, key)

		if err := skipValue(decoder); err != nil {
			break
		}
	}

	return keys
}

func skipValue(decoder *json.Decoder) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}

	delim, ok := token.(json.Delim)
	if !ok {
		return nil
	}

	if delim == '{' || delim == '[' {
		depth := 1
		for depth > 0 {
			token, err := decoder.Token()
			if err != nil {
				return err
			}

			if d, ok := token.(json.Delim); ok {
				switch d {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}

	return nil
}

// KeyOrder returns the top-level key order of the JSON object embedded in
// raw, using the same extraction strategy chain as ExtractJSON. Ordering is
// computed from the exact bytes that parsed.
func KeyOrder(raw string) []string {
	_, source, ok := extract(raw)
	if !ok {
		return nil
	}

	return topLevelKeyOrder(source)
}

func prettyJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(data)
}
