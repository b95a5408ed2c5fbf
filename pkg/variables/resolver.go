// Package variables provides dot-path variable resolution and prompt
// interpolation over an execution context.
package variables

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/jmarianski/polytrans/pkg/models"
)

// tokenPattern matches {identifier} and {identifier.identifier...} tokens.
// JSON object literals such as {"key": "value"} never match, so prompts that
// instruct the AI to return JSON keep their braces verbatim.
var tokenPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\}`)

// Resolver resolves dot-path variables and renders prompt templates.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		logger: logger.With("module", "variable_resolver"),
	}
}

// Resolve walks path segment by segment through nested mappings. The second
// return value is false when any segment is missing.
func (r *Resolver) Resolve(path string, execCtx models.ExecutionContext) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = map[string]any(execCtx)

	for _, segment := range strings.Split(path, ".") {
		mapping, ok := asMapping(current)
		if !ok {
			return nil, false
		}

		value, ok := mapping[segment]
		if !ok {
			return nil, false
		}

		current = value
	}

	return current, true
}

// Interpolate replaces every {path} token with the resolved value. Missing
// variables render as empty strings; interpolation never fails.
//
// Templates using double-brace syntax are first handed to text/template for
// richer expressions. If that rendering fails for any reason the template
// falls through to plain token substitution.
func (r *Resolver) Interpolate(tmpl string, execCtx models.ExecutionContext) string {
	if strings.Contains(tmpl, "{{") {
		if rendered, err := renderGoTemplate(tmpl, execCtx); err == nil {
			tmpl = rendered
		} else {
			r.logger.Debug("template engine rendering failed, falling back to token substitution",
				"error", err)
		}
	}

	return tokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		path := token[1 : len(token)-1]

		value, ok := r.Resolve(path, execCtx)
		if !ok {
			return ""
		}

		return Stringify(value)
	})
}

// ExtractVariableNames returns the distinct variable paths referenced by a
// template, in order of first appearance.
func (r *Resolver) ExtractVariableNames(tmpl string) []string {
	matches := tokenPattern.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))

	for _, match := range matches {
		if _, ok := seen[match[1]]; ok {
			continue
		}

		seen[match[1]] = struct{}{}
		names = append(names, match[1])
	}

	return names
}

// Stringify renders a resolved value for substitution into prompt text.
// Scalars keep their natural formatting; anything structured becomes
// indented JSON so the AI receives readable data.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}

		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", value)
		}

		return string(data)
	}
}

func renderGoTemplate(tmpl string, execCtx models.ExecutionContext) (string, error) {
	parsed, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := parsed.Execute(&buf, map[string]any(execCtx)); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func asMapping(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case models.ExecutionContext:
		return v, true
	default:
		return nil, false
	}
}
