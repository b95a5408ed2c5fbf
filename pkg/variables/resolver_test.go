package variables

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmarianski/polytrans/pkg/models"
)

func newTestResolver() *Resolver {
	return NewResolver(slog.Default())
}

func TestResolve_DotPaths(t *testing.T) {
	execCtx := models.NewExecutionContext(map[string]any{
		"title": "Hello",
		"post": map[string]any{
			"status": "draft",
			"meta": map[string]any{
				"seo_title": "Hello SEO",
			},
		},
	})

	resolver := newTestResolver()

	value, ok := resolver.Resolve("title", execCtx)
	require.True(t, ok)
	assert.Equal(t, "Hello", value)

	value, ok = resolver.Resolve("post.status", execCtx)
	require.True(t, ok)
	assert.Equal(t, "draft", value)

	value, ok = resolver.Resolve("post.meta.seo_title", execCtx)
	require.True(t, ok)
	assert.Equal(t, "Hello SEO", value)
}

func TestResolve_MissingSegments(t *testing.T) {
	execCtx := models.NewExecutionContext(map[string]any{
		"post": map[string]any{"status": "draft"},
	})

	resolver := newTestResolver()

	_, ok := resolver.Resolve("post.missing", execCtx)
	assert.False(t, ok)

	_, ok = resolver.Resolve("missing.path", execCtx)
	assert.False(t, ok)

	// Scalars cannot be descended into.
	_, ok = resolver.Resolve("post.status.deeper", execCtx)
	assert.False(t, ok)

	_, ok = resolver.Resolve("", execCtx)
	assert.False(t, ok)
}

func TestInterpolate_ReplacesTokens(t *testing.T) {
	execCtx := models.NewExecutionContext(map[string]any{
		"title":    "My Post",
		"language": "es",
		"post":     map[string]any{"status": "draft"},
	})

	resolver := newTestResolver()

	result := resolver.Interpolate("Translate {title} into {language}, status {post.status}", execCtx)
	assert.Equal(t, "Translate My Post into es, status draft", result)
}

func TestInterpolate_PreservesJSONLiterals(t *testing.T) {
	execCtx := models.NewExecutionContext(map[string]any{
		"content": "body",
	})

	resolver := newTestResolver()

	// Braces containing quotes, colons or spaces are not variable tokens and
	// must survive byte for byte.
	prompt := `Summarize {content} and respond as {"summary": "...", "tags": []}`
	result := resolver.Interpolate(prompt, execCtx)
	assert.Equal(t, `Summarize body and respond as {"summary": "...", "tags": []}`, result)

	prompt = `Return {"count": 3}`
	assert.Equal(t, prompt, resolver.Interpolate(prompt, execCtx))
}

func TestInterpolate_MissingVariablesRenderEmpty(t *testing.T) {
	resolver := newTestResolver()
	execCtx := models.NewExecutionContext(nil)

	result := resolver.Interpolate("before {missing} after", execCtx)
	assert.Equal(t, "before  after", result)
}

func TestInterpolate_GoTemplateSyntax(t *testing.T) {
	execCtx := models.NewExecutionContext(map[string]any{
		"title": "My Post",
	})

	resolver := newTestResolver()

	result := resolver.Interpolate("Title: {{ .title }}", execCtx)
	assert.Equal(t, "Title: My Post", result)

	// A template referencing a missing key falls back to token substitution,
	// leaving the double-brace expression in place.
	result = resolver.Interpolate("{{ .missing }} and {title}", execCtx)
	assert.Equal(t, "{{ .missing }} and My Post", result)
}

func TestInterpolate_StringifiesStructuredValues(t *testing.T) {
	execCtx := models.NewExecutionContext(map[string]any{
		"tags": []any{"a", "b"},
	})

	resolver := newTestResolver()

	result := resolver.Interpolate("tags: {tags}", execCtx)
	assert.Contains(t, result, "\"a\"")
	assert.Contains(t, result, "\"b\"")
}

func TestExtractVariableNames(t *testing.T) {
	resolver := newTestResolver()

	names := resolver.ExtractVariableNames("{title} then {post.status} then {title} and {\"not\": 1}")
	assert.Equal(t, []string{"title", "post.status"}, names)

	assert.Empty(t, resolver.ExtractVariableNames("no tokens here"))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "text", Stringify("text"))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, "42", Stringify(42.0))
	assert.Equal(t, "3.14", Stringify(3.14))
}
