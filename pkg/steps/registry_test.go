package steps

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmarianski/polytrans/pkg/models"
)

type fakeStep struct {
	typeName     string
	configErrors []string
}

func (f *fakeStep) Type() string { return f.typeName }

func (f *fakeStep) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"user_message": map[string]any{"type": "string"},
		},
		"required": []string{"user_message"},
	}
}

func (f *fakeStep) ValidateConfig(*models.WorkflowStep) []string { return f.configErrors }

func (f *fakeStep) RequiredVariables(*models.WorkflowStep) []string { return nil }

func (f *fakeStep) Execute(context.Context, models.ExecutionContext, *models.WorkflowStep) *models.StepResult {
	return &models.StepResult{Success: true}
}

func TestRegistry_GetUnknownType(t *testing.T) {
	registry := NewRegistry(slog.Default())

	_, err := registry.Get("nope")
	assert.Error(t, err)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&fakeStep{typeName: "fake"})

	step, err := registry.Get("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", step.Type())

	assert.Equal(t, []string{"fake"}, registry.Types())
}

func TestValidateStep_SchemaViolation(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&fakeStep{typeName: "fake"})

	// user_message is required by the schema.
	errs := registry.ValidateStep(&models.WorkflowStep{ID: "s1", Type: "fake"})
	assert.NotEmpty(t, errs)

	errs = registry.ValidateStep(&models.WorkflowStep{ID: "s1", Type: "fake", UserMessage: "hi"})
	assert.Empty(t, errs)
}

func TestValidateStep_ImplementationErrorsAppended(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(&fakeStep{typeName: "fake", configErrors: []string{"bad config"}})

	errs := registry.ValidateStep(&models.WorkflowStep{ID: "s1", Type: "fake", UserMessage: "hi"})
	assert.Contains(t, errs, "bad config")
}

func TestValidateStep_UnknownType(t *testing.T) {
	registry := NewRegistry(slog.Default())

	errs := registry.ValidateStep(&models.WorkflowStep{ID: "s1", Type: "ghost"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "ghost")
}
