package outputs

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmarianski/polytrans/pkg/contentstore"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/variables"
)

func newTestProcessor(store *contentstore.MemoryStore) *Processor {
	return NewProcessor(store, variables.NewResolver(slog.Default()), slog.Default())
}

func baseContext() models.ExecutionContext {
	return models.NewExecutionContext(map[string]any{
		"post_id": "42",
		"title":   "Old Title",
		"content": "Old content.",
		"post": map[string]any{
			"id":      "42",
			"title":   "Old Title",
			"content": "Old content.",
		},
	})
}

func TestProcessStepOutputs_TestModeFoldsIntoContext(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{"new_title": "Fresh Title"},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateTitle, SourceVariable: "new_title"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "editor")

	require.True(t, result.Success)
	assert.Equal(t, 1, result.ProcessedActions)
	assert.Equal(t, "Fresh Title", result.UpdatedContext["title"])

	post := result.UpdatedContext["post"].(map[string]any)
	assert.Equal(t, "Fresh Title", post["title"])

	// Test mode never touches the store.
	_, err := store.ReadField(context.Background(), "42", contentstore.FieldTitle)
	assert.True(t, contentstore.IsNotFound(err))
	assert.Empty(t, store.LastActor)
}

func TestProcessStepOutputs_TestModeChainedActions(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data: map[string]any{
			"body":   "New body.",
			"footer": " Footer.",
		},
		DataKeys: []string{"body", "footer"},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateContent, SourceVariable: "body"},
		{Type: models.ActionAppendContent, SourceVariable: "footer"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")

	require.True(t, result.Success)
	require.Len(t, result.Changes, 2)

	// The append operates on the already-updated content, not the original.
	assert.Equal(t, "New body.", result.Changes[1].CurrentValue)
	assert.Equal(t, "New body. Footer.", result.Changes[1].NewValue)
	assert.Equal(t, "New body. Footer.", result.UpdatedContext["content"])
	assert.Equal(t, models.ActionAppendContent, result.Changes[1].ActionType)
}

func TestProcessStepOutputs_PrependContent(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{"intro": "Intro. "},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionPrependContent, SourceVariable: "intro"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")

	require.True(t, result.Success)
	assert.Equal(t, "Intro. Old content.", result.UpdatedContext["content"])
}

func TestProcessStepOutputs_ProductionWritesAndRefreshes(t *testing.T) {
	store := contentstore.NewMemoryStore()
	store.Seed("42", contentstore.FieldContent, "Old content.")

	// The store normalizes titles on write; the engine must report the
	// canonical value, not its own echo.
	store.Normalizers[contentstore.FieldTitle] = strings.ToUpper

	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{"new_title": "Fresh Title"},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateTitle, SourceVariable: "new_title"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), false, "editor-7")

	require.True(t, result.Success)

	stored, err := store.ReadField(context.Background(), "42", contentstore.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, "FRESH TITLE", stored)

	// Refreshed context carries the store's normalized value.
	assert.Equal(t, "FRESH TITLE", result.UpdatedContext["title"])

	// Writes are attributed to the workflow's attribution user.
	assert.Equal(t, "editor-7", store.LastActor)
}

func TestProcessStepOutputs_ProductionStatusNormalization(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{"status": "Published"},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateStatus, SourceVariable: "status"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), false, "")

	require.True(t, result.Success)

	stored, err := store.ReadField(context.Background(), "42", contentstore.FieldStatus)
	require.NoError(t, err)
	assert.Equal(t, "publish", stored)
	assert.Equal(t, "publish", result.UpdatedContext["status"])
}

func TestProcessStepOutputs_InvalidStatusCollectedAsError(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data: map[string]any{
			"status":    "nonsense",
			"new_title": "Still Applied",
		},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateStatus, SourceVariable: "status"},
		{Type: models.ActionUpdateTitle, SourceVariable: "new_title"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "update_post_status")

	// Actions are independent: the second one still applied.
	assert.Equal(t, 1, result.ProcessedActions)
	assert.Equal(t, "Still Applied", result.UpdatedContext["title"])
}

func TestProcessStepOutputs_AutoDetectPriority(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	// plain_text wins over other conventional keys.
	stepResult := &models.StepResult{
		Success: true,
		Data: map[string]any{
			"ai_response": "from ai_response",
			"plain_text":  "from plain_text",
		},
	}

	actions := []*models.OutputAction{{Type: models.ActionUpdateContent}}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")
	require.True(t, result.Success)
	assert.Equal(t, "from plain_text", result.UpdatedContext["content"])
}

func TestProcessStepOutputs_AutoDetectSingleField(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{"whatever": "only value"},
	}

	actions := []*models.OutputAction{{Type: models.ActionUpdateContent}}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")
	require.True(t, result.Success)
	assert.Equal(t, "only value", result.UpdatedContext["content"])
}

func TestProcessStepOutputs_AutoDetectFirstFieldByDocumentOrder(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data: map[string]any{
			"zzz_last":  "wrong",
			"aaa_first": "right",
		},
		DataKeys: []string{"aaa_first", "zzz_last"},
	}

	actions := []*models.OutputAction{{Type: models.ActionUpdateContent}}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")
	require.True(t, result.Success)
	assert.Equal(t, "right", result.UpdatedContext["content"])
}

func TestProcessStepOutputs_MetaAndOptions(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data: map[string]any{
			"seo":  "SEO Title",
			"note": "remember",
		},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateMeta, SourceVariable: "seo", Target: "seo_title"},
		{Type: models.ActionSaveToOption, SourceVariable: "note", Target: "workflow_note"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), false, "")

	require.True(t, result.Success)

	meta, err := store.ReadMeta(context.Background(), "42", "seo_title")
	require.NoError(t, err)
	assert.Equal(t, "SEO Title", meta)

	option, err := store.ReadOption(context.Background(), "workflow_note")
	require.NoError(t, err)
	assert.Equal(t, "remember", option)
}

func TestProcessStepOutputs_MetaRequiresTarget(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{"seo": "x"},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateMeta, SourceVariable: "seo"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ProcessedActions)
}

func TestProcessStepOutputs_MissingSourceVariable(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{"present": "x"},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateTitle, SourceVariable: "absent"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, baseContext(), true, "")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "absent")
}

func TestProcessStepOutputs_SourceVariableFallsBackToContext(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	execCtx := baseContext()
	execCtx["earlier_output"] = "from context"

	stepResult := &models.StepResult{
		Success: true,
		Data:    map[string]any{},
	}

	actions := []*models.OutputAction{
		{Type: models.ActionUpdateTitle, SourceVariable: "earlier_output"},
	}

	result := processor.ProcessStepOutputs(context.Background(), stepResult, actions, execCtx, true, "")

	require.True(t, result.Success)
	assert.Equal(t, "from context", result.UpdatedContext["title"])
}

func TestProcessStepOutputs_NoActionsIsNoop(t *testing.T) {
	store := contentstore.NewMemoryStore()
	processor := newTestProcessor(store)

	execCtx := baseContext()
	result := processor.ProcessStepOutputs(context.Background(), &models.StepResult{Success: true}, nil, execCtx, false, "")

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ProcessedActions)
	assert.Equal(t, execCtx["title"], result.UpdatedContext["title"])
}
