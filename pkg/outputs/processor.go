// Package outputs turns step output data into change objects and either
// applies them to the content store (production) or folds them into the
// execution context (test mode).
package outputs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmarianski/polytrans/pkg/contentstore"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/variables"
)

// autoDetectKeys is the priority order used when an action names no source
// variable: conventional keys first, then single-field, then first field.
var autoDetectKeys = []string{"plain_text", "processed_content", "content", "ai_response"}

// Result is the outcome of processing one step's output actions.
type Result struct {
	Success          bool
	ProcessedActions int
	Errors           []string
	Changes          []models.ChangeObject
	UpdatedContext   models.ExecutionContext
}

// Processor applies output actions in test or production mode.
type Processor struct {
	store    contentstore.Store
	resolver *variables.Resolver
	logger   *slog.Logger
}

func NewProcessor(store contentstore.Store, resolver *variables.Resolver, logger *slog.Logger) *Processor {
	return &Processor{
		store:    store,
		resolver: resolver,
		logger:   logger.With("module", "output_processor"),
	}
}

// ProcessStepOutputs resolves each action's source value, builds a change
// object, and applies it. Actions are independent: one failure is collected
// and the remaining actions still run.
//
// In test mode every change is folded into the returned context so a later
// action in the same step sees the earlier action's effect. In production
// mode each change is executed against the store immediately and the context
// is afterwards refreshed from canonical store state, because the store may
// normalize values the engine is not aware of.
func (p *Processor) ProcessStepOutputs(
	ctx context.Context,
	stepResult *models.StepResult,
	actions []*models.OutputAction,
	execCtx models.ExecutionContext,
	testMode bool,
	attributionUser string,
) Result {
	result := Result{
		Success:        true,
		UpdatedContext: execCtx.Clone(),
	}

	if len(actions) == 0 {
		return result
	}

	// Attribution is scoped to this call: the derived context carries the
	// acting user for every store write and simply goes out of scope on
	// return, error paths included.
	if attributionUser != "" && !testMode {
		ctx = contentstore.WithActor(ctx, attributionUser)
	}

	resourceID, _ := execCtx["post_id"].(string)

	touchedMeta := make([]string, 0)

	for i, action := range actions {
		change, err := p.buildChange(ctx, action, stepResult, result.UpdatedContext, resourceID, testMode)
		if err != nil {
			p.logger.Warn("output action failed",
				"action_type", action.Type,
				"action_index", i,
				"error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("action %d (%s): %v", i+1, action.Type, err))
			result.Success = false

			continue
		}

		if !testMode {
			if err := p.executeChange(ctx, change, resourceID); err != nil {
				p.logger.Error("store mutation failed",
					"action_type", action.Type,
					"error", err)
				result.Errors = append(result.Errors, fmt.Sprintf("action %d (%s): %v", i+1, action.Type, err))
				result.Success = false

				continue
			}

			if change.ActionType == models.ActionUpdateMeta {
				touchedMeta = append(touchedMeta, change.ResolvedTargetKey)
			}
		}

		applyChangeToContext(result.UpdatedContext, change)

		result.Changes = append(result.Changes, *change)
		result.ProcessedActions++
	}

	if !testMode && resourceID != "" {
		p.refreshContext(ctx, result.UpdatedContext, resourceID, touchedMeta)
	}

	return result
}

// buildChange resolves the source value and computes the change object,
// including the current value read from the live context.
func (p *Processor) buildChange(
	ctx context.Context,
	action *models.OutputAction,
	stepResult *models.StepResult,
	liveCtx models.ExecutionContext,
	resourceID string,
	testMode bool,
) (*models.ChangeObject, error) {
	value, err := p.resolveSource(action, stepResult, liveCtx)
	if err != nil {
		return nil, err
	}

	newValue := variables.Stringify(value)

	change := &models.ChangeObject{
		ActionType: action.Type,
		NewValue:   newValue,
	}

	switch action.Type {
	case models.ActionUpdateTitle:
		change.Target = "post title"
		change.CurrentValue = contextString(liveCtx, contentstore.FieldTitle)
	case models.ActionUpdateContent:
		change.Target = "post content"
		change.CurrentValue = contextString(liveCtx, contentstore.FieldContent)
	case models.ActionUpdateExcerpt:
		change.Target = "post excerpt"
		change.CurrentValue = contextString(liveCtx, contentstore.FieldExcerpt)
	case models.ActionAppendContent:
		current := contextString(liveCtx, contentstore.FieldContent)
		change.Target = "post content"
		change.CurrentValue = current
		change.NewValue = current + newValue
	case models.ActionPrependContent:
		current := contextString(liveCtx, contentstore.FieldContent)
		change.Target = "post content"
		change.CurrentValue = current
		change.NewValue = newValue + current
	case models.ActionUpdateStatus:
		normalized, err := NormalizeStatus(newValue)
		if err != nil {
			return nil, err
		}

		change.Target = "post status"
		change.CurrentValue = contextString(liveCtx, contentstore.FieldStatus)
		change.NewValue = normalized
	case models.ActionUpdateDate:
		normalized, err := NormalizeDate(newValue)
		if err != nil {
			return nil, err
		}

		change.Target = "post date"
		change.CurrentValue = contextString(liveCtx, contentstore.FieldDate)
		change.NewValue = normalized
	case models.ActionUpdateMeta:
		if action.Target == "" {
			return nil, fmt.Errorf("meta action requires a target key")
		}

		change.Target = "post meta"
		change.ResolvedTargetKey = action.Target
		change.CurrentValue = p.currentMeta(ctx, liveCtx, resourceID, action.Target, testMode)
	case models.ActionSaveToOption:
		if action.Target == "" {
			return nil, fmt.Errorf("option action requires a target key")
		}

		change.Target = "site option"
		change.ResolvedTargetKey = action.Target
		change.CurrentValue = p.currentOption(ctx, liveCtx, action.Target, testMode)
	default:
		return nil, fmt.Errorf("unknown action type %q", action.Type)
	}

	return change, nil
}

// resolveSource picks the value an action operates on. An explicit source
// variable is resolved against the step output first, then the context.
// Empty means auto-detect.
func (p *Processor) resolveSource(action *models.OutputAction, stepResult *models.StepResult, liveCtx models.ExecutionContext) (any, error) {
	if action.SourceVariable != "" {
		if value, ok := p.resolver.Resolve(action.SourceVariable, models.ExecutionContext(stepResult.Data)); ok {
			return value, nil
		}

		if value, ok := p.resolver.Resolve(action.SourceVariable, liveCtx); ok {
			return value, nil
		}

		return nil, fmt.Errorf("source variable %q not found in step output", action.SourceVariable)
	}

	data := stepResult.Data
	if len(data) == 0 {
		return nil, fmt.Errorf("step produced no output to auto-detect from")
	}

	for _, key := range autoDetectKeys {
		if value, ok := data[key]; ok {
			return value, nil
		}
	}

	if len(data) == 1 {
		for _, value := range data {
			return value, nil
		}
	}

	// Multiple fields, none conventional: take the first in insertion order.
	for _, key := range stepResult.DataKeys {
		if value, ok := data[key]; ok {
			return value, nil
		}
	}

	return nil, fmt.Errorf("cannot auto-detect a source value from step output")
}

func (p *Processor) executeChange(ctx context.Context, change *models.ChangeObject, resourceID string) error {
	if change.ActionType != models.ActionSaveToOption && resourceID == "" {
		return fmt.Errorf("no post_id in context, cannot apply %s", change.ActionType)
	}

	switch change.ActionType {
	case models.ActionUpdateTitle:
		return p.store.WriteField(ctx, resourceID, contentstore.FieldTitle, change.NewValue)
	case models.ActionUpdateContent, models.ActionAppendContent, models.ActionPrependContent:
		return p.store.WriteField(ctx, resourceID, contentstore.FieldContent, change.NewValue)
	case models.ActionUpdateExcerpt:
		return p.store.WriteField(ctx, resourceID, contentstore.FieldExcerpt, change.NewValue)
	case models.ActionUpdateStatus:
		return p.store.WriteField(ctx, resourceID, contentstore.FieldStatus, change.NewValue)
	case models.ActionUpdateDate:
		return p.store.WriteField(ctx, resourceID, contentstore.FieldDate, change.NewValue)
	case models.ActionUpdateMeta:
		return p.store.WriteMeta(ctx, resourceID, change.ResolvedTargetKey, change.NewValue)
	case models.ActionSaveToOption:
		return p.store.WriteOption(ctx, change.ResolvedTargetKey, change.NewValue)
	default:
		return fmt.Errorf("unknown action type %q", change.ActionType)
	}
}

// applyChangeToContext folds a change into the context so chained actions
// within the same step observe each other's effects.
func applyChangeToContext(execCtx models.ExecutionContext, change *models.ChangeObject) {
	switch change.ActionType {
	case models.ActionUpdateTitle:
		setPostField(execCtx, contentstore.FieldTitle, change.NewValue)
	case models.ActionUpdateContent, models.ActionAppendContent, models.ActionPrependContent:
		setPostField(execCtx, contentstore.FieldContent, change.NewValue)
	case models.ActionUpdateExcerpt:
		setPostField(execCtx, contentstore.FieldExcerpt, change.NewValue)
	case models.ActionUpdateStatus:
		setPostField(execCtx, contentstore.FieldStatus, change.NewValue)
	case models.ActionUpdateDate:
		setPostField(execCtx, contentstore.FieldDate, change.NewValue)
	case models.ActionUpdateMeta:
		meta, _ := execCtx["meta"].(map[string]any)
		if meta == nil {
			meta = map[string]any{}
			execCtx["meta"] = meta
		}

		meta[change.ResolvedTargetKey] = change.NewValue
	case models.ActionSaveToOption:
		options, _ := execCtx["options"].(map[string]any)
		if options == nil {
			options = map[string]any{}
			execCtx["options"] = options
		}

		options[change.ResolvedTargetKey] = change.NewValue
	}
}

// refreshContext re-reads canonical post state from the store after
// production writes, never trusting the in-memory echo.
func (p *Processor) refreshContext(ctx context.Context, execCtx models.ExecutionContext, resourceID string, touchedMeta []string) {
	for _, field := range []string{
		contentstore.FieldTitle,
		contentstore.FieldContent,
		contentstore.FieldExcerpt,
		contentstore.FieldStatus,
		contentstore.FieldDate,
	} {
		value, err := p.store.ReadField(ctx, resourceID, field)
		if err != nil {
			if !contentstore.IsNotFound(err) {
				p.logger.Warn("context refresh read failed", "field", field, "error", err)
			}

			continue
		}

		setPostField(execCtx, field, value)
	}

	for _, key := range touchedMeta {
		value, err := p.store.ReadMeta(ctx, resourceID, key)
		if err != nil {
			continue
		}

		meta, _ := execCtx["meta"].(map[string]any)
		if meta == nil {
			meta = map[string]any{}
			execCtx["meta"] = meta
		}

		meta[key] = value
	}
}

// setPostField keeps the flat key and the nested post mapping in sync.
func setPostField(execCtx models.ExecutionContext, field, value string) {
	execCtx[field] = value

	if post, ok := execCtx["post"].(map[string]any); ok {
		post[field] = value
	}
}

func contextString(execCtx models.ExecutionContext, key string) string {
	if value, ok := execCtx[key].(string); ok {
		return value
	}

	return ""
}

func (p *Processor) currentMeta(ctx context.Context, execCtx models.ExecutionContext, resourceID, key string, testMode bool) string {
	if meta, ok := execCtx["meta"].(map[string]any); ok {
		if value, ok := meta[key].(string); ok {
			return value
		}
	}

	if testMode || resourceID == "" {
		return ""
	}

	value, err := p.store.ReadMeta(ctx, resourceID, key)
	if err != nil {
		return ""
	}

	return value
}

func (p *Processor) currentOption(ctx context.Context, execCtx models.ExecutionContext, key string, testMode bool) string {
	if options, ok := execCtx["options"].(map[string]any); ok {
		if value, ok := options[key].(string); ok {
			return value
		}
	}

	if testMode {
		return ""
	}

	value, err := p.store.ReadOption(ctx, key)
	if err != nil {
		return ""
	}

	return value
}
