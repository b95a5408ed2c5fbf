package steps

import (
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jmarianski/polytrans/pkg/models"
)

// Registry maps step type tags to implementations. Unknown tags are rejected
// when a workflow is loaded, not when it runs.
type Registry struct {
	logger *slog.Logger
	steps  map[string]Step
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With("module", "step_registry"),
		steps:  make(map[string]Step),
	}
}

func (r *Registry) Register(step Step) {
	r.steps[step.Type()] = step
}

// Get returns the implementation for a type tag.
func (r *Registry) Get(stepType string) (Step, error) {
	step, ok := r.steps[stepType]
	if !ok {
		return nil, fmt.Errorf("step type %q not registered", stepType)
	}

	return step, nil
}

// Types returns the registered type tags.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.steps))
	for stepType := range r.steps {
		types = append(types, stepType)
	}

	return types
}

// ValidateStep checks a step's configuration against the implementation's
// JSON schema, then runs the implementation's semantic checks.
func (r *Registry) ValidateStep(step *models.WorkflowStep) []string {
	impl, err := r.Get(step.Type)
	if err != nil {
		return []string{err.Error()}
	}

	var errors []string

	schemaLoader := gojsonschema.NewGoLoader(impl.ConfigSchema())
	documentLoader := gojsonschema.NewGoLoader(stepConfigDocument(step))

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		r.logger.Warn("step schema validation unavailable",
			"step_type", step.Type,
			"error", err)
	} else {
		for _, issue := range result.Errors() {
			errors = append(errors, issue.String())
		}
	}

	errors = append(errors, impl.ValidateConfig(step)...)

	return errors
}

// stepConfigDocument projects the type-specific fields of a step into a
// plain map for schema validation.
func stepConfigDocument(step *models.WorkflowStep) map[string]any {
	doc := map[string]any{}

	if step.SystemPrompt != "" {
		doc["system_prompt"] = step.SystemPrompt
	}

	if step.UserMessage != "" {
		doc["user_message"] = step.UserMessage
	}

	if step.AssistantID != "" {
		doc["assistant_id"] = step.AssistantID
	}

	if step.Model != "" {
		doc["model"] = step.Model
	}

	if step.Temperature != nil {
		doc["temperature"] = *step.Temperature
	}

	if step.MaxTokens != 0 {
		doc["max_tokens"] = step.MaxTokens
	}

	if step.ExpectedFormat != "" {
		doc["expected_format"] = step.ExpectedFormat
	}

	return doc
}
