package models

// Step type tags. Unknown tags are rejected at workflow-load time.
const (
	StepTypeCustomPrompt        = "custom_prompt"
	StepTypePredefinedAssistant = "predefined_assistant"
	StepTypeManagedAssistant    = "managed_assistant"
)

// Response formats a step can expect from the AI client.
const (
	ResponseFormatText = "text"
	ResponseFormatJSON = "json"
)

// WorkflowStep is one unit of work: an AI call plus optional output actions.
type WorkflowStep struct {
	ID              string          `json:"id"   validate:"required"`
	Name            string          `json:"name" validate:"required"`
	Type            string          `json:"type" validate:"required,oneof=custom_prompt predefined_assistant managed_assistant"`
	Enabled         bool            `json:"enabled"`
	ContinueOnError bool            `json:"continue_on_error"`
	SystemPrompt    string          `json:"system_prompt,omitempty"`
	UserMessage     string          `json:"user_message,omitempty"`
	AssistantID     string          `json:"assistant_id,omitempty"`
	Model           string          `json:"model,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	MaxTokens       int             `json:"max_tokens,omitempty"`
	ExpectedFormat  string          `json:"expected_format,omitempty" validate:"omitempty,oneof=text json"`
	ExpectedSchema  OutputSchema    `json:"expected_schema,omitempty"`
	OutputVariables []string        `json:"output_variables,omitempty"`
	OutputActions   []*OutputAction `json:"output_actions,omitempty"`
}

// Output action type tags.
const (
	ActionUpdateTitle    = "update_post_title"
	ActionUpdateContent  = "update_post_content"
	ActionUpdateExcerpt  = "update_post_excerpt"
	ActionUpdateMeta     = "update_post_meta"
	ActionAppendContent  = "append_to_post_content"
	ActionPrependContent = "prepend_to_post_content"
	ActionUpdateStatus   = "update_post_status"
	ActionUpdateDate     = "update_post_date"
	ActionSaveToOption   = "save_to_option"
)

// OutputAction maps a step output value to a mutation on the content store.
// An empty SourceVariable means the processor auto-detects the value.
type OutputAction struct {
	Type           string `json:"type" validate:"required"`
	SourceVariable string `json:"source_variable,omitempty"`
	Target         string `json:"target,omitempty"`
}

// KnownActionTypes lists every action type the output processor understands.
func KnownActionTypes() []string {
	return []string{
		ActionUpdateTitle,
		ActionUpdateContent,
		ActionUpdateExcerpt,
		ActionUpdateMeta,
		ActionAppendContent,
		ActionPrependContent,
		ActionUpdateStatus,
		ActionUpdateDate,
		ActionSaveToOption,
	}
}
