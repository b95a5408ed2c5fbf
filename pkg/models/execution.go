package models

// PreviousStepsKey is the context key under which every finished step's full
// output is stored, keyed by step id.
const PreviousStepsKey = "previous_steps"

// ExecutionContext is the nested variable mapping visible to templates and
// output actions during one workflow execution. It is owned by exactly one
// run and never shared across concurrent executions.
type ExecutionContext map[string]any

// NewExecutionContext copies base into a fresh context and guarantees the
// previous_steps bucket exists.
func NewExecutionContext(base map[string]any) ExecutionContext {
	execCtx := make(ExecutionContext, len(base)+1)
	for k, v := range base {
		execCtx[k] = v
	}

	if _, ok := execCtx[PreviousStepsKey]; !ok {
		execCtx[PreviousStepsKey] = map[string]any{}
	}

	return execCtx
}

// PreviousSteps returns the previous_steps bucket, creating it if a caller
// removed it.
func (c ExecutionContext) PreviousSteps() map[string]any {
	if bucket, ok := c[PreviousStepsKey].(map[string]any); ok {
		return bucket
	}

	bucket := map[string]any{}
	c[PreviousStepsKey] = bucket

	return bucket
}

// Clone returns a shallow copy of the top level. Step implementations receive
// clones so a failed step cannot corrupt the live context.
func (c ExecutionContext) Clone() ExecutionContext {
	clone := make(ExecutionContext, len(c))
	for k, v := range c {
		clone[k] = v
	}

	return clone
}

// StepResult is the outcome of one step execution.
type StepResult struct {
	Success             bool              `json:"success"`
	Data                map[string]any    `json:"data,omitempty"`
	DataKeys            []string          `json:"data_keys,omitempty"`
	Error               string            `json:"error,omitempty"`
	ExecutionTimeMs     int64             `json:"execution_time_ms"`
	RawResponse         string            `json:"raw_response,omitempty"`
	InterpolatedPrompts map[string]string `json:"interpolated_prompts,omitempty"`
	TokensUsed          int               `json:"tokens_used,omitempty"`
}

// ChangeObject is the inspectable representation of one output action's
// effect. In test mode it is the terminal artifact; in production mode it
// additionally drives a store mutation.
type ChangeObject struct {
	ActionType        string `json:"action_type"`
	Target            string `json:"target"`
	CurrentValue      string `json:"current_value"`
	NewValue          string `json:"new_value"`
	ResolvedTargetKey string `json:"resolved_target_key,omitempty"`
}

// StepExecutionRecord pairs a step's result with its output processing, so a
// failed run still shows exactly how far execution got.
type StepExecutionRecord struct {
	StepID           string         `json:"step_id"`
	StepName         string         `json:"step_name"`
	Skipped          bool           `json:"skipped,omitempty"`
	Result           *StepResult    `json:"result,omitempty"`
	ProcessedActions int            `json:"processed_actions,omitempty"`
	ActionErrors     []string       `json:"action_errors,omitempty"`
	Changes          []ChangeObject `json:"changes,omitempty"`
}

// WorkflowExecutionResult is the structured result of one workflow run.
type WorkflowExecutionResult struct {
	ExecutionID     string                 `json:"execution_id"`
	WorkflowID      string                 `json:"workflow_id"`
	Success         bool                   `json:"success"`
	StepsExecuted   int                    `json:"steps_executed"`
	ExecutionTimeMs int64                  `json:"execution_time_ms"`
	StepResults     []*StepExecutionRecord `json:"step_results"`
	FinalContext    ExecutionContext       `json:"final_context,omitempty"`
	Error           string                 `json:"error,omitempty"`
}
