package steps

import (
	"time"

	"github.com/jmarianski/polytrans/pkg/airesponse"
	"github.com/jmarianski/polytrans/pkg/models"
)

// AIResponseKey is the conventional key holding a step's raw text output
// when the expected format is plain text.
const AIResponseKey = "ai_response"

// BuildResult shapes a raw AI reply into a StepResult honoring the step's
// expected response format. JSON parsing failures mark the step failed but
// keep the raw response for diagnostics.
func BuildResult(step *models.WorkflowStep, raw string, start time.Time, prompts map[string]string, tokens int) *models.StepResult {
	result := &models.StepResult{
		RawResponse:         raw,
		ExecutionTimeMs:     time.Since(start).Milliseconds(),
		InterpolatedPrompts: prompts,
		TokensUsed:          tokens,
	}

	if step.ExpectedFormat == models.ResponseFormatJSON {
		parsed := airesponse.ParseWithSchema(raw, step.ExpectedSchema)
		if !parsed.Success {
			result.Error = parsed.Error

			return result
		}

		result.Success = true
		result.Data = parsed.Data
		result.DataKeys = parsed.DataKeys

		return result
	}

	result.Success = true
	result.Data = map[string]any{AIResponseKey: raw}
	result.DataKeys = []string{AIResponseKey}

	return result
}

// FailedResult reports a step failure with timing filled in.
func FailedResult(start time.Time, prompts map[string]string, err error) *models.StepResult {
	return &models.StepResult{
		Success:             false,
		Error:               err.Error(),
		ExecutionTimeMs:     time.Since(start).Milliseconds(),
		InterpolatedPrompts: prompts,
	}
}
