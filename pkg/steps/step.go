// Package steps defines the step contract and the registry dispatching step
// type tags to implementations.
package steps

import (
	"context"

	"github.com/jmarianski/polytrans/pkg/models"
)

// Step is one executable step variant. Implementations are stateless; the
// per-step configuration arrives with each call.
type Step interface {
	// Type returns the type tag this implementation handles.
	Type() string

	// ConfigSchema returns a JSON schema for the type-specific configuration
	// fields, used by the registry for load-time validation.
	ConfigSchema() map[string]any

	// ValidateConfig performs semantic checks the schema cannot express.
	ValidateConfig(step *models.WorkflowStep) []string

	// RequiredVariables returns the dot-paths the step's templates reference.
	RequiredVariables(step *models.WorkflowStep) []string

	// Execute runs the step against the execution context. It reports
	// failure through the result, never through a panic.
	Execute(ctx context.Context, execCtx models.ExecutionContext, step *models.WorkflowStep) *models.StepResult
}
