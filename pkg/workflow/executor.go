package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/otelhelper"
	"github.com/jmarianski/polytrans/pkg/outputs"
	"github.com/jmarianski/polytrans/pkg/steps"
	"github.com/jmarianski/polytrans/pkg/variables"
)

// Executor drives a workflow's step sequence against one execution context.
// It owns no global state; each run gets its own context and result.
type Executor struct {
	registry  *steps.Registry
	processor *outputs.Processor
	resolver  *variables.Resolver
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewExecutor(registry *steps.Registry, processor *outputs.Processor, resolver *variables.Resolver, logger *slog.Logger, tracer trace.Tracer) *Executor {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Executor{
		registry:  registry,
		processor: processor,
		resolver:  resolver,
		logger:    logger.With("module", "workflow_executor"),
		tracer:    tracer,
	}
}

// Validate checks the whole workflow structure before any step runs:
// non-empty steps, unique ids, registered types, per-type configuration.
func (e *Executor) Validate(workflow *models.Workflow) []string {
	var errors []string

	if workflow == nil {
		return []string{"workflow is nil"}
	}

	if len(workflow.Steps) == 0 {
		errors = append(errors, "workflow has no steps")
	}

	seen := make(map[string]struct{}, len(workflow.Steps))

	for i, step := range workflow.Steps {
		prefix := fmt.Sprintf("step %d", i+1)

		if step.ID == "" {
			errors = append(errors, prefix+": missing id")
		} else {
			if _, ok := seen[step.ID]; ok {
				errors = append(errors, fmt.Sprintf("%s: duplicate step id %q", prefix, step.ID))
			}

			seen[step.ID] = struct{}{}
			prefix = fmt.Sprintf("step %q", step.ID)
		}

		if step.Type == "" {
			errors = append(errors, prefix+": missing type")

			continue
		}

		for _, issue := range e.registry.ValidateStep(step) {
			errors = append(errors, prefix+": "+issue)
		}
	}

	return errors
}

// Execute runs the workflow. Validation failure aborts with zero steps
// executed; a failing step halts the remainder unless it is marked
// continue_on_error. The returned result is always structured; Execute
// never panics past this boundary.
func (e *Executor) Execute(ctx context.Context, workflow *models.Workflow, execCtx models.ExecutionContext, testMode bool) *models.WorkflowExecutionResult {
	start := time.Now()

	result := &models.WorkflowExecutionResult{
		ExecutionID: "exec-" + uuid.New().String()[:8],
		WorkflowID:  workflow.ID,
		Success:     true,
	}

	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", result.ExecutionID,
		"test_mode", testMode,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, result.ExecutionID),
		attribute.Bool(otelhelper.TestModeKey, testMode),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("workflow execution panicked: %v", r)
			logger.Error("recovered from panic during execution", "panic", r)
			otelhelper.SetError(span, err)

			result.Success = false
			result.Error = err.Error()
			result.ExecutionTimeMs = time.Since(start).Milliseconds()
		}
	}()

	if issues := e.Validate(workflow); len(issues) > 0 {
		logger.Warn("workflow validation failed", "issues", issues)

		result.Success = false
		result.Error = fmt.Sprintf("workflow validation failed: %v", issues)
		result.ExecutionTimeMs = time.Since(start).Milliseconds()

		return result
	}

	logger.Info("starting workflow execution", "steps", len(workflow.Steps))

	for _, step := range workflow.Steps {
		record := &models.StepExecutionRecord{
			StepID:   step.ID,
			StepName: step.Name,
		}
		result.StepResults = append(result.StepResults, record)

		if !step.Enabled {
			logger.Info("step disabled, skipping", "step_id", step.ID)
			record.Skipped = true

			continue
		}

		stepResult := e.executeStep(ctx, step, execCtx, logger)
		record.Result = stepResult
		result.StepsExecuted++

		if stepResult.Success {
			execCtx = e.mergeStepOutput(ctx, workflow, step, stepResult, execCtx, testMode, record, logger)

			if len(record.ActionErrors) > 0 {
				result.Success = false
			}
		} else {
			result.Success = false

			if !step.ContinueOnError {
				logger.Warn("step failed, halting workflow",
					"step_id", step.ID,
					"error", stepResult.Error)

				break
			}

			logger.Warn("step failed, continuing on error",
				"step_id", step.ID,
				"error", stepResult.Error)
		}
	}

	result.FinalContext = execCtx
	result.ExecutionTimeMs = time.Since(start).Milliseconds()

	logger.Info("workflow execution finished",
		"success", result.Success,
		"steps_executed", result.StepsExecuted,
		"duration_ms", result.ExecutionTimeMs)

	return result
}

// executeStep checks required variables, then hands the step a clone of the
// context so a misbehaving implementation cannot corrupt the live state.
func (e *Executor) executeStep(ctx context.Context, step *models.WorkflowStep, execCtx models.ExecutionContext, logger *slog.Logger) *models.StepResult {
	impl, err := e.registry.Get(step.Type)
	if err != nil {
		// Unreachable after Validate, but a registry mutated mid-run must
		// not panic the executor.
		return &models.StepResult{Success: false, Error: err.Error()}
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepTypeKey, step.Type),
	)
	defer span.End()

	for _, path := range impl.RequiredVariables(step) {
		if _, ok := e.resolver.Resolve(path, execCtx); !ok {
			err := fmt.Errorf("required variable %q not found in context", path)
			otelhelper.SetError(span, err)

			return &models.StepResult{Success: false, Error: err.Error()}
		}
	}

	logger.Info("executing step", "step_id", step.ID, "step_type", step.Type)

	stepResult := impl.Execute(ctx, execCtx.Clone(), step)
	if stepResult == nil {
		stepResult = &models.StepResult{Success: false, Error: "step returned no result"}
	}

	if !stepResult.Success {
		otelhelper.SetError(span, fmt.Errorf("%s", stepResult.Error))
	}

	return stepResult
}

// mergeStepOutput processes output actions and merges the step's output into
// the live context: the full output under previous_steps[id] and each
// declared output variable as a top-level key, so later steps can reference
// {variable} directly.
func (e *Executor) mergeStepOutput(
	ctx context.Context,
	workflow *models.Workflow,
	step *models.WorkflowStep,
	stepResult *models.StepResult,
	execCtx models.ExecutionContext,
	testMode bool,
	record *models.StepExecutionRecord,
	logger *slog.Logger,
) models.ExecutionContext {
	if len(step.OutputActions) > 0 {
		outputResult := e.processor.ProcessStepOutputs(ctx, stepResult, step.OutputActions, execCtx, testMode, workflow.AttributionUser)

		record.ProcessedActions = outputResult.ProcessedActions
		record.ActionErrors = outputResult.Errors
		record.Changes = outputResult.Changes

		execCtx = outputResult.UpdatedContext

		if len(outputResult.Errors) > 0 {
			logger.Warn("some output actions failed",
				"step_id", step.ID,
				"processed", outputResult.ProcessedActions,
				"errors", outputResult.Errors)
		}
	}

	execCtx.PreviousSteps()[step.ID] = stepResult.Data

	for _, name := range step.OutputVariables {
		value, ok := stepResult.Data[name]
		if !ok {
			logger.Warn("declared output variable missing from step output",
				"step_id", step.ID,
				"variable", name)

			continue
		}

		execCtx[name] = value
	}

	return execCtx
}
