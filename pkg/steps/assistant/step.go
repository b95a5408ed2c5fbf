// Package assistant implements the step type driving a provider-hosted
// assistant through the stateful thread/run protocol.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmarianski/polytrans/pkg/aiclient"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/steps"
	"github.com/jmarianski/polytrans/pkg/variables"
)

// Polling bounds for assistant runs. Exceeding the attempt budget is a
// deterministic timeout, never an unbounded hang.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 60
)

type AssistantStep struct {
	client       aiclient.AssistantClient
	resolver     *variables.Resolver
	logger       *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
}

type Option func(*AssistantStep)

// WithPolling overrides the run polling bounds (tests shorten them).
func WithPolling(interval time.Duration, maxAttempts int) Option {
	return func(s *AssistantStep) {
		s.pollInterval = interval
		s.maxAttempts = maxAttempts
	}
}

func NewAssistantStep(client aiclient.AssistantClient, resolver *variables.Resolver, logger *slog.Logger, opts ...Option) *AssistantStep {
	step := &AssistantStep{
		client:       client,
		resolver:     resolver,
		logger:       logger.With("module", "assistant_step"),
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(step)
	}

	return step
}

func (s *AssistantStep) Type() string {
	return models.StepTypePredefinedAssistant
}

func (s *AssistantStep) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assistant_id": map[string]any{
				"type":        "string",
				"description": "Provider-hosted assistant id.",
			},
			"user_message": map[string]any{
				"type":        "string",
				"description": "Message template sent to the assistant thread.",
			},
			"expected_format": map[string]any{
				"type": "string",
				"enum": []string{models.ResponseFormatText, models.ResponseFormatJSON},
			},
		},
		"required": []string{"assistant_id", "user_message"},
	}
}

func (s *AssistantStep) ValidateConfig(step *models.WorkflowStep) []string {
	var errors []string

	if step.AssistantID == "" {
		errors = append(errors, "assistant step requires an assistant_id")
	}

	if step.UserMessage == "" {
		errors = append(errors, "assistant step requires a user_message template")
	}

	return errors
}

func (s *AssistantStep) RequiredVariables(step *models.WorkflowStep) []string {
	return s.resolver.ExtractVariableNames(step.UserMessage)
}

func (s *AssistantStep) Execute(ctx context.Context, execCtx models.ExecutionContext, step *models.WorkflowStep) *models.StepResult {
	start := time.Now()

	userMessage := s.resolver.Interpolate(step.UserMessage, execCtx)
	prompts := map[string]string{"user": userMessage}

	logger := s.logger.With("step_id", step.ID, "assistant_id", step.AssistantID)

	threadID, err := s.client.CreateThread(ctx)
	if err != nil {
		logger.Error("failed to create thread", "error", err)

		return steps.FailedResult(start, prompts, err)
	}

	if err := s.client.AddMessage(ctx, threadID, userMessage); err != nil {
		logger.Error("failed to add message", "error", err)

		return steps.FailedResult(start, prompts, err)
	}

	runID, err := s.client.RunAssistant(ctx, threadID, step.AssistantID)
	if err != nil {
		logger.Error("failed to start run", "error", err)

		return steps.FailedResult(start, prompts, err)
	}

	status, err := s.awaitRun(ctx, threadID, runID)
	if err != nil {
		logger.Error("assistant run did not complete", "run_id", runID, "error", err)

		return steps.FailedResult(start, prompts, err)
	}

	raw, err := s.client.GetLatestMessage(ctx, threadID)
	if err != nil {
		logger.Error("failed to fetch assistant reply", "run_id", runID, "error", err)

		return steps.FailedResult(start, prompts, err)
	}

	return steps.BuildResult(step, raw, start, prompts, status.Usage.TotalTokens)
}

// awaitRun polls the run at a fixed interval up to the attempt budget.
// Terminal failure states surface the provider's error code; exhausting the
// budget is a distinct timeout error.
func (s *AssistantStep) awaitRun(ctx context.Context, threadID, runID string) (aiclient.RunStatus, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		status, err := s.client.PollRunStatus(ctx, threadID, runID)
		if err != nil {
			return aiclient.RunStatus{}, err
		}

		if status.Terminal() {
			if status.Status == aiclient.RunStatusCompleted {
				return status, nil
			}

			message := fmt.Sprintf("assistant run %s", status.Status)
			if status.ErrorMsg != "" {
				message = fmt.Sprintf("%s: %s", message, status.ErrorMsg)
			}

			return aiclient.RunStatus{}, &aiclient.ProviderError{
				Code:    providerCode(status),
				Message: message,
			}
		}

		select {
		case <-ctx.Done():
			return aiclient.RunStatus{}, &aiclient.ProviderError{
				Code:    aiclient.ErrCodeTimeout,
				Message: "assistant run cancelled: " + ctx.Err().Error(),
			}
		case <-time.After(s.pollInterval):
		}
	}

	return aiclient.RunStatus{}, &aiclient.ProviderError{
		Code: aiclient.ErrCodeTimeout,
		Message: fmt.Sprintf("assistant run did not finish within %d polls at %s",
			s.maxAttempts, s.pollInterval),
	}
}

func providerCode(status aiclient.RunStatus) string {
	if status.ErrorCode != "" {
		return status.ErrorCode
	}

	return aiclient.ErrCodeAPI
}
