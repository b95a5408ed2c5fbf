// Package managed implements the step type resolving a locally stored
// assistant definition and dispatching it like a custom prompt.
package managed

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

// AssistantSource resolves managed assistant definitions by id.
type AssistantSource interface {
	AssistantByID(ctx context.Context, id string) (*models.ManagedAssistant, error)
}

type ManagedAssistantStep struct {
	client     aiclient.ChatClient
	assistants AssistantSource
	resolver   *variables.Resolver
	logger     *slog.Logger
}

func NewManagedAssistantStep(client aiclient.ChatClient, assistants AssistantSource, resolver *variables.Resolver, logger *slog.Logger) *ManagedAssistantStep {
	return &ManagedAssistantStep{
		client:     client,
		assistants: assistants,
		resolver:   resolver,
		logger:     logger.With("module", "managed_assistant_step"),
	}
}

func (s *ManagedAssistantStep) Type() string {
	return models.StepTypeManagedAssistant
}

func (s *ManagedAssistantStep) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assistant_id": map[string]any{
				"type":        "string",
				"description": "Id of a locally stored assistant definition.",
			},
			"user_message": map[string]any{
				"type":        "string",
				"description": "User message template. Supports {variable} placeholders.",
			},
			"expected_format": map[string]any{
				"type": "string",
				"enum": []string{models.ResponseFormatText, models.ResponseFormatJSON},
			},
		},
		"required": []string{"assistant_id", "user_message"},
	}
}

func (s *ManagedAssistantStep) ValidateConfig(step *models.WorkflowStep) []string {
	var errors []string

	if step.AssistantID == "" {
		errors = append(errors, "managed assistant step requires an assistant_id")
	}

	if step.UserMessage == "" {
		errors = append(errors, "managed assistant step requires a user_message template")
	}

	return errors
}

func (s *ManagedAssistantStep) RequiredVariables(step *models.WorkflowStep) []string {
	return s.resolver.ExtractVariableNames(step.UserMessage)
}

func (s *ManagedAssistantStep) Execute(ctx context.Context, execCtx models.ExecutionContext, step *models.WorkflowStep) *models.StepResult {
	start := time.Now()

	assistant, err := s.assistants.AssistantByID(ctx, step.AssistantID)
	if err != nil {
		s.logger.Error("failed to resolve managed assistant",
			"step_id", step.ID,
			"assistant_id", step.AssistantID,
			"error", err)

		return steps.FailedResult(start, nil, fmt.Errorf("failed to resolve assistant %s: %w", step.AssistantID, err))
	}

	systemPrompt := s.resolver.Interpolate(assistant.SystemPrompt, execCtx)
	userMessage := s.resolver.Interpolate(step.UserMessage, execCtx)

	prompts := map[string]string{
		"system": systemPrompt,
		"user":   userMessage,
	}

	params := aiclient.Parameters{
		Model:       assistant.Model,
		Temperature: assistant.Temperature,
		MaxTokens:   assistant.MaxTokens,
	}

	// Step-level overrides win over the stored definition.
	if step.Model != "" {
		params.Model = step.Model
	}

	if step.Temperature != nil {
		params.Temperature = step.Temperature
	}

	if step.MaxTokens != 0 {
		params.MaxTokens = step.MaxTokens
	}

	messages := []aiclient.Message{
		{Role: aiclient.RoleSystem, Content: systemPrompt},
		{Role: aiclient.RoleUser, Content: userMessage},
	}

	completion, err := s.client.ChatCompletion(ctx, messages, params)
	if err != nil {
		s.logger.Error("chat completion failed", "step_id", step.ID, "error", err)

		return steps.FailedResult(start, prompts, err)
	}

	return steps.BuildResult(step, completion.Content, start, prompts, completion.Usage.TotalTokens)
}
