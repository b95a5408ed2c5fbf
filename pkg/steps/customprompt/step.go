// Package customprompt implements the step type sending user-authored
// system/user prompt templates to a chat-completion AI client.
package customprompt

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmarianski/polytrans/pkg/aiclient"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/steps"
	"github.com/jmarianski/polytrans/pkg/variables"
)

type CustomPromptStep struct {
	client   aiclient.ChatClient
	resolver *variables.Resolver
	logger   *slog.Logger
}

func NewCustomPromptStep(client aiclient.ChatClient, resolver *variables.Resolver, logger *slog.Logger) *CustomPromptStep {
	return &CustomPromptStep{
		client:   client,
		resolver: resolver,
		logger:   logger.With("module", "custom_prompt_step"),
	}
}

func (s *CustomPromptStep) Type() string {
	return models.StepTypeCustomPrompt
}

func (s *CustomPromptStep) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"system_prompt": map[string]any{
				"type":        "string",
				"description": "System prompt template. Supports {variable} placeholders.",
			},
			"user_message": map[string]any{
				"type":        "string",
				"description": "User message template. Supports {variable} placeholders.",
			},
			"model": map[string]any{
				"type": "string",
			},
			"temperature": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 2,
			},
			"max_tokens": map[string]any{
				"type":    "number",
				"minimum": 1,
			},
			"expected_format": map[string]any{
				"type": "string",
				"enum": []string{models.ResponseFormatText, models.ResponseFormatJSON},
			},
		},
		"required": []string{"user_message"},
	}
}

func (s *CustomPromptStep) ValidateConfig(step *models.WorkflowStep) []string {
	var errors []string

	if step.UserMessage == "" {
		errors = append(errors, "custom prompt step requires a user_message template")
	}

	if step.ExpectedFormat == models.ResponseFormatJSON && len(step.ExpectedSchema) == 0 {
		s.logger.Debug("step expects JSON without a schema, output will pass through unvalidated",
			"step_id", step.ID)
	}

	return errors
}

func (s *CustomPromptStep) RequiredVariables(step *models.WorkflowStep) []string {
	names := s.resolver.ExtractVariableNames(step.SystemPrompt)

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		seen[name] = struct{}{}
	}

	for _, name := range s.resolver.ExtractVariableNames(step.UserMessage) {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
		}
	}

	return names
}

func (s *CustomPromptStep) Execute(ctx context.Context, execCtx models.ExecutionContext, step *models.WorkflowStep) *models.StepResult {
	start := time.Now()

	systemPrompt := s.resolver.Interpolate(step.SystemPrompt, execCtx)
	userMessage := s.resolver.Interpolate(step.UserMessage, execCtx)

	prompts := map[string]string{
		"system": systemPrompt,
		"user":   userMessage,
	}

	messages := make([]aiclient.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, aiclient.Message{Role: aiclient.RoleSystem, Content: systemPrompt})
	}

	messages = append(messages, aiclient.Message{Role: aiclient.RoleUser, Content: userMessage})

	completion, err := s.client.ChatCompletion(ctx, messages, aiclient.Parameters{
		Model:       step.Model,
		Temperature: step.Temperature,
		MaxTokens:   step.MaxTokens,
	})
	if err != nil {
		s.logger.Error("chat completion failed", "step_id", step.ID, "error", err)

		return steps.FailedResult(start, prompts, err)
	}

	return steps.BuildResult(step, completion.Content, start, prompts, completion.Usage.TotalTokens)
}
