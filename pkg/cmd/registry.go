package cmd

import (
	"log/slog"

	"github.com/jmarianski/polytrans/pkg/aiclient"
	"github.com/jmarianski/polytrans/pkg/persistence"
	"github.com/jmarianski/polytrans/pkg/steps"
	"github.com/jmarianski/polytrans/pkg/steps/assistant"
	"github.com/jmarianski/polytrans/pkg/steps/customprompt"
	"github.com/jmarianski/polytrans/pkg/steps/managed"
	"github.com/jmarianski/polytrans/pkg/variables"
)

// NewStepRegistry registers the built-in step types against one AI client.
func NewStepRegistry(
	client aiclient.Client,
	assistants persistence.Persistence,
	resolver *variables.Resolver,
	logger *slog.Logger,
) *steps.Registry {
	registry := steps.NewRegistry(logger)

	registry.Register(customprompt.NewCustomPromptStep(client, resolver, logger))
	registry.Register(assistant.NewAssistantStep(client, resolver, logger))
	registry.Register(managed.NewManagedAssistantStep(client, assistants, resolver, logger))

	return registry
}
