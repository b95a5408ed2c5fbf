// Package persistence abstracts storage of workflow definitions and managed
// assistant definitions.
package persistence

import (
	"context"
	"errors"

	"github.com/jmarianski/polytrans/pkg/models"
)

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrAssistantNotFound = errors.New("assistant not found")
)

// IsWorkflowNotFound reports whether err means the workflow does not exist.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsAssistantNotFound reports whether err means the assistant does not exist.
func IsAssistantNotFound(err error) bool {
	return errors.Is(err, ErrAssistantNotFound)
}

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	Assistants(ctx context.Context) ([]*models.ManagedAssistant, error)
	AssistantByID(ctx context.Context, id string) (*models.ManagedAssistant, error)
	SaveAssistant(ctx context.Context, assistant *models.ManagedAssistant) error
	DeleteAssistant(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
