package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/persistence"
	"github.com/jmarianski/polytrans/pkg/steps"
)

// Repository is the validated gateway to stored workflow definitions. Every
// write path goes through the same structural and per-step validation the
// executor applies at run time, so a saved workflow is always runnable.
type Repository struct {
	persistence persistence.Persistence
	registry    *steps.Registry
	validate    *validator.Validate
}

func NewRepository(persistence persistence.Persistence, registry *steps.Registry) *Repository {
	return &Repository{
		persistence: persistence,
		registry:    registry,
		validate:    validator.New(),
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}

func (r *Repository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := r.persistence.Workflows(ctx)
	if err != nil {
		return make([]*models.Workflow, 0), err
	}

	return workflows, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return r.persistence.WorkflowByID(ctx, id)
}

// GetEnabled returns only workflows that may be triggered automatically.
func (r *Repository) GetEnabled(ctx context.Context) ([]*models.Workflow, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if workflow.Enabled {
			enabled = append(enabled, workflow)
		}
	}

	return enabled, nil
}

func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if err := r.validateWorkflow(workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := r.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow.ID = id

	if err := r.validateWorkflow(workflow); err != nil {
		return nil, err
	}

	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := r.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.persistence.WorkflowByID(ctx, id); err != nil {
		return err
	}

	return r.persistence.DeleteWorkflow(ctx, id)
}

// Duplicate copies an existing workflow under a fresh id. The copy starts
// disabled so it cannot fire automatic triggers before it is reviewed.
func (r *Repository) Duplicate(ctx context.Context, id string) (*models.Workflow, error) {
	source, err := r.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	duplicate := *source
	duplicate.ID = uuid.New().String()
	duplicate.Name = source.Name + " (copy)"
	duplicate.Enabled = false

	duplicate.Steps = make([]*models.WorkflowStep, len(source.Steps))
	for i, step := range source.Steps {
		stepCopy := *step
		duplicate.Steps[i] = &stepCopy
	}

	return r.Create(ctx, &duplicate)
}

func (r *Repository) validateWorkflow(workflow *models.Workflow) error {
	if err := r.validate.Struct(workflow); err != nil {
		return fmt.Errorf("workflow validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(workflow.Steps))

	for _, step := range workflow.Steps {
		if _, ok := seen[step.ID]; ok {
			return fmt.Errorf("workflow validation failed: duplicate step id %q", step.ID)
		}

		seen[step.ID] = struct{}{}

		if r.registry == nil {
			continue
		}

		if issues := r.registry.ValidateStep(step); len(issues) > 0 {
			return fmt.Errorf("workflow validation failed: step %q: %v", step.ID, issues)
		}
	}

	return nil
}
