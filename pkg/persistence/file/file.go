// Package file provides file-based persistence for workflows and managed
// assistants. Definitions are stored as one JSON document per entity.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/persistence"
)

const (
	workflowsDir  = "workflows"
	assistantsDir = "assistants"
)

type Persistence struct {
	root string
}

func NewPersistence(root string) *Persistence {
	return &Persistence{
		root: strings.TrimPrefix(root, "file://"),
	}
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// Workflows

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := p.listIDs(workflowsDir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := p.WorkflowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := p.readJSON(workflowsDir, id, &workflow); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return nil, err
	}

	return &workflow, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	return p.writeJSON(workflowsDir, workflow.ID, workflow)
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	err := os.Remove(p.path(workflowsDir, id))
	if os.IsNotExist(err) {
		return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	return err
}

// Assistants

func (p *Persistence) Assistants(ctx context.Context) ([]*models.ManagedAssistant, error) {
	ids, err := p.listIDs(assistantsDir)
	if err != nil {
		return nil, err
	}

	assistants := make([]*models.ManagedAssistant, 0, len(ids))

	for _, id := range ids {
		assistant, err := p.AssistantByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load assistant %s: %w", id, err)
		}

		assistants = append(assistants, assistant)
	}

	sort.Slice(assistants, func(i, j int) bool {
		return assistants[i].Name < assistants[j].Name
	})

	return assistants, nil
}

func (p *Persistence) AssistantByID(_ context.Context, id string) (*models.ManagedAssistant, error) {
	var assistant models.ManagedAssistant
	if err := p.readJSON(assistantsDir, id, &assistant); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("assistant %s: %w", id, persistence.ErrAssistantNotFound)
		}

		return nil, err
	}

	return &assistant, nil
}

func (p *Persistence) SaveAssistant(_ context.Context, assistant *models.ManagedAssistant) error {
	return p.writeJSON(assistantsDir, assistant.ID, assistant)
}

func (p *Persistence) DeleteAssistant(_ context.Context, id string) error {
	err := os.Remove(p.path(assistantsDir, id))
	if os.IsNotExist(err) {
		return fmt.Errorf("assistant %s: %w", id, persistence.ErrAssistantNotFound)
	}

	return err
}

// Helpers

func (p *Persistence) path(dir, id string) string {
	return filepath.Join(p.root, dir, id+".json")
}

func (p *Persistence) listIDs(dir string) ([]string, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(p.root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

func (p *Persistence) readJSON(dir, id string, out any) error {
	data, err := os.ReadFile(p.path(dir, id))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", dir, id, err)
	}

	return nil
}

func (p *Persistence) writeJSON(dir, id string, value any) error {
	if err := os.MkdirAll(filepath.Join(p.root, dir), 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", dir, id, err)
	}

	return os.WriteFile(p.path(dir, id), data, 0o644)
}
