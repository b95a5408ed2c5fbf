// Package postgres provides PostgreSQL-backed persistence for workflows and
// managed assistants. Definitions are stored as JSONB documents with the
// columns needed for listing pulled out.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/persistence"
	"github.com/jmarianski/polytrans/pkg/persistence/sqlbase"
)

type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	manager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := manager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger.With("module", "postgres_persistence"),
	}, nil
}

// Workflows

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT definition FROM workflows ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow

	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}

		var workflow models.Workflow
		if err := json.Unmarshal(definition, &workflow); err != nil {
			return nil, fmt.Errorf("failed to decode workflow: %w", err)
		}

		workflows = append(workflows, &workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow rows: %w", err)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	var definition []byte

	err := p.db.QueryRowContext(ctx,
		"SELECT definition FROM workflows WHERE id = $1", id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query workflow %s: %w", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(definition, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	definition, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", workflow.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflows (id, definition, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			definition = EXCLUDED.definition,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`, workflow.ID, definition, workflow.Enabled, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// Assistants

func (p *Persistence) Assistants(ctx context.Context) ([]*models.ManagedAssistant, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT definition FROM assistants ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query assistants: %w", err)
	}
	defer rows.Close()

	var assistants []*models.ManagedAssistant

	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan assistant row: %w", err)
		}

		var assistant models.ManagedAssistant
		if err := json.Unmarshal(definition, &assistant); err != nil {
			return nil, fmt.Errorf("failed to decode assistant: %w", err)
		}

		assistants = append(assistants, &assistant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assistant rows: %w", err)
	}

	return assistants, nil
}

func (p *Persistence) AssistantByID(ctx context.Context, id string) (*models.ManagedAssistant, error) {
	var definition []byte

	err := p.db.QueryRowContext(ctx,
		"SELECT definition FROM assistants WHERE id = $1", id).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assistant %s: %w", id, persistence.ErrAssistantNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query assistant %s: %w", id, err)
	}

	var assistant models.ManagedAssistant
	if err := json.Unmarshal(definition, &assistant); err != nil {
		return nil, fmt.Errorf("failed to decode assistant %s: %w", id, err)
	}

	return &assistant, nil
}

func (p *Persistence) SaveAssistant(ctx context.Context, assistant *models.ManagedAssistant) error {
	now := time.Now().UTC()
	if assistant.CreatedAt.IsZero() {
		assistant.CreatedAt = now
	}

	assistant.UpdatedAt = now

	definition, err := json.Marshal(assistant)
	if err != nil {
		return fmt.Errorf("failed to encode assistant %s: %w", assistant.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO assistants (id, name, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at
	`, assistant.ID, assistant.Name, definition, assistant.CreatedAt, assistant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save assistant %s: %w", assistant.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteAssistant(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, "DELETE FROM assistants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete assistant %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("assistant %s: %w", id, persistence.ErrAssistantNotFound)
	}

	return nil
}

// Lifecycle

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db == nil {
		return nil
	}

	return p.db.Close()
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				definition JSONB NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_enabled ON workflows(enabled);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE assistants (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_assistants_name ON assistants(name);
		`,
	}
}
