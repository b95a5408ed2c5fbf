// Package web provides the REST API for workflow management, manual runs
// and execution polling.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/jmarianski/polytrans/pkg/eventbus"
	"github.com/jmarianski/polytrans/pkg/events"
	"github.com/jmarianski/polytrans/pkg/jobs"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/persistence"
	"github.com/jmarianski/polytrans/pkg/workflow"
)

// WorkflowRunner enqueues a single workflow run. The workflow manager
// implements it.
type WorkflowRunner interface {
	Run(ctx context.Context, workflowID, postID string, extra map[string]any, testMode bool, initiator string) (string, error)
}

// ExecutionPoller exposes job status. The job runner implements it.
type ExecutionPoller interface {
	Poll(executionID string) (*jobs.Execution, bool)
}

type APIHandlers struct {
	repository  *workflow.Repository
	runner      WorkflowRunner
	poller      ExecutionPoller
	persistence persistence.Persistence
	bus         eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	repository *workflow.Repository,
	runner WorkflowRunner,
	poller ExecutionPoller,
	persistence persistence.Persistence,
	bus eventbus.EventPublisher,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		repository:  repository,
		runner:      runner,
		poller:      poller,
		persistence: persistence,
		bus:         bus,
		validate:    validator.New(),
		logger:      logger.With("module", "web"),
	}
}

// Workflows

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.repository.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var payload models.Workflow
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "invalid workflow payload: "+err.Error())
	}

	created, err := h.repository.Create(c.Context(), &payload)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var payload models.Workflow
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "invalid workflow payload: "+err.Error())
	}

	updated, err := h.repository.Update(c.Context(), c.Params("id"), &payload)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return badRequest(c, err.Error())
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.repository.Delete(c.Context(), c.Params("id")); err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateWorkflow(c fiber.Ctx) error {
	duplicate, err := h.repository.Duplicate(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(duplicate)
}

// Runs

type runWorkflowRequest struct {
	PostID    string         `json:"post_id" validate:"required"`
	TestMode  bool           `json:"test_mode"`
	Context   map[string]any `json:"context"`
	Initiator string         `json:"initiator"`
}

func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req runWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid run payload: "+err.Error())
	}

	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	executionID, err := h.runner.Run(c.Context(), c.Params("id"), req.PostID, req.Context, req.TestMode, req.Initiator)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "workflow not found")
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"execution_id": executionID,
		"status":       string(jobs.StatusQueued),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, ok := h.poller.Poll(c.Params("id"))
	if !ok {
		return notFound(c, "execution not found")
	}

	return c.JSON(execution)
}

// Events

type translationCompletedRequest struct {
	PostID         string         `json:"post_id" validate:"required"`
	SourceLanguage string         `json:"source_language"`
	TargetLanguage string         `json:"target_language" validate:"required"`
	Payload        map[string]any `json:"payload"`
}

// NotifyTranslationCompleted publishes a translation.completed event; the
// workflow manager picks it up and enqueues matching workflows.
func (h *APIHandlers) NotifyTranslationCompleted(c fiber.Ctx) error {
	var req translationCompletedRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid event payload: "+err.Error())
	}

	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.TranslationCompleted{
		BaseEvent:      events.NewBaseEvent(events.TranslationCompletedEvent),
		PostID:         req.PostID,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Payload:        req.Payload,
	}

	if err := h.bus.Publish(c.Context(), req.PostID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
	})
}

// Assistants

func (h *APIHandlers) GetAssistants(c fiber.Ctx) error {
	assistants, err := h.persistence.Assistants(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"assistants":  assistants,
		"total_count": len(assistants),
	})
}

func (h *APIHandlers) GetAssistant(c fiber.Ctx) error {
	assistant, err := h.persistence.AssistantByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(assistant)
}

func (h *APIHandlers) SaveAssistant(c fiber.Ctx) error {
	var payload models.ManagedAssistant
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "invalid assistant payload: "+err.Error())
	}

	if err := h.validate.Struct(&payload); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.SaveAssistant(c.Context(), &payload); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(payload)
}

func (h *APIHandlers) DeleteAssistant(c fiber.Ctx) error {
	if err := h.persistence.DeleteAssistant(c.Context(), c.Params("id")); err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Health

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.repository.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"persistence": repositoryCheck,
		},
	})
}
