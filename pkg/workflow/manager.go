package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmarianski/polytrans/pkg/eventbus"
	"github.com/jmarianski/polytrans/pkg/events"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/variables"
)

// RunRequest is a single workflow run handed to the job layer.
type RunRequest struct {
	Workflow  *models.Workflow
	Context   models.ExecutionContext
	PostID    string
	TestMode  bool
	Initiator string
}

// Enqueuer accepts run requests. The job runner implements it; tests use a
// recording stub.
type Enqueuer interface {
	EnqueueRun(req RunRequest) (string, error)
}

// Manager connects translation events to workflow runs. It listens on the
// event bus, matches enabled workflows by trigger configuration and enqueues
// one job per match.
type Manager struct {
	repository *Repository
	builder    *variables.ContextBuilder
	enqueuer   Enqueuer
	bus        eventbus.EventBus
	logger     *slog.Logger
}

func NewManager(repository *Repository, builder *variables.ContextBuilder, enqueuer Enqueuer, bus eventbus.EventBus, logger *slog.Logger) *Manager {
	return &Manager{
		repository: repository,
		builder:    builder,
		enqueuer:   enqueuer,
		bus:        bus,
		logger:     logger.With("module", "workflow_manager"),
	}
}

// Start registers the event handlers and begins consuming the bus.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.bus.Handle(events.TranslationCompletedEvent, m.handleTranslationCompleted); err != nil {
		return err
	}

	if err := m.bus.Handle(events.WorkflowRunRequestedEvent, m.handleRunRequested); err != nil {
		return err
	}

	return m.bus.Subscribe(ctx)
}

func (m *Manager) handleTranslationCompleted(ctx context.Context, raw any) error {
	event, ok := raw.(*events.TranslationCompleted)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	logger := m.logger.With(
		"post_id", event.PostID,
		"target_language", event.TargetLanguage,
	)
	logger.Info("translation completed, matching workflows")

	workflows, err := m.repository.GetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	matched := 0

	for _, wf := range workflows {
		if !m.matches(wf, event) {
			continue
		}

		matched++

		executionID, err := m.runWorkflow(ctx, wf, event.PostID, event.Payload, false, "translation")
		if err != nil {
			logger.Error("failed to enqueue workflow", "workflow_id", wf.ID, "error", err)

			continue
		}

		logger.Info("workflow enqueued", "workflow_id", wf.ID, "execution_id", executionID)
	}

	if matched == 0 {
		logger.Info("no workflows matched")
	}

	return nil
}

func (m *Manager) handleRunRequested(ctx context.Context, raw any) error {
	event, ok := raw.(*events.WorkflowRunRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", raw)
	}

	_, err := m.Run(ctx, event.WorkflowID, event.PostID, event.Context, event.TestMode, event.Initiator)

	return err
}

// Run enqueues a single workflow run on demand, bypassing trigger matching.
// Manual runs are an explicit operator action, so a disabled workflow may
// still be run this way.
func (m *Manager) Run(ctx context.Context, workflowID, postID string, extra map[string]any, testMode bool, initiator string) (string, error) {
	wf, err := m.repository.Get(ctx, workflowID)
	if err != nil {
		return "", err
	}

	return m.runWorkflow(ctx, wf, postID, extra, testMode, initiator)
}

// matches applies the automatic trigger rules: the workflow must opt in to
// translation triggers, must not be manual-only, its language must match the
// translation's target language, and every condition must hold against the
// event payload.
func (m *Manager) matches(wf *models.Workflow, event *events.TranslationCompleted) bool {
	if wf.Triggers == nil || !wf.Triggers.OnTranslationComplete || wf.Triggers.ManualOnly {
		return false
	}

	if wf.Language != "" && wf.Language != event.TargetLanguage {
		return false
	}

	for _, condition := range wf.Triggers.Conditions {
		if !condition.Matches(event.Payload) {
			return false
		}
	}

	return true
}

func (m *Manager) runWorkflow(ctx context.Context, wf *models.Workflow, postID string, extra map[string]any, testMode bool, initiator string) (string, error) {
	base := map[string]any{
		"post_id": postID,
	}

	for k, v := range extra {
		base[k] = v
	}

	execCtx := m.builder.Build(ctx, base)

	return m.enqueuer.EnqueueRun(RunRequest{
		Workflow:  wf,
		Context:   execCtx,
		PostID:    postID,
		TestMode:  testMode,
		Initiator: initiator,
	})
}
