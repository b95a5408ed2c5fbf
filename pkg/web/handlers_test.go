package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmarianski/polytrans/pkg/eventbus"
	"github.com/jmarianski/polytrans/pkg/jobs"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/persistence/file"
	"github.com/jmarianski/polytrans/pkg/steps"
	"github.com/jmarianski/polytrans/pkg/workflow"
)

type fakeStep struct{}

func (f *fakeStep) Type() string { return models.StepTypeCustomPrompt }

func (f *fakeStep) ConfigSchema() map[string]any { return map[string]any{"type": "object"} }

func (f *fakeStep) ValidateConfig(*models.WorkflowStep) []string { return nil }

func (f *fakeStep) RequiredVariables(*models.WorkflowStep) []string { return nil }

func (f *fakeStep) Execute(context.Context, models.ExecutionContext, *models.WorkflowStep) *models.StepResult {
	return &models.StepResult{Success: true}
}

type stubRunner struct {
	workflowID string
	postID     string
	testMode   bool
	err        error
}

func (s *stubRunner) Run(_ context.Context, workflowID, postID string, _ map[string]any, testMode bool, _ string) (string, error) {
	s.workflowID = workflowID
	s.postID = postID
	s.testMode = testMode

	if s.err != nil {
		return "", s.err
	}

	return "job-abc", nil
}

type stubPoller struct {
	executions map[string]*jobs.Execution
}

func (s *stubPoller) Poll(executionID string) (*jobs.Execution, bool) {
	execution, ok := s.executions[executionID]

	return execution, ok
}

type stubPublisher struct {
	published []eventbus.Event
}

func (s *stubPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	s.published = append(s.published, event)

	return nil
}

type testAPI struct {
	app       *fiber.App
	runner    *stubRunner
	poller    *stubPoller
	publisher *stubPublisher
	repo      *workflow.Repository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.Default()
	registry := steps.NewRegistry(logger)
	registry.Register(&fakeStep{})

	persistence := file.NewPersistence(t.TempDir())
	repo := workflow.NewRepository(persistence, registry)

	runner := &stubRunner{}
	poller := &stubPoller{executions: map[string]*jobs.Execution{}}
	publisher := &stubPublisher{}

	handlers := NewAPIHandlers(repo, runner, poller, persistence, publisher, logger)

	return &testAPI{
		app:       NewApp(handlers),
		runner:    runner,
		poller:    poller,
		publisher: publisher,
		repo:      repo,
	}
}

func (a *testAPI) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func apiWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:     "Summarize after translation",
		Language: "es",
		Enabled:  true,
		Steps: []*models.WorkflowStep{
			{ID: "s1", Name: "summarize", Type: models.StepTypeCustomPrompt, Enabled: true},
		},
	}
}

func TestCreateAndGetWorkflow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/workflows/", apiWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeJSON(t, resp)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	resp = api.request(t, http.MethodGet, "/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Summarize after translation", decodeJSON(t, resp)["name"])

	resp = api.request(t, http.MethodGet, "/workflows/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decodeJSON(t, resp)["total_count"])
}

func TestCreateWorkflow_InvalidPayload(t *testing.T) {
	api := newTestAPI(t)

	invalid := apiWorkflow()
	invalid.Name = ""

	resp := api.request(t, http.MethodPost, "/workflows/", invalid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflow_NotFound(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateWorkflow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/workflows/", apiWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := decodeJSON(t, resp)["id"].(string)

	update := apiWorkflow()
	update.Name = "Renamed workflow"

	resp = api.request(t, http.MethodPut, "/workflows/"+id, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Renamed workflow", decodeJSON(t, resp)["name"])

	resp = api.request(t, http.MethodPut, "/workflows/missing", update)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/workflows/", apiWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := decodeJSON(t, resp)["id"].(string)

	resp = api.request(t, http.MethodDelete, "/workflows/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.request(t, http.MethodDelete, "/workflows/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDuplicateWorkflow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/workflows/", apiWorkflow())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := decodeJSON(t, resp)["id"].(string)

	resp = api.request(t, http.MethodPost, "/workflows/"+id+"/duplicate", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	duplicated := decodeJSON(t, resp)
	assert.NotEqual(t, id, duplicated["id"])
	assert.Equal(t, false, duplicated["enabled"])
}

func TestRunWorkflow(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/workflows/wf-1/run", map[string]any{
		"post_id":   "42",
		"test_mode": true,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "job-abc", body["execution_id"])
	assert.Equal(t, "queued", body["status"])

	assert.Equal(t, "wf-1", api.runner.workflowID)
	assert.Equal(t, "42", api.runner.postID)
	assert.True(t, api.runner.testMode)
}

func TestRunWorkflow_MissingPostID(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/workflows/wf-1/run", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetExecution(t *testing.T) {
	api := newTestAPI(t)
	api.poller.executions["job-abc"] = &jobs.Execution{
		ID:     "job-abc",
		Status: jobs.StatusCompleted,
	}

	resp := api.request(t, http.MethodGet, "/executions/job-abc", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", decodeJSON(t, resp)["status"])

	resp = api.request(t, http.MethodGet, "/executions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotifyTranslationCompleted(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/events/translation-completed", map[string]any{
		"post_id":         "42",
		"target_language": "es",
		"payload":         map[string]any{"category": "news"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, decodeJSON(t, resp)["event_id"])

	require.Len(t, api.publisher.published, 1)
}

func TestNotifyTranslationCompleted_MissingLanguage(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/events/translation-completed", map[string]any{
		"post_id": "42",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, api.publisher.published)
}

func TestAssistantLifecycle(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/assistants/", map[string]any{
		"id":            "tone-checker",
		"name":          "Tone checker",
		"system_prompt": "Check tone.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.request(t, http.MethodGet, "/assistants/tone-checker", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Tone checker", decodeJSON(t, resp)["name"])

	resp = api.request(t, http.MethodGet, "/assistants/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decodeJSON(t, resp)["total_count"])

	resp = api.request(t, http.MethodDelete, "/assistants/tone-checker", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.request(t, http.MethodGet, "/assistants/tone-checker", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveAssistant_InvalidPayload(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodPost, "/assistants/", map[string]any{
		"id": "x", "name": "ab",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)

	resp := api.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decodeJSON(t, resp)["status"])
}
