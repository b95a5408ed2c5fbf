package aiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIClient) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewOpenAIClient("test-key", "test-model",
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)

	return server, client
}

func TestChatCompletion_Success(t *testing.T) {
	var gotAuth, gotPath string

	var gotPayload map[string]any

	_, client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})

	completion, err := client.ChatCompletion(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		Parameters{MaxTokens: 100},
	)
	require.NoError(t, err)

	assert.Equal(t, "hello", completion.Content)
	assert.Equal(t, 15, completion.Usage.TotalTokens)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "test-model", gotPayload["model"])
	assert.Equal(t, float64(100), gotPayload["max_tokens"])
}

func TestChatCompletion_ModelOverride(t *testing.T) {
	var gotPayload map[string]any

	_, client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "x"}},
			},
		})
	})

	_, err := client.ChatCompletion(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		Parameters{Model: "other-model"},
	)
	require.NoError(t, err)
	assert.Equal(t, "other-model", gotPayload["model"])
}

func TestChatCompletion_RateLimited(t *testing.T) {
	_, client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded"},
		})
	})

	_, err := client.ChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Parameters{})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 30*time.Second, provErr.RetryAfter)
	assert.Contains(t, provErr.Message, "rate limit exceeded")
}

func TestChatCompletion_AuthError(t *testing.T) {
	_, client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key"},
		})
	})

	_, err := client.ChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Parameters{})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestChatCompletion_NoChoices(t *testing.T) {
	_, client := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.ChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Parameters{})
	assert.Error(t, err)
}

func TestAssistantProtocol(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "thread-1"})
	})

	mux.HandleFunc("POST /threads/thread-1/messages", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "user", payload["role"])
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "msg-1"})
	})

	mux.HandleFunc("POST /threads/thread-1/runs", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "asst-1", payload["assistant_id"])
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "run-1", "status": "queued"})
	})

	mux.HandleFunc("GET /threads/thread-1/runs/run-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "run-1", "status": "completed",
			"usage": map[string]any{"total_tokens": 42},
		})
	})

	mux.HandleFunc("GET /threads/thread-1/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"role": "assistant",
					"content": []map[string]any{
						{"type": "text", "text": map[string]any{"value": "assistant says hi"}},
					},
				},
				{
					"role": "user",
					"content": []map[string]any{
						{"type": "text", "text": map[string]any{"value": "older user message"}},
					},
				},
			},
		})
	})

	_, client := newServerClient(t, mux.ServeHTTP)
	ctx := context.Background()

	threadID, err := client.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread-1", threadID)

	require.NoError(t, client.AddMessage(ctx, threadID, "question"))

	runID, err := client.RunAssistant(ctx, threadID, "asst-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	status, err := client.PollRunStatus(ctx, threadID, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, status.Status)
	assert.True(t, status.Terminal())
	assert.Equal(t, 42, status.Usage.TotalTokens)

	reply, err := client.GetLatestMessage(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, "assistant says hi", reply)
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, RunStatus{Status: RunStatusQueued}.Terminal())
	assert.False(t, RunStatus{Status: RunStatusInProgress}.Terminal())
	assert.True(t, RunStatus{Status: RunStatusFailed}.Terminal())
	assert.True(t, RunStatus{Status: RunStatusCancelled}.Terminal())
	assert.True(t, RunStatus{Status: RunStatusExpired}.Terminal())
}
