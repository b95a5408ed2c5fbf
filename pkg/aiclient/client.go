// Package aiclient defines the engine's contract with AI providers: a
// stateless chat-completion call and a stateful thread/run protocol for
// provider-hosted assistants.
package aiclient

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Parameters tune a single completion request. Zero values mean provider
// defaults.
type Parameters struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a successful chat-completion result.
type Completion struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// ChatClient performs stateless chat completions.
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []Message, params Parameters) (*Completion, error)
}

// Run statuses surfaced by the assistant thread/run protocol.
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
	RunStatusExpired    = "expired"
)

// RunStatus is one poll of an assistant run.
type RunStatus struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_message,omitempty"`
	Usage     Usage  `json:"usage"`
}

// Terminal reports whether the run reached a final state.
func (s RunStatus) Terminal() bool {
	switch s.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	}

	return false
}

// AssistantClient drives provider-hosted assistants: create a thread, add the
// user message, start a run, poll it, then fetch the latest assistant reply.
type AssistantClient interface {
	CreateThread(ctx context.Context) (threadID string, err error)
	AddMessage(ctx context.Context, threadID, content string) error
	RunAssistant(ctx context.Context, threadID, assistantID string) (runID string, err error)
	PollRunStatus(ctx context.Context, threadID, runID string) (RunStatus, error)
	GetLatestMessage(ctx context.Context, threadID string) (string, error)
}

// Client bundles both provider surfaces.
type Client interface {
	ChatClient
	AssistantClient
}
