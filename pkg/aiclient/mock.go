package aiclient

import (
	"context"
	"sync"
)

// MockClient is a scripted in-memory Client for tests and dry runs against a
// stubbed provider. Responses are consumed in order; the last one repeats.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	index     int

	// Err, when set, is returned from every call.
	Err error

	// RunStatuses scripts PollRunStatus; consumed in order, last repeats.
	RunStatuses []RunStatus

	// Requests records every chat-completion request for assertions.
	Requests [][]Message

	runPolls int
}

func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

func (m *MockClient) next() string {
	if len(m.responses) == 0 {
		return ""
	}

	response := m.responses[m.index]
	if m.index < len(m.responses)-1 {
		m.index++
	}

	return response
}

func (m *MockClient) ChatCompletion(_ context.Context, messages []Message, params Parameters) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	m.Requests = append(m.Requests, messages)

	return &Completion{
		Content: m.next(),
		Model:   params.Model,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (m *MockClient) CreateThread(context.Context) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}

	return "thread-mock", nil
}

func (m *MockClient) AddMessage(context.Context, string, string) error {
	return m.Err
}

func (m *MockClient) RunAssistant(context.Context, string, string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}

	return "run-mock", nil
}

func (m *MockClient) PollRunStatus(context.Context, string, string) (RunStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return RunStatus{}, m.Err
	}

	if len(m.RunStatuses) == 0 {
		return RunStatus{Status: RunStatusCompleted}, nil
	}

	status := m.RunStatuses[m.runPolls]
	if m.runPolls < len(m.RunStatuses)-1 {
		m.runPolls++
	}

	return status, nil
}

func (m *MockClient) GetLatestMessage(context.Context, string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}

	return m.next(), nil
}
