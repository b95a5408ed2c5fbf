package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to OpenAI and OpenAI-compatible APIs. It implements
// both the chat-completion surface and the assistants thread/run protocol.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type OpenAIOption func(*OpenAIClient)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests use httptest).
func WithHTTPClient(httpClient *http.Client) OpenAIOption {
	return func(c *OpenAIClient) {
		c.httpClient = httpClient
	}
}

func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) *OpenAIClient {
	if model == "" {
		model = "gpt-4o"
	}

	client := &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage     `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []Message, params Parameters) (*Completion, error) {
	model := params.Model
	if model == "" {
		model = c.model
	}

	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	var response chatResponse
	if err := c.post(ctx, "/chat/completions", payload, &response); err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, &ProviderError{Code: ErrCodeAPI, Message: response.Error.Message}
	}

	if len(response.Choices) == 0 {
		return nil, &ProviderError{Code: ErrCodeAPI, Message: "response contained no choices"}
	}

	return &Completion{
		Content: response.Choices[0].Message.Content,
		Model:   response.Model,
		Usage:   response.Usage,
	}, nil
}

// Assistants API types.

type threadResponse struct {
	ID    string    `json:"id"`
	Error *apiError `json:"error,omitempty"`
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
	Usage *Usage    `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type messageListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	var response threadResponse
	if err := c.post(ctx, "/threads", map[string]any{}, &response); err != nil {
		return "", err
	}

	if response.Error != nil {
		return "", &ProviderError{Code: ErrCodeAPI, Message: response.Error.Message}
	}

	return response.ID, nil
}

func (c *OpenAIClient) AddMessage(ctx context.Context, threadID, content string) error {
	payload := map[string]any{"role": RoleUser, "content": content}

	var response threadResponse
	if err := c.post(ctx, "/threads/"+threadID+"/messages", payload, &response); err != nil {
		return err
	}

	if response.Error != nil {
		return &ProviderError{Code: ErrCodeAPI, Message: response.Error.Message}
	}

	return nil
}

func (c *OpenAIClient) RunAssistant(ctx context.Context, threadID, assistantID string) (string, error) {
	payload := map[string]any{"assistant_id": assistantID}

	var response runResponse
	if err := c.post(ctx, "/threads/"+threadID+"/runs", payload, &response); err != nil {
		return "", err
	}

	if response.Error != nil {
		return "", &ProviderError{Code: ErrCodeAPI, Message: response.Error.Message}
	}

	return response.ID, nil
}

func (c *OpenAIClient) PollRunStatus(ctx context.Context, threadID, runID string) (RunStatus, error) {
	var response runResponse
	if err := c.get(ctx, "/threads/"+threadID+"/runs/"+runID, &response); err != nil {
		return RunStatus{}, err
	}

	if response.Error != nil {
		return RunStatus{}, &ProviderError{Code: ErrCodeAPI, Message: response.Error.Message}
	}

	status := RunStatus{Status: response.Status}

	if response.LastError != nil {
		status.ErrorCode = response.LastError.Code
		status.ErrorMsg = response.LastError.Message
	}

	if response.Usage != nil {
		status.Usage = *response.Usage
	}

	return status, nil
}

func (c *OpenAIClient) GetLatestMessage(ctx context.Context, threadID string) (string, error) {
	var response messageListResponse
	if err := c.get(ctx, "/threads/"+threadID+"/messages?order=desc&limit=10", &response); err != nil {
		return "", err
	}

	if response.Error != nil {
		return "", &ProviderError{Code: ErrCodeAPI, Message: response.Error.Message}
	}

	for _, message := range response.Data {
		if message.Role != RoleAssistant {
			continue
		}

		for _, block := range message.Content {
			if block.Type == "text" {
				return block.Text.Value, nil
			}
		}
	}

	return "", &ProviderError{Code: ErrCodeAPI, Message: "thread contains no assistant message"}
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

func (c *OpenAIClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *OpenAIClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &ProviderError{Code: ErrCodeTimeout, Message: err.Error()}
		}

		return &ProviderError{Code: ErrCodeAPI, Message: err.Error()}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		message := string(respBody)

		var wrapper struct {
			Error *apiError `json:"error"`
		}

		if json.Unmarshal(respBody, &wrapper) == nil && wrapper.Error != nil {
			message = wrapper.Error.Message
		}

		return NewProviderError(resp.StatusCode, message, resp.Header)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
