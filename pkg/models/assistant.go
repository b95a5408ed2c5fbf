package models

import "time"

// ManagedAssistant is a locally stored assistant definition. A managed
// assistant step resolves one of these by id and dispatches it like a custom
// prompt.
type ManagedAssistant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"          validate:"required,min=3"`
	Description  string    `json:"description,omitempty"`
	SystemPrompt string    `json:"system_prompt" validate:"required"`
	Model        string    `json:"model,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
