// Package models defines the core domain models for AI content workflows.
package models

import (
	"strings"
	"time"
)

// Workflow is a named, ordered list of AI steps bound to one content language.
type Workflow struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"            validate:"required,min=3"`
	Description     string            `json:"description,omitempty"`
	Language        string            `json:"language"        validate:"required"`
	Enabled         bool              `json:"enabled"`
	Triggers        *WorkflowTriggers `json:"triggers,omitempty"`
	AttributionUser string            `json:"attribution_user,omitempty"`
	Steps           []*WorkflowStep   `json:"steps"           validate:"required,min=1,dive"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// WorkflowTriggers controls when a workflow is started.
type WorkflowTriggers struct {
	OnTranslationComplete bool               `json:"on_translation_complete"`
	ManualOnly            bool               `json:"manual_only"`
	Conditions            []TriggerCondition `json:"conditions,omitempty"`
}

// TriggerCondition is a single field/operator/value predicate evaluated
// against the trigger payload before a workflow is started.
type TriggerCondition struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required,oneof=equals not_equals contains"`
	Value    string `json:"value"`
}

// Matches evaluates the condition against a flat payload.
func (c TriggerCondition) Matches(payload map[string]any) bool {
	raw, ok := payload[c.Field]
	if !ok {
		return false
	}

	value, ok := raw.(string)
	if !ok {
		return false
	}

	switch c.Operator {
	case "equals":
		return value == c.Value
	case "not_equals":
		return value != c.Value
	case "contains":
		return c.Value != "" && strings.Contains(value, c.Value)
	default:
		return false
	}
}
