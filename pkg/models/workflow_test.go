package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriggerCondition_Matches(t *testing.T) {
	payload := map[string]any{
		"category": "breaking news",
		"count":    3,
	}

	cases := []struct {
		name      string
		condition TriggerCondition
		want      bool
	}{
		{"equals match", TriggerCondition{Field: "category", Operator: "equals", Value: "breaking news"}, true},
		{"equals mismatch", TriggerCondition{Field: "category", Operator: "equals", Value: "sports"}, false},
		{"not_equals", TriggerCondition{Field: "category", Operator: "not_equals", Value: "sports"}, true},
		{"contains", TriggerCondition{Field: "category", Operator: "contains", Value: "news"}, true},
		{"contains empty value never matches", TriggerCondition{Field: "category", Operator: "contains", Value: ""}, false},
		{"missing field", TriggerCondition{Field: "tag", Operator: "equals", Value: "x"}, false},
		{"non-string value", TriggerCondition{Field: "count", Operator: "equals", Value: "3"}, false},
		{"unknown operator", TriggerCondition{Field: "category", Operator: "matches", Value: "news"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.condition.Matches(payload))
		})
	}
}
