// Package integration defines the action contract and the process-wide
// registry that resolves (integration, action) name pairs to executable
// action definitions.
package integration

import (
	"context"
	"fmt"
)

// ActionFunc is the single function shape every action conforms to. It
// receives one input map and returns an output map or an error. Actions
// must be safe for concurrent invocation.
type ActionFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// ActionDefinition describes one named action within an integration.
// Definitions are immutable once registered.
type ActionDefinition struct {
	Name         string
	Description  string
	Executor     ActionFunc
	InputSchema  map[string]any
	OutputSchema map[string]any
}

// Integration is a namespace of related actions registered under one name.
type Integration struct {
	Name        string
	Description string
	Actions     map[string]ActionDefinition
}

// Summary is a snapshot row returned by Registry.ListIntegrations.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ActionCount int    `json:"action_count"`
}

// ValidateInput checks an input map against an action's input schema. Only
// the "required" list is enforced; schemas without one validate trivially.
func ValidateInput(def ActionDefinition, input map[string]any) error {
	required, ok := def.InputSchema["required"].([]any)
	if !ok {
		if rs, sok := def.InputSchema["required"].([]string); sok {
			for _, field := range rs {
				if _, present := input[field]; !present {
					return fmt.Errorf("missing required field %q", field)
				}
			}
		}
		return nil
	}
	for _, raw := range required {
		field := fmt.Sprint(raw)
		if _, present := input[field]; !present {
			return fmt.Errorf("missing required field %q", field)
		}
	}
	return nil
}
