// Package pipeline defines the pipeline and step value types, their JSON
// codec, and the executors that run them.
package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"maps"
)

// StepType classifies a step's role within a pipeline.
type StepType string

const (
	StepTypeTrigger StepType = "trigger"
	StepTypeAction  StepType = "action"
	StepTypeOutput  StepType = "output"
)

// Step binds a position in a pipeline to an action reference plus the
// static inputs authored into the pipeline definition. Steps are value
// types; updates return new values.
type Step struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            StepType       `json:"type"`
	IntegrationName string         `json:"integration_name"`
	ActionName      string         `json:"action_name"`
	InputMap        map[string]any `json:"input_map"`
	Position        int            `json:"position"`
}

// NewStep creates a step with a fresh 16-character identifier.
func NewStep(name string, stepType StepType, integrationName, actionName string, inputMap map[string]any, position int) Step {
	if inputMap == nil {
		inputMap = map[string]any{}
	}
	return Step{
		ID:              newStepID(),
		Name:            name,
		Type:            stepType,
		IntegrationName: integrationName,
		ActionName:      actionName,
		InputMap:        inputMap,
		Position:        position,
	}
}

// Validate checks the step's structural invariants.
func (s Step) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("step %q: name is required", s.ID)
	}
	switch s.Type {
	case StepTypeTrigger, StepTypeAction, StepTypeOutput:
	default:
		return fmt.Errorf("step %q: unknown type %q", s.Name, s.Type)
	}
	if s.IntegrationName == "" {
		return fmt.Errorf("step %q: integration_name is required", s.Name)
	}
	if s.ActionName == "" {
		return fmt.Errorf("step %q: action_name is required", s.Name)
	}
	if s.Position < 0 {
		return fmt.Errorf("step %q: position %d is negative", s.Name, s.Position)
	}
	return nil
}

// WithInput returns a copy of the step with key set in its input map.
func (s Step) WithInput(key string, value any) Step {
	in := make(map[string]any, len(s.InputMap)+1)
	maps.Copy(in, s.InputMap)
	in[key] = value
	s.InputMap = in
	return s
}

// WithPosition returns a copy of the step at the given position.
func (s Step) WithPosition(position int) Step {
	s.Position = position
	return s
}

// ActionRef returns the "<integration>.<action>" reference for logs and
// error messages.
func (s Step) ActionRef() string {
	return s.IntegrationName + "." + s.ActionName
}

// newStepID returns 8 random bytes hex-encoded: a 16-character identifier.
func newStepID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("step id: %v", err))
	}
	return hex.EncodeToString(b[:])
}
