package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status is the authoring state of a pipeline definition.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Pipeline is a named, ordered list of steps plus the pattern that decides
// whether an event triggers it. Pipelines are value types; mutations return
// new values, which keeps serialization and concurrent reads safe.
type Pipeline struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Pattern     map[string]any `json:"pattern"`
	Steps       []Step         `json:"steps"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// New creates a draft pipeline with normalized step positions.
func New(name string, pattern map[string]any, steps []Step) Pipeline {
	now := time.Now().UTC().Truncate(time.Second)
	if pattern == nil {
		pattern = map[string]any{}
	}
	p := Pipeline{
		ID:        uuid.New().String(),
		Name:      name,
		Pattern:   pattern,
		Steps:     normalizeSteps(steps),
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return p
}

// Validate checks the pipeline's invariants: a name, at least one step,
// contiguous positions starting at zero, and valid steps.
func (p Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline %q: name is required", p.ID)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline %q: at least one step is required", p.Name)
	}

	seen := make(map[int]bool, len(p.Steps))
	for _, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("pipeline %q: %w", p.Name, err)
		}
		if seen[s.Position] {
			return fmt.Errorf("pipeline %q: duplicate step position %d", p.Name, s.Position)
		}
		seen[s.Position] = true
	}
	for i := range p.Steps {
		if !seen[i] {
			return fmt.Errorf("pipeline %q: missing step position %d", p.Name, i)
		}
	}
	return nil
}

// SortedSteps returns the steps ordered by position ascending. The sort is
// stable so invalid duplicate positions still produce a deterministic order.
func (p Pipeline) SortedSteps() []Step {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })
	return steps
}

// WithStatus returns a copy of the pipeline in the given status.
func (p Pipeline) WithStatus(status Status) Pipeline {
	p.Status = status
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	return p
}

// WithStep returns a copy of the pipeline with the step appended at the
// next position.
func (p Pipeline) WithStep(s Step) Pipeline {
	steps := make([]Step, len(p.Steps), len(p.Steps)+1)
	copy(steps, p.Steps)
	s.Position = len(steps)
	p.Steps = append(steps, s)
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	return p
}

// Encode serializes the pipeline to JSON. Timestamps are second-precision
// RFC 3339, so Decode(Encode(p)) == p for pipelines built by New.
func Encode(p Pipeline) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode pipeline %q: %w", p.Name, err)
	}
	return data, nil
}

// Decode reconstructs a pipeline (including nested steps) from JSON.
func Decode(data []byte) (Pipeline, error) {
	var p Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return Pipeline{}, fmt.Errorf("decode pipeline: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// normalizeSteps re-numbers positions to match slice order.
func normalizeSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Position = i
		out[i] = s
	}
	return out
}
