// Package store provides the pipeline directory: the read-mostly
// collection of pipeline definitions the consumers and ingress match
// events against.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/pocsync/innhook/pipeline"
)

// ErrNotFound is returned when a pipeline id is not in the directory.
var ErrNotFound = errors.New("pipeline not found")

// PipelineStore is the directory interface the core depends on. Consumers
// only read; Save/Delete exist for seeding and operational tooling.
type PipelineStore interface {
	ListPipelines() ([]pipeline.Pipeline, error)
	GetPipeline(id string) (pipeline.Pipeline, error)
	SavePipeline(p pipeline.Pipeline) error
	DeletePipeline(id string) error
}

// MemoryStore keeps pipelines in a map. Pipelines are value types, so
// returned copies are safe to hand out concurrently.
type MemoryStore struct {
	mu        sync.RWMutex
	pipelines map[string]pipeline.Pipeline
}

// NewMemoryStore creates an empty in-memory directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pipelines: make(map[string]pipeline.Pipeline)}
}

// ListPipelines returns all pipelines sorted by name.
func (s *MemoryStore) ListPipelines() ([]pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pipeline.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetPipeline returns the pipeline with the given id.
func (s *MemoryStore) GetPipeline(id string) (pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[id]
	if !ok {
		return pipeline.Pipeline{}, ErrNotFound
	}
	return p, nil
}

// SavePipeline inserts or replaces a pipeline by id.
func (s *MemoryStore) SavePipeline(p pipeline.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[p.ID] = p
	return nil
}

// DeletePipeline removes a pipeline by id.
func (s *MemoryStore) DeletePipeline(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pipelines[id]; !ok {
		return ErrNotFound
	}
	delete(s.pipelines, id)
	return nil
}
