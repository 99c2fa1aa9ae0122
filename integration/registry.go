package integration

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when an integration or action is not registered.
var ErrNotFound = errors.New("not found")

// Registry maps (integration name, action name) pairs to action definitions.
// Reads are lock-shared and O(1); registrations are rare (startup) and
// serialize behind the write lock. Register replaces by name, so it is
// idempotent for identical definitions.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]Integration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		integrations: make(map[string]Integration),
	}
}

// Register stores an integration under its name, replacing any previous
// registration with the same name. The integration's action map is copied
// so later mutation by the caller cannot affect the registry.
func (r *Registry) Register(in Integration) error {
	if in.Name == "" {
		return fmt.Errorf("register integration: name is required")
	}

	actions := make(map[string]ActionDefinition, len(in.Actions))
	for name, def := range in.Actions {
		if def.Executor == nil {
			return fmt.Errorf("register integration %q: action %q has no executor", in.Name, name)
		}
		actions[name] = def
	}
	in.Actions = actions

	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrations[in.Name] = in
	return nil
}

// GetAction resolves an action by integration and action name.
func (r *Registry) GetAction(integrationName, actionName string) (ActionDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.integrations[integrationName]
	if !ok {
		return ActionDefinition{}, fmt.Errorf("integration %q: %w", integrationName, ErrNotFound)
	}
	def, ok := in.Actions[actionName]
	if !ok {
		return ActionDefinition{}, fmt.Errorf("action %q.%q: %w", integrationName, actionName, ErrNotFound)
	}
	return def, nil
}

// GetIntegration returns the full definition registered under name.
func (r *Registry) GetIntegration(name string) (Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.integrations[name]
	if !ok {
		return Integration{}, fmt.Errorf("integration %q: %w", name, ErrNotFound)
	}
	return in, nil
}

// ListIntegrations returns a snapshot of all registered integrations,
// sorted by name for stable output.
func (r *Registry) ListIntegrations() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Summary, 0, len(r.integrations))
	for _, in := range r.integrations {
		out = append(out, Summary{
			Name:        in.Name,
			Description: in.Description,
			ActionCount: len(in.Actions),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListActions returns a snapshot of the action names in an integration,
// sorted; it is empty when the integration is absent.
func (r *Registry) ListActions(integrationName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.integrations[integrationName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(in.Actions))
	for name := range in.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
