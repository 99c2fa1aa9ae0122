package event

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pocsync/innhook/matcher"
)

// ErrNoRoute is returned when no rule matches an event.
var ErrNoRoute = errors.New("No matching rule found")

// Rule binds a queue name to a pattern. The first rule whose pattern
// matches an event wins; an empty pattern matches everything, so a final
// empty rule acts as the default route.
type Rule struct {
	Queue   string         `json:"queue" yaml:"queue"`
	Pattern map[string]any `json:"pattern" yaml:"pattern"`
}

// Router is a static, ordered first-match rule engine mapping events to
// pipeline queue names. Routers are immutable after construction and safe
// for concurrent use.
type Router struct {
	rules []Rule
}

// NewRouter creates a router over the given ordered rules.
func NewRouter(rules []Rule) *Router {
	owned := make([]Rule, len(rules))
	copy(owned, rules)
	return &Router{rules: owned}
}

// DefaultRules returns the built-in routing table: the Lazada tenant rule
// followed by the catch-all default queue.
func DefaultRules() []Rule {
	return []Rule{
		{
			Queue: "lazada_pipeline_queue",
			Pattern: map[string]any{
				"source": "webhook",
				"path":   "/api/webhook/lazada",
			},
		},
		{
			Queue:   "inn_pipeline_queue",
			Pattern: map[string]any{},
		},
	}
}

// LoadRules reads an ordered rule list from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load routes %q: %w", path, err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse routes %q: %w", path, err)
	}
	for i, r := range rules {
		if r.Queue == "" {
			return nil, fmt.Errorf("parse routes %q: rule %d has no queue", path, i)
		}
	}
	return rules, nil
}

// Route returns the queue for the first rule matching the event.
func (r *Router) Route(e Event) (string, error) {
	em := e.AsMap()
	for _, rule := range r.rules {
		if matcher.Match(em, rule.Pattern) {
			return rule.Queue, nil
		}
	}
	return "", ErrNoRoute
}

// Queues returns the distinct queue names of all rules, in rule order.
// The pipeline consumer subscribes to each of them.
func (r *Router) Queues() []string {
	seen := make(map[string]bool, len(r.rules))
	queues := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		if !seen[rule.Queue] {
			seen[rule.Queue] = true
			queues = append(queues, rule.Queue)
		}
	}
	return queues
}
