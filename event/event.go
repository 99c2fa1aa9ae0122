// Package event defines the ingress event envelope and the rule-based
// router that assigns events to pipeline queues.
package event

import (
	"encoding/json"
	"fmt"
)

// Event is the envelope produced by the ingress for every inbound HTTP
// request. It is what pipeline patterns are matched against.
type Event struct {
	Source  string         `json:"source"`
	Path    string         `json:"path"`
	Method  string         `json:"method,omitempty"`
	Params  map[string]any `json:"params"`
	Headers map[string]any `json:"headers"`
}

// New creates an event with non-nil param and header maps.
func New(source, path, method string) Event {
	return Event{
		Source:  source,
		Path:    path,
		Method:  method,
		Params:  map[string]any{},
		Headers: map[string]any{},
	}
}

// Encode serializes the event as UTF-8 JSON for the broker.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Decode parses broker bytes back into an event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// AsMap returns the event as the generic map form the matcher operates on.
func (e Event) AsMap() map[string]any {
	return map[string]any{
		"source":  e.Source,
		"path":    e.Path,
		"method":  e.Method,
		"params":  e.Params,
		"headers": e.Headers,
	}
}
