// Package consumer implements the two broker consumers: the event consumer
// that matches events against the pipeline directory and fans out work
// items, and the pipeline consumer that executes them.
package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pocsync/innhook/broker"
	"github.com/pocsync/innhook/event"
	"github.com/pocsync/innhook/matcher"
	"github.com/pocsync/innhook/metrics"
	"github.com/pocsync/innhook/pipeline"
	"github.com/pocsync/innhook/store"
)

// WorkItem is the envelope placed on a pipeline queue for every
// (pipeline, event) match.
type WorkItem struct {
	Pipeline pipeline.Pipeline `json:"pipeline"`
	Context  event.Event       `json:"context"`
}

// EncodeWorkItem serializes a work item for the broker.
func EncodeWorkItem(w WorkItem) ([]byte, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode work item: %w", err)
	}
	return data, nil
}

// DecodeWorkItem reconstructs a work item, including the nested pipeline
// and its steps, from broker bytes.
func DecodeWorkItem(data []byte) (WorkItem, error) {
	var w WorkItem
	if err := json.Unmarshal(data, &w); err != nil {
		return WorkItem{}, fmt.Errorf("decode work item: %w", err)
	}
	return w, nil
}

// EventConsumer pulls raw events from the ingress queue, matches them
// against the pipeline directory, and publishes one work item per match to
// the queue the router picks.
type EventConsumer struct {
	store    store.PipelineStore
	router   *event.Router
	producer broker.MessageProducer
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewEventConsumer creates an event consumer. collector may be nil.
func NewEventConsumer(ps store.PipelineStore, router *event.Router, producer broker.MessageProducer, logger *slog.Logger, collector *metrics.Collector) *EventConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventConsumer{
		store:    ps,
		router:   router,
		producer: producer,
		logger:   logger,
		metrics:  collector,
	}
}

// HandleMessage processes one inbound broker message. The returned error
// marks the message failed in logs; the broker acknowledges either way, so
// malformed events do not loop-redeliver.
func (c *EventConsumer) HandleMessage(message []byte) error {
	ev, err := event.Decode(message)
	if err != nil {
		return fmt.Errorf("event consumer: %w", err)
	}

	pipelines, err := c.store.ListPipelines()
	if err != nil {
		return fmt.Errorf("event consumer: list pipelines: %w", err)
	}

	queue, err := c.router.Route(ev)
	if err != nil {
		if errors.Is(err, event.ErrNoRoute) {
			// Logged and dropped; the inbound message is still acknowledged.
			c.logger.Warn("No route for event", "source", ev.Source, "path", ev.Path)
			return nil
		}
		return fmt.Errorf("event consumer: route: %w", err)
	}

	evMap := ev.AsMap()
	matched := 0
	for _, p := range pipelines {
		if !matcher.Match(evMap, p.Pattern) {
			continue
		}
		matched++

		data, encErr := EncodeWorkItem(WorkItem{Pipeline: p, Context: ev})
		if encErr != nil {
			c.logger.Error("Failed to encode work item", "pipeline", p.Name, "error", encErr)
			continue
		}

		// Best effort per envelope: a publish failure must not block the
		// remaining pipelines.
		pubErr := c.producer.SendMessage(queue, data)
		if c.metrics != nil {
			c.metrics.ObservePublish(queue, pubErr)
		}
		if pubErr != nil {
			c.logger.Error("Failed to publish work item",
				"pipeline", p.Name, "queue", queue, "error", pubErr)
			continue
		}
		c.logger.Info("Work item published", "pipeline", p.Name, "queue", queue)
	}

	c.logger.Info("Event processed",
		"source", ev.Source, "path", ev.Path, "matched", matched, "queue", queue)
	return nil
}
