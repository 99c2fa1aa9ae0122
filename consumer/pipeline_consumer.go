package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocsync/innhook/metrics"
	"github.com/pocsync/innhook/pipeline"
)

// PipelineConsumer pulls work items from pipeline queues and runs them
// through the pipeline executor to completion on the worker that pulled
// them. Execution failures are observable only through logs and metrics;
// the broker message is acknowledged regardless of outcome.
type PipelineConsumer struct {
	executor *pipeline.Executor
	logger   *slog.Logger
	metrics  *metrics.Collector
	baseCtx  context.Context
}

// NewPipelineConsumer creates a pipeline consumer. Executions inherit
// baseCtx, so cancelling it stops runs between steps. collector may be nil.
func NewPipelineConsumer(baseCtx context.Context, executor *pipeline.Executor, logger *slog.Logger, collector *metrics.Collector) *PipelineConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &PipelineConsumer{
		executor: executor,
		logger:   logger,
		metrics:  collector,
		baseCtx:  baseCtx,
	}
}

// HandleMessage decodes one work item and executes its pipeline. Only
// decode failures return an error; execution failures are terminal in the
// record, not in the delivery.
func (c *PipelineConsumer) HandleMessage(message []byte) error {
	item, err := DecodeWorkItem(message)
	if err != nil {
		return fmt.Errorf("pipeline consumer: %w", err)
	}

	record := c.executor.Execute(c.baseCtx, item.Pipeline, item.Context.AsMap())

	if c.metrics != nil {
		c.metrics.ObserveExecution(item.Pipeline.Name, string(record.Status))
		for _, res := range record.Results {
			c.metrics.ObserveStep(res.Integration, res.Action, time.Duration(res.DurationMS)*time.Millisecond)
		}
	}

	if record.Failed() {
		c.logger.Error("Pipeline execution failed", "summary", record.Summary())
	} else {
		c.logger.Info("Pipeline execution finished", "summary", record.Summary())
	}
	return nil
}
