package pipeline

import (
	"context"
	"log/slog"
	"maps"

	"github.com/pocsync/innhook/integration"
)

// Executor drives a pipeline's steps in order, threading each step's output
// into the next and accumulating per-step results into an execution record.
// It is synchronous: Execute returns only when the run is terminal.
type Executor struct {
	steps  *StepExecutor
	logger *slog.Logger
}

// NewExecutor creates a pipeline executor backed by the given registry.
func NewExecutor(registry *integration.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		steps:  NewStepExecutor(registry, logger),
		logger: logger,
	}
}

// Execute runs the pipeline against an initial context and returns the
// execution record. A step failure terminates the run; failures never
// propagate as errors to the caller, they materialize in the record.
//
// Cancellation is cooperative: ctx cancellation and ExecutionRecord.Cancel
// are both observed between steps, never mid-step.
func (e *Executor) Execute(ctx context.Context, p Pipeline, initialContext map[string]any) *ExecutionRecord {
	record := NewExecutionRecord(p.ID, cloneMap(initialContext))
	record.start()

	if err := p.Validate(); err != nil {
		e.logger.Error("Pipeline validation failed", "pipeline", p.Name, "error", err)
		record.finish(ExecutionFailed, "Pipeline validation failed")
		return record
	}

	e.logger.Info("Pipeline started",
		"pipeline", p.Name, "execution_id", record.ExecutionID, "steps", len(p.Steps))

	steps := p.SortedSteps()
	var priorOutput map[string]any

	for i, step := range steps {
		select {
		case <-ctx.Done():
			record.Cancel()
			e.logger.Warn("Pipeline cancelled", "pipeline", p.Name, "execution_id", record.ExecutionID)
			return record
		default:
		}
		if record.Cancelled() {
			e.logger.Warn("Pipeline cancelled", "pipeline", p.Name, "execution_id", record.ExecutionID)
			return record
		}

		pipelineData := e.stepInput(i, step, priorOutput, record)

		result := e.steps.Execute(ctx, step, pipelineData, record.Context)
		record.appendResult(result)

		if result.Failed() {
			e.logger.Error("Step failed",
				"pipeline", p.Name, "step", step.Name, "action", step.ActionRef(), "error", result.Error)
			record.finish(ExecutionFailed, result.Error)
			return record
		}

		e.logger.Info("Step completed",
			"pipeline", p.Name, "step", step.Name, "duration_ms", result.DurationMS)

		mergeContext(record, result.Output)
		priorOutput = result.Output
	}

	record.finish(ExecutionSuccess, "")
	e.logger.Info("Pipeline completed", "pipeline", p.Name, "execution_id", record.ExecutionID)
	return record
}

// stepInput selects the data flowing into a step: the initial context for
// the first step, the prior step's output afterwards.
func (e *Executor) stepInput(index int, step Step, priorOutput map[string]any, record *ExecutionRecord) map[string]any {
	if index == 0 {
		return record.Context
	}
	if priorOutput == nil {
		e.logger.Warn("No output from prior step, passing empty input", "step", step.Name)
		return map[string]any{}
	}
	return priorOutput
}

// mergeContext folds a step's context contribution into the accumulated
// execution context. Steps export context either as an output key named
// "context" or nested under output["output"]["context"].
func mergeContext(record *ExecutionRecord, output map[string]any) {
	contribution, ok := output["context"].(map[string]any)
	if !ok {
		if inner, innerOK := output["output"].(map[string]any); innerOK {
			contribution, ok = inner["context"].(map[string]any)
		}
	}
	if !ok || len(contribution) == 0 {
		return
	}
	record.mu.Lock()
	maps.Copy(record.Context, contribution)
	record.mu.Unlock()
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}
