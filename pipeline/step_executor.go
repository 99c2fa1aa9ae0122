package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/pocsync/innhook/integration"
)

// sensitiveKeySubstrings marks input keys whose values are redacted before
// being attached to a failure result.
var sensitiveKeySubstrings = []string{"password", "token", "secret", "key", "auth"}

// StepExecutor resolves a step's action, assembles its input, invokes it,
// and wraps the outcome as a StepResult. A panic inside the action is
// contained and converted to a failure result.
type StepExecutor struct {
	registry *integration.Registry
	logger   *slog.Logger
}

// NewStepExecutor creates a step executor backed by the given registry.
func NewStepExecutor(registry *integration.Registry, logger *slog.Logger) *StepExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepExecutor{registry: registry, logger: logger}
}

// Execute runs one step. The returned result is the failure variant when
// the action is unknown, returns an error, or panics; the caller inspects
// result.Failed().
func (e *StepExecutor) Execute(ctx context.Context, step Step, pipelineData, contextData map[string]any) StepResult {
	def, err := e.registry.GetAction(step.IntegrationName, step.ActionName)
	if err != nil {
		return e.failure(step, nil, 0, fmt.Sprintf("Action not found: %s", step.ActionRef()))
	}

	input := assembleInput(step, pipelineData, contextData)

	started := time.Now()
	output, err := e.invoke(ctx, def, input)
	elapsed := time.Since(started)

	if err != nil {
		e.logger.Error("Step action failed",
			"step", step.Name, "action", step.ActionRef(), "error", err, "elapsed", elapsed)
		return e.failure(step, input, elapsed.Milliseconds(), err.Error())
	}

	if output == nil {
		output = map[string]any{}
	}
	return StepResult{
		StepID:      step.ID,
		StepName:    step.Name,
		StepType:    step.Type,
		Integration: step.IntegrationName,
		Action:      step.ActionName,
		Status:      StepSuccess,
		Output:      output,
		DurationMS:  elapsed.Milliseconds(),
		ExecutedAt:  time.Now().UTC(),
	}
}

// ValidateInput checks a step's assembled input against the action's input
// schema. It is a separate operation: Execute does not validate.
func (e *StepExecutor) ValidateInput(step Step, input map[string]any) error {
	def, err := e.registry.GetAction(step.IntegrationName, step.ActionName)
	if err != nil {
		return fmt.Errorf("validate step %q: %w", step.Name, err)
	}
	return integration.ValidateInput(def, input)
}

// invoke calls the action, converting a panic into an error so a crashing
// action cannot take down the worker.
func (e *StepExecutor) invoke(ctx context.Context, def integration.ActionDefinition, input map[string]any) (output map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			output = nil
			err = fmt.Errorf("Action executor crashed: %v", rec)
		}
	}()
	return def.Executor(ctx, input)
}

// assembleInput builds the action input with a deterministic merge order,
// later keys winning:
//  1. the step's static input map,
//  2. pipeline_data and context under their own names,
//  3. the top-level keys of pipeline_data, so actions can read upstream
//     fields directly.
func assembleInput(step Step, pipelineData, contextData map[string]any) map[string]any {
	input := make(map[string]any, len(step.InputMap)+len(pipelineData)+2)
	maps.Copy(input, step.InputMap)

	input["pipeline_data"] = pipelineData
	input["context"] = contextData

	if len(pipelineData) > 0 {
		maps.Copy(input, pipelineData)
	}
	return input
}

func (e *StepExecutor) failure(step Step, input map[string]any, durationMS int64, errMsg string) StepResult {
	return StepResult{
		StepID:      step.ID,
		StepName:    step.Name,
		StepType:    step.Type,
		Integration: step.IntegrationName,
		Action:      step.ActionName,
		Status:      StepFailed,
		Error:       errMsg,
		DurationMS:  durationMS,
		FailedAt:    time.Now().UTC(),
		InputData:   redact(input),
	}
}

// redact replaces the value of any top-level key whose lowercased name
// contains a sensitive substring with "[REDACTED]".
func redact(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		if isSensitiveKey(k) {
			out[k] = "[REDACTED]"
		} else {
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range sensitiveKeySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
