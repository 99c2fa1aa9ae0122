package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of one pipeline run.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// StepResultStatus discriminates step results.
type StepResultStatus string

const (
	StepSuccess StepResultStatus = "success"
	StepFailed  StepResultStatus = "failed"
)

// StepResult records the outcome of one step invocation. Success results
// carry Output and ExecutedAt; failure results carry Error, FailedAt and
// the redacted InputData. The identifying fields are shared so consumers
// can discriminate on the presence of Error.
type StepResult struct {
	StepID      string           `json:"step_id"`
	StepName    string           `json:"step_name"`
	StepType    StepType         `json:"step_type"`
	Integration string           `json:"integration"`
	Action      string           `json:"action"`
	Status      StepResultStatus `json:"status"`
	Output      map[string]any   `json:"output,omitempty"`
	Error       string           `json:"error,omitempty"`
	DurationMS  int64            `json:"duration_ms"`
	ExecutedAt  time.Time        `json:"executed_at,omitzero"`
	FailedAt    time.Time        `json:"failed_at,omitzero"`
	InputData   map[string]any   `json:"input_data,omitempty"`
}

// Failed reports whether the result is the failure variant.
func (r StepResult) Failed() bool {
	return r.Status == StepFailed
}

// ExecutionRecord is the in-memory result of one pipeline run. It is owned
// by the executor during the run and returned to the caller afterwards.
// Status transitions are guarded so Cancel can be called from another
// goroutine while the run is in flight.
type ExecutionRecord struct {
	ExecutionID string          `json:"execution_id"`
	PipelineID  string          `json:"pipeline_id"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at,omitzero"`
	CompletedAt time.Time       `json:"completed_at,omitzero"`
	Context     map[string]any  `json:"context"`
	Results     []StepResult    `json:"results"`
	Error       string          `json:"error,omitempty"`

	mu sync.Mutex
}

// NewExecutionRecord creates a pending record for a pipeline run.
func NewExecutionRecord(pipelineID string, context map[string]any) *ExecutionRecord {
	if context == nil {
		context = map[string]any{}
	}
	return &ExecutionRecord{
		ExecutionID: uuid.New().String(),
		PipelineID:  pipelineID,
		Status:      ExecutionPending,
		Context:     context,
		Results:     []StepResult{},
	}
}

// Cancel transitions a running record to cancelled. On any other status it
// is a no-op. Cancellation is cooperative: an in-flight step finishes; the
// executor observes the cancelled status before starting the next step.
func (r *ExecutionRecord) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status != ExecutionRunning {
		return false
	}
	r.Status = ExecutionCancelled
	r.Error = "Execution cancelled by user"
	r.CompletedAt = time.Now().UTC()
	return true
}

// Succeeded reports whether the run completed all steps.
func (r *ExecutionRecord) Succeeded() bool { return r.status() == ExecutionSuccess }

// Failed reports whether the run terminated on a failure.
func (r *ExecutionRecord) Failed() bool { return r.status() == ExecutionFailed }

// Cancelled reports whether the run was cancelled.
func (r *ExecutionRecord) Cancelled() bool { return r.status() == ExecutionCancelled }

// DurationMS returns the wall-clock duration of the run in milliseconds,
// or 0 when the run has not completed.
func (r *ExecutionRecord) DurationMS() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt).Milliseconds()
}

// FinalOutput returns the output of the last successful step, or nil when
// no step succeeded.
func (r *ExecutionRecord) FinalOutput() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Results) - 1; i >= 0; i-- {
		if !r.Results[i].Failed() {
			return r.Results[i].Output
		}
	}
	return nil
}

// AllOutputs returns the outputs of all successful steps in order.
func (r *ExecutionRecord) AllOutputs() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	outputs := make([]map[string]any, 0, len(r.Results))
	for _, res := range r.Results {
		if !res.Failed() {
			outputs = append(outputs, res.Output)
		}
	}
	return outputs
}

// FailedSteps returns the failure results of the run.
func (r *ExecutionRecord) FailedSteps() []StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed []StepResult
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Summary returns a small stats map suitable for logging.
func (r *ExecutionRecord) Summary() map[string]any {
	r.mu.Lock()
	succeeded := 0
	failed := 0
	for _, res := range r.Results {
		if res.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	summary := map[string]any{
		"execution_id":    r.ExecutionID,
		"pipeline_id":     r.PipelineID,
		"status":          r.Status,
		"steps_total":     len(r.Results),
		"steps_succeeded": succeeded,
		"steps_failed":    failed,
	}
	if r.Error != "" {
		summary["error"] = r.Error
	}
	r.mu.Unlock()

	summary["duration_ms"] = r.DurationMS()
	return summary
}

func (r *ExecutionRecord) status() ExecutionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status
}

// start marks the record running.
func (r *ExecutionRecord) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = ExecutionRunning
	r.StartedAt = time.Now().UTC()
}

// finish transitions the record to a terminal status unless it was already
// cancelled.
func (r *ExecutionRecord) finish(status ExecutionStatus, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status == ExecutionCancelled {
		return
	}
	r.Status = status
	r.Error = errMsg
	r.CompletedAt = time.Now().UTC()
}

// appendResult records a step result.
func (r *ExecutionRecord) appendResult(res StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, res)
}
