package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pocsync/innhook/integration"
)

func registryWith(t *testing.T, actions map[string]integration.ActionFunc) *integration.Registry {
	t.Helper()
	in := integration.Integration{
		Name:    "pocsync.test",
		Actions: make(map[string]integration.ActionDefinition),
	}
	for name, fn := range actions {
		in.Actions[name] = integration.ActionDefinition{Name: name, Executor: fn}
	}
	r := integration.NewRegistry()
	if err := r.Register(in); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return r
}

func TestStepExecutor_ActionNotFound(t *testing.T) {
	exec := NewStepExecutor(integration.NewRegistry(), nil)
	step := NewStep("s", StepTypeAction, "pocsync.http", "request", nil, 0)

	result := exec.Execute(context.Background(), step, nil, nil)
	if !result.Failed() {
		t.Fatal("expected failure for unknown action")
	}
	if result.Error != "Action not found: pocsync.http.request" {
		t.Errorf("unexpected error message: %q", result.Error)
	}
}

func TestStepExecutor_InputAssembly(t *testing.T) {
	var seen map[string]any
	reg := registryWith(t, map[string]integration.ActionFunc{
		"capture": func(_ context.Context, input map[string]any) (map[string]any, error) {
			seen = input
			return map[string]any{}, nil
		},
	})
	exec := NewStepExecutor(reg, nil)

	step := NewStep("s", StepTypeAction, "pocsync.test", "capture", map[string]any{
		"static":   "from-step",
		"user_id":  "static-loses",
		"pipeline": "unrelated",
	}, 0)
	pipelineData := map[string]any{"user_id": float64(123), "name": "John"}
	contextData := map[string]any{"source": "webhook"}

	result := exec.Execute(context.Background(), step, pipelineData, contextData)
	if result.Failed() {
		t.Fatalf("unexpected failure: %v", result.Error)
	}

	// Static inputs survive unless shadowed by upstream data.
	if seen["static"] != "from-step" {
		t.Errorf("static input lost: %v", seen["static"])
	}
	// Upstream top-level keys win over static inputs.
	if seen["user_id"] != float64(123) {
		t.Errorf("expected upstream user_id to win, got %v", seen["user_id"])
	}
	// pipeline_data and context are reachable by name.
	pd, ok := seen["pipeline_data"].(map[string]any)
	if !ok || pd["name"] != "John" {
		t.Errorf("pipeline_data not assembled: %v", seen["pipeline_data"])
	}
	cd, ok := seen["context"].(map[string]any)
	if !ok || cd["source"] != "webhook" {
		t.Errorf("context not assembled: %v", seen["context"])
	}
}

func TestStepExecutor_ActionError(t *testing.T) {
	reg := registryWith(t, map[string]integration.ActionFunc{
		"boom": func(context.Context, map[string]any) (map[string]any, error) {
			return nil, errors.New("Invalid URL: ftp://bad")
		},
	})
	exec := NewStepExecutor(reg, nil)
	step := NewStep("s", StepTypeAction, "pocsync.test", "boom", nil, 0)

	result := exec.Execute(context.Background(), step, nil, nil)
	if !result.Failed() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "Invalid URL") {
		t.Errorf("unexpected error: %q", result.Error)
	}
	if result.FailedAt.IsZero() {
		t.Error("failure result missing failed_at")
	}
}

func TestStepExecutor_PanicContainment(t *testing.T) {
	reg := registryWith(t, map[string]integration.ActionFunc{
		"crash": func(context.Context, map[string]any) (map[string]any, error) {
			var zero int
			return map[string]any{"v": 1 / zero}, nil
		},
	})
	exec := NewStepExecutor(reg, nil)
	step := NewStep("s", StepTypeAction, "pocsync.test", "crash", nil, 0)

	result := exec.Execute(context.Background(), step, nil, nil)
	if !result.Failed() {
		t.Fatal("expected failure from panicking action")
	}
	if !strings.Contains(result.Error, "Action executor crashed") {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestStepExecutor_RedactsSensitiveInput(t *testing.T) {
	reg := registryWith(t, map[string]integration.ActionFunc{
		"fail": func(context.Context, map[string]any) (map[string]any, error) {
			return nil, errors.New("upstream rejected request")
		},
	})
	exec := NewStepExecutor(reg, nil)
	step := NewStep("s", StepTypeAction, "pocsync.test", "fail", map[string]any{
		"api_token":     "tok-123",
		"Password":      "hunter2",
		"client_secret": "s3cret",
		"ssh_key":       "rsa",
		"authorization": "Bearer abc",
		"order_id":      "12345",
	}, 0)

	result := exec.Execute(context.Background(), step, nil, nil)
	if !result.Failed() {
		t.Fatal("expected failure")
	}
	for _, k := range []string{"api_token", "Password", "client_secret", "ssh_key", "authorization"} {
		if result.InputData[k] != "[REDACTED]" {
			t.Errorf("key %q not redacted: %v", k, result.InputData[k])
		}
	}
	if result.InputData["order_id"] != "12345" {
		t.Errorf("non-sensitive key altered: %v", result.InputData["order_id"])
	}
}

func TestStepExecutor_NilOutputIsEmptySuccess(t *testing.T) {
	reg := registryWith(t, map[string]integration.ActionFunc{
		"quiet": func(context.Context, map[string]any) (map[string]any, error) {
			return nil, nil
		},
	})
	exec := NewStepExecutor(reg, nil)
	step := NewStep("s", StepTypeAction, "pocsync.test", "quiet", nil, 0)

	result := exec.Execute(context.Background(), step, nil, nil)
	if result.Failed() {
		t.Fatalf("unexpected failure: %v", result.Error)
	}
	if result.Output == nil || len(result.Output) != 0 {
		t.Errorf("expected empty output map, got %v", result.Output)
	}
}

func TestStepExecutor_ValidateInput(t *testing.T) {
	r := integration.NewRegistry()
	err := r.Register(integration.Integration{
		Name: "pocsync.test",
		Actions: map[string]integration.ActionDefinition{
			"strict": {
				Name: "strict",
				Executor: func(context.Context, map[string]any) (map[string]any, error) {
					return nil, nil
				},
				InputSchema: map[string]any{"required": []any{"url"}},
			},
		},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	exec := NewStepExecutor(r, nil)
	step := NewStep("s", StepTypeAction, "pocsync.test", "strict", nil, 0)

	if err := exec.ValidateInput(step, map[string]any{"url": "http://x"}); err != nil {
		t.Errorf("expected valid input, got: %v", err)
	}
	if err := exec.ValidateInput(step, map[string]any{}); err == nil {
		t.Error("expected error for missing required field")
	}
}
