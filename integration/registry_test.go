package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func echoAction(_ context.Context, input map[string]any) (map[string]any, error) {
	return input, nil
}

func testIntegration(name string, actions ...string) Integration {
	in := Integration{
		Name:        name,
		Description: "test integration",
		Actions:     make(map[string]ActionDefinition),
	}
	for _, a := range actions {
		in.Actions[a] = ActionDefinition{
			Name:     a,
			Executor: echoAction,
		}
	}
	return in
}

func TestRegistry_RegisterAndGetAction(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testIntegration("pocsync.http", "request", "get")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for _, action := range []string{"request", "get"} {
		def, err := r.GetAction("pocsync.http", action)
		if err != nil {
			t.Fatalf("expected action %q after register, got: %v", action, err)
		}
		if def.Executor == nil {
			t.Errorf("action %q has nil executor", action)
		}
	}
}

func TestRegistry_GetActionNotFound(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testIntegration("pocsync.log", "info")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := r.GetAction("pocsync.missing", "info")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown integration, got: %v", err)
	}

	_, err = r.GetAction("pocsync.log", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown action, got: %v", err)
	}
}

func TestRegistry_RegisterReplacesByName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testIntegration("pocsync.transform", "map_fields")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register(testIntegration("pocsync.transform", "jq")); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	if _, err := r.GetAction("pocsync.transform", "map_fields"); err == nil {
		t.Error("expected old action to be gone after replace")
	}
	if _, err := r.GetAction("pocsync.transform", "jq"); err != nil {
		t.Errorf("expected new action after replace, got: %v", err)
	}
}

func TestRegistry_RegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Integration{}); err == nil {
		t.Error("expected error for empty integration name")
	}

	in := Integration{
		Name:    "broken",
		Actions: map[string]ActionDefinition{"noop": {Name: "noop"}},
	}
	if err := r.Register(in); err == nil {
		t.Error("expected error for action without executor")
	}
}

func TestRegistry_Listings(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testIntegration("pocsync.log", "info", "error")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register(testIntegration("pocsync.http", "request")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	summaries := r.ListIntegrations()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 integrations, got %d", len(summaries))
	}
	if summaries[0].Name != "pocsync.http" || summaries[1].Name != "pocsync.log" {
		t.Errorf("expected sorted summaries, got %v", summaries)
	}
	if summaries[1].ActionCount != 2 {
		t.Errorf("expected action_count 2 for pocsync.log, got %d", summaries[1].ActionCount)
	}

	actions := r.ListActions("pocsync.log")
	if len(actions) != 2 || actions[0] != "error" || actions[1] != "info" {
		t.Errorf("expected sorted action names, got %v", actions)
	}

	if got := r.ListActions("absent"); len(got) != 0 {
		t.Errorf("expected empty action list for absent integration, got %v", got)
	}
}

func TestRegistry_ConcurrentReadsDuringRegistration(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testIntegration("pocsync.base", "noop")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := r.GetAction("pocsync.base", "noop"); err != nil {
					t.Errorf("read failed during registration: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if err := r.Register(testIntegration("pocsync.base", "noop")); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	wg.Wait()
}

func TestValidateInput(t *testing.T) {
	def := ActionDefinition{
		Name:     "request",
		Executor: echoAction,
		InputSchema: map[string]any{
			"required": []any{"url", "method"},
		},
	}

	err := ValidateInput(def, map[string]any{"url": "http://x", "method": "GET"})
	if err != nil {
		t.Errorf("expected valid input, got: %v", err)
	}

	err = ValidateInput(def, map[string]any{"url": "http://x"})
	if err == nil {
		t.Error("expected error for missing required field")
	}

	// No required list: validation is a no-op.
	if err := ValidateInput(ActionDefinition{Name: "n", Executor: echoAction}, nil); err != nil {
		t.Errorf("expected no-op validation without schema, got: %v", err)
	}
}
