package consumer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pocsync/innhook/event"
	"github.com/pocsync/innhook/integration"
	"github.com/pocsync/innhook/pipeline"
	"github.com/pocsync/innhook/store"
)

// capturingProducer records publishes and can fail selected pipelines.
type capturingProducer struct {
	published map[string][][]byte
	failOn    func(queue string, message []byte) error
}

func newCapturingProducer() *capturingProducer {
	return &capturingProducer{published: make(map[string][][]byte)}
}

func (p *capturingProducer) SendMessage(queue string, message []byte) error {
	if p.failOn != nil {
		if err := p.failOn(queue, message); err != nil {
			return err
		}
	}
	p.published[queue] = append(p.published[queue], message)
	return nil
}

func directoryWith(t *testing.T, pipelines ...pipeline.Pipeline) store.PipelineStore {
	t.Helper()
	s := store.NewMemoryStore()
	for _, p := range pipelines {
		if err := s.SavePipeline(p); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return s
}

func tenantPipeline(name, path string) pipeline.Pipeline {
	steps := []pipeline.Step{
		pipeline.NewStep("trigger", pipeline.StepTypeTrigger, "pocsync.builtin", "pocsync.webhook.receive", nil, 0),
	}
	return pipeline.New(name, map[string]any{
		"source": "webhook",
		"path":   path,
	}, steps)
}

func TestEventConsumer_FanOutToMatchedPipelines(t *testing.T) {
	lazada := tenantPipeline("lazada-orders", "/api/webhook/lazada")
	shopee := tenantPipeline("shopee-orders", "/api/webhook/shopee")
	producer := newCapturingProducer()
	c := NewEventConsumer(
		directoryWith(t, lazada, shopee),
		event.NewRouter(event.DefaultRules()),
		producer, nil, nil,
	)

	ev := event.New("webhook", "/api/webhook/lazada", "POST")
	data, err := event.Encode(ev)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}

	if err := c.HandleMessage(data); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	items := producer.published["lazada_pipeline_queue"]
	if len(items) != 1 {
		t.Fatalf("expected 1 work item on lazada queue, got %d", len(items))
	}
	for queue, msgs := range producer.published {
		if queue != "lazada_pipeline_queue" && len(msgs) != 0 {
			t.Errorf("unexpected publishes on %q: %d", queue, len(msgs))
		}
	}

	item, err := DecodeWorkItem(items[0])
	if err != nil {
		t.Fatalf("decode work item: %v", err)
	}
	if item.Pipeline.Name != "lazada-orders" {
		t.Errorf("wrong pipeline in work item: %q", item.Pipeline.Name)
	}
	if item.Context.Path != "/api/webhook/lazada" {
		t.Errorf("wrong context in work item: %+v", item.Context)
	}
}

func TestEventConsumer_MalformedMessage(t *testing.T) {
	c := NewEventConsumer(directoryWith(t), event.NewRouter(event.DefaultRules()), newCapturingProducer(), nil, nil)
	if err := c.HandleMessage([]byte("{broken")); err == nil {
		t.Error("expected decode error for malformed message")
	}
}

func TestEventConsumer_NoRouteIsDropped(t *testing.T) {
	producer := newCapturingProducer()
	router := event.NewRouter([]event.Rule{
		{Queue: "only", Pattern: map[string]any{"source": "scheduler"}},
	})
	c := NewEventConsumer(directoryWith(t, tenantPipeline("p", "/x")), router, producer, nil, nil)

	data, _ := event.Encode(event.New("webhook", "/x", "POST"))
	// Ack + log: no error so the broker message is acknowledged and dropped.
	if err := c.HandleMessage(data); err != nil {
		t.Errorf("expected nil error for unroutable event, got %v", err)
	}
	if len(producer.published) != 0 {
		t.Errorf("nothing should be published without a route: %v", producer.published)
	}
}

func TestEventConsumer_PublishFailureDoesNotBlockOthers(t *testing.T) {
	a := tenantPipeline("a-orders", "/api/webhook/lazada")
	b := tenantPipeline("b-orders", "/api/webhook/lazada")
	producer := newCapturingProducer()
	producer.failOn = func(_ string, message []byte) error {
		if strings.Contains(string(message), "a-orders") {
			return errors.New("broker closed")
		}
		return nil
	}
	c := NewEventConsumer(directoryWith(t, a, b), event.NewRouter(event.DefaultRules()), producer, nil, nil)

	data, _ := event.Encode(event.New("webhook", "/api/webhook/lazada", "POST"))
	if err := c.HandleMessage(data); err != nil {
		t.Fatalf("handle should tolerate per-envelope publish failure: %v", err)
	}
	if got := len(producer.published["lazada_pipeline_queue"]); got != 1 {
		t.Errorf("expected the surviving pipeline's work item, got %d", got)
	}
}

func pipelineExecutor(t *testing.T, actions map[string]integration.ActionFunc) *pipeline.Executor {
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
		t.Fatalf("register: %v", err)
	}
	return pipeline.NewExecutor(r, nil)
}

func TestPipelineConsumer_ExecutesWorkItem(t *testing.T) {
	var got map[string]any
	exec := pipelineExecutor(t, map[string]integration.ActionFunc{
		"capture": func(_ context.Context, input map[string]any) (map[string]any, error) {
			got = input
			return map[string]any{"ok": true}, nil
		},
	})
	c := NewPipelineConsumer(context.Background(), exec, nil, nil)

	p := pipeline.New("run-me", map[string]any{}, []pipeline.Step{
		pipeline.NewStep("capture", pipeline.StepTypeTrigger, "pocsync.test", "capture", nil, 0),
	})
	ev := event.New("webhook", "/api/webhook/shopee", "POST")
	ev.Params["order_id"] = "12345"

	data, err := EncodeWorkItem(WorkItem{Pipeline: p, Context: ev})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := c.HandleMessage(data); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	params, ok := got["params"].(map[string]any)
	if !ok || params["order_id"] != "12345" {
		t.Errorf("event context did not reach the first step: %v", got)
	}
}

func TestPipelineConsumer_MalformedWorkItem(t *testing.T) {
	c := NewPipelineConsumer(context.Background(), pipelineExecutor(t, nil), nil, nil)
	if err := c.HandleMessage([]byte("not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestPipelineConsumer_SurvivesCrashingAction(t *testing.T) {
	exec := pipelineExecutor(t, map[string]integration.ActionFunc{
		"crash": func(context.Context, map[string]any) (map[string]any, error) {
			panic("divide by zero")
		},
	})
	c := NewPipelineConsumer(context.Background(), exec, nil, nil)

	p := pipeline.New("crashy", map[string]any{}, []pipeline.Step{
		pipeline.NewStep("crash", pipeline.StepTypeTrigger, "pocsync.test", "crash", nil, 0),
	})
	data, _ := EncodeWorkItem(WorkItem{Pipeline: p, Context: event.New("webhook", "/x", "POST")})

	// Execution fails inside the record; the consumer stays usable.
	if err := c.HandleMessage(data); err != nil {
		t.Fatalf("crash must not surface as a handler error: %v", err)
	}
	if err := c.HandleMessage(data); err != nil {
		t.Fatalf("consumer should remain ready after a crash: %v", err)
	}
}
