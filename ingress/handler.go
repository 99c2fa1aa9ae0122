// Package ingress exposes the HTTP surface of the platform: the async
// webhook endpoint that feeds the ingress queue, the sync call endpoint
// that executes a pipeline in-request, and the read-only directory and
// health endpoints.
package ingress

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/pocsync/innhook/broker"
	"github.com/pocsync/innhook/event"
	"github.com/pocsync/innhook/integration"
	"github.com/pocsync/innhook/matcher"
	"github.com/pocsync/innhook/metrics"
	"github.com/pocsync/innhook/pipeline"
	"github.com/pocsync/innhook/store"
)

// Handler serves the /api endpoints.
type Handler struct {
	producer   broker.MessageProducer
	eventQueue string
	store      store.PipelineStore
	executor   *pipeline.Executor
	registry   *integration.Registry
	logger     *slog.Logger
	metrics    *metrics.Collector
	health     func() (bool, string)
}

// Options configures a Handler.
type Options struct {
	Producer   broker.MessageProducer
	EventQueue string
	Store      store.PipelineStore
	Executor   *pipeline.Executor
	Registry   *integration.Registry
	Logger     *slog.Logger
	Metrics    *metrics.Collector
	// Health reports broker health for /health; nil means always healthy.
	Health func() (bool, string)
}

// NewHandler creates the ingress handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		producer:   opts.Producer,
		eventQueue: opts.EventQueue,
		store:      opts.Store,
		executor:   opts.Executor,
		registry:   opts.Registry,
		logger:     logger,
		metrics:    opts.Metrics,
		health:     opts.Health,
	}
}

// RegisterRoutes registers the API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/webhook/", h.webhook)
	mux.HandleFunc("POST /api/webhook/", h.webhook)
	mux.HandleFunc("GET /api/call/", h.call)
	mux.HandleFunc("POST /api/call/", h.call)
	mux.HandleFunc("GET /api/pipelines", h.listPipelines)
	mux.HandleFunc("GET /api/integrations", h.listIntegrations)
	mux.HandleFunc("GET /health", h.healthz)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// webhook is the async ingress: the event goes to the ingress queue and
// the caller gets an immediate 200. Failures stay invisible to the caller
// by design; they surface in logs only.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ev := h.buildEvent(r)

	data, err := event.Encode(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", "path", ev.Path, "error", err)
	} else {
		pubErr := h.producer.SendMessage(h.eventQueue, data)
		if h.metrics != nil {
			h.metrics.ObservePublish(h.eventQueue, pubErr)
		}
		if pubErr != nil {
			h.logger.Error("Failed to publish event", "queue", h.eventQueue, "error", pubErr)
		}
	}

	h.writeJSON(w, "webhook", http.StatusOK, map[string]string{
		"message": "Event received and processed",
	})
}

// call is the sync ingress: match the event against the directory and run
// the first hit in-request.
func (h *Handler) call(w http.ResponseWriter, r *http.Request) {
	ev := h.buildEvent(r)

	pipelines, err := h.store.ListPipelines()
	if err != nil {
		h.logger.Error("Failed to list pipelines", "error", err)
		h.writeJSON(w, "call", http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	evMap := ev.AsMap()
	for _, p := range pipelines {
		if !matcher.Match(evMap, p.Pattern) {
			continue
		}

		record := h.executor.Execute(r.Context(), p, evMap)
		if h.metrics != nil {
			h.metrics.ObserveExecution(p.Name, string(record.Status))
		}
		if !record.Succeeded() {
			h.writeJSON(w, "call", http.StatusBadRequest, map[string]string{"error": record.Error})
			return
		}
		h.writeJSON(w, "call", http.StatusOK, map[string]any{"data": record.FinalOutput()})
		return
	}

	h.writeJSON(w, "call", http.StatusNotFound, map[string]string{
		"message": "No matching pipeline found",
	})
}

func (h *Handler) listPipelines(w http.ResponseWriter, _ *http.Request) {
	pipelines, err := h.store.ListPipelines()
	if err != nil {
		h.writeJSON(w, "pipelines", http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.writeJSON(w, "pipelines", http.StatusOK, map[string]any{
		"items": pipelines,
		"total": len(pipelines),
	})
}

func (h *Handler) listIntegrations(w http.ResponseWriter, _ *http.Request) {
	items := h.registry.ListIntegrations()
	h.writeJSON(w, "integrations", http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	healthy, msg := true, "ok"
	if h.health != nil {
		healthy, msg = h.health()
	}
	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	h.writeJSON(w, "health", status, map[string]string{"status": state, "message": msg})
}

// buildEvent constructs the event envelope for a request: JSON body fields
// plus query parameters become params, single-valued headers are carried
// through.
func (h *Handler) buildEvent(r *http.Request) event.Event {
	ev := event.New("webhook", r.URL.Path, r.Method)

	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err == nil && len(body) > 0 {
			var params map[string]any
			if jsonErr := json.Unmarshal(body, &params); jsonErr == nil {
				ev.Params = params
			} else {
				h.logger.Warn("Ignoring non-JSON request body", "path", r.URL.Path)
			}
		}
	}

	for k, values := range r.URL.Query() {
		if len(values) > 0 {
			ev.Params[k] = values[0]
		}
	}
	for k, values := range r.Header {
		if len(values) > 0 {
			ev.Headers[k] = values[0]
		}
	}
	return ev
}

func (h *Handler) writeJSON(w http.ResponseWriter, handler string, status int, v any) {
	if h.metrics != nil {
		h.metrics.ObserveHTTP(handler, status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}
