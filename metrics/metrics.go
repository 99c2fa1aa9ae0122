// Package metrics wraps the Prometheus collectors for the platform.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metric vectors for pipeline execution, broker
// publication, and the HTTP ingress. It owns its own Prometheus registry
// so tests can create collectors freely.
type Collector struct {
	registry *prometheus.Registry

	PipelineExecutions *prometheus.CounterVec
	StepDuration       *prometheus.HistogramVec
	MessagesPublished  *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

// NewCollector creates a collector with all vectors registered under the
// "innhook" namespace.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		PipelineExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "innhook",
			Name:      "pipeline_executions_total",
			Help:      "Total pipeline executions by terminal status",
		}, []string{"pipeline", "status"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "innhook",
			Name:      "step_duration_seconds",
			Help:      "Duration of step executions in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"integration", "action"}),
		MessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "innhook",
			Name:      "messages_published_total",
			Help:      "Messages published to broker queues",
		}, []string{"queue", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "innhook",
			Name:      "http_requests_total",
			Help:      "HTTP ingress requests by handler and status code",
		}, []string{"handler", "status"}),
	}

	reg.MustRegister(c.PipelineExecutions, c.StepDuration, c.MessagesPublished, c.HTTPRequests)
	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveExecution records one terminal pipeline execution.
func (c *Collector) ObserveExecution(pipelineName, status string) {
	c.PipelineExecutions.WithLabelValues(pipelineName, status).Inc()
}

// ObserveStep records one step invocation.
func (c *Collector) ObserveStep(integrationName, action string, d time.Duration) {
	c.StepDuration.WithLabelValues(integrationName, action).Observe(d.Seconds())
}

// ObservePublish records one broker publish attempt.
func (c *Collector) ObservePublish(queue string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.MessagesPublished.WithLabelValues(queue, outcome).Inc()
}

// ObserveHTTP records one ingress request.
func (c *Collector) ObserveHTTP(handler string, status int) {
	c.HTTPRequests.WithLabelValues(handler, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
