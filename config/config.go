// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs to start.
type Config struct {
	// HTTPAddr is the ingress listen address.
	HTTPAddr string

	// EventQueue is the queue inbound webhook events are published to.
	EventQueue string

	// RoutesFile optionally points at a YAML routing-rule file. Empty means
	// the built-in default rules.
	RoutesFile string

	// PipelineDB optionally points at a SQLite database file for pipeline
	// definitions. Empty means the in-memory store.
	PipelineDB string

	Rabbit RabbitConfig
}

// RabbitConfig describes the AMQP broker connection.
type RabbitConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	Heartbeat time.Duration
	Prefetch  int
	// Concurrency is the number of worker goroutines per consumed queue.
	Concurrency int
}

// URL renders the amqp:// connection URL. Credentials are escaped so
// passwords with reserved characters survive.
func (r RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		url.QueryEscape(r.User), url.QueryEscape(r.Password), r.Host, r.Port)
}

// Load reads the configuration from the environment, applying defaults for
// anything unset.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:   envOr("HTTP_ADDR", ":4000"),
		EventQueue: envOr("RABBIT_EVENT_QUEUE", "inn_event_queue"),
		RoutesFile: os.Getenv("ROUTES_FILE"),
		PipelineDB: os.Getenv("PIPELINE_DB"),
		Rabbit: RabbitConfig{
			Host:        envOr("RABBIT_HOST", "localhost"),
			User:        envOr("RABBIT_USER", "guest"),
			Password:    envOr("RABBIT_PASSWORD", "guest"),
			Heartbeat:   30 * time.Second,
			Prefetch:    50,
			Concurrency: 10,
		},
	}

	port, err := envInt("RABBIT_PORT", 5672)
	if err != nil {
		return Config{}, err
	}
	cfg.Rabbit.Port = port
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, raw)
	}
	return v, nil
}
