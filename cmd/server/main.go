// Command server runs the webhook automation platform: the HTTP ingress,
// the event consumer that routes events to pipeline queues, and the
// pipeline consumers that execute matched pipelines.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocsync/innhook/broker"
	"github.com/pocsync/innhook/config"
	"github.com/pocsync/innhook/consumer"
	"github.com/pocsync/innhook/event"
	"github.com/pocsync/innhook/ingress"
	"github.com/pocsync/innhook/integration"
	"github.com/pocsync/innhook/integration/builtin"
	"github.com/pocsync/innhook/metrics"
	"github.com/pocsync/innhook/pipeline"
	"github.com/pocsync/innhook/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := integration.NewRegistry()
	if err := builtin.Register(registry, logger); err != nil {
		return err
	}

	pipelineStore, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rules := event.DefaultRules()
	if cfg.RoutesFile != "" {
		rules, err = event.LoadRules(cfg.RoutesFile)
		if err != nil {
			return err
		}
		logger.Info("Loaded routing rules", "file", cfg.RoutesFile, "rules", len(rules))
	}
	router := event.NewRouter(rules)

	collector := metrics.NewCollector()
	executor := pipeline.NewExecutor(registry, logger)

	mq := broker.NewAMQPBroker(broker.AMQPConfig{
		URL:         cfg.Rabbit.URL(),
		Heartbeat:   cfg.Rabbit.Heartbeat,
		Prefetch:    cfg.Rabbit.Prefetch,
		Concurrency: cfg.Rabbit.Concurrency,
	}, logger)

	eventConsumer := consumer.NewEventConsumer(pipelineStore, router, mq.Producer(), logger, collector)
	if err := mq.Subscribe(cfg.EventQueue, eventConsumer); err != nil {
		return err
	}

	pipelineConsumer := consumer.NewPipelineConsumer(ctx, executor, logger, collector)
	for _, queue := range router.Queues() {
		if err := mq.Subscribe(queue, pipelineConsumer); err != nil {
			return err
		}
	}

	if err := mq.Start(ctx); err != nil {
		return err
	}

	srv := ingress.NewServer(cfg.HTTPAddr, ingress.NewHandler(ingress.Options{
		Producer:   mq.Producer(),
		EventQueue: cfg.EventQueue,
		Store:      pipelineStore,
		Executor:   executor,
		Registry:   registry,
		Logger:     logger,
		Metrics:    collector,
		Health:     mq.Healthy,
	}), logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	logger.Info("Platform running",
		"address", srv.Addr(), "event_queue", cfg.EventQueue, "pipeline_queues", router.Queues())

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Ingress shutdown failed", "error", err)
	}
	if err := mq.Stop(shutdownCtx); err != nil {
		logger.Error("Broker shutdown failed", "error", err)
	}
	return nil
}

// openStore picks the pipeline store: SQLite when PIPELINE_DB is set,
// in-memory otherwise.
func openStore(cfg config.Config, logger *slog.Logger) (store.PipelineStore, func(), error) {
	if cfg.PipelineDB == "" {
		logger.Info("Using in-memory pipeline store")
		return store.NewMemoryStore(), func() {}, nil
	}

	s, err := store.OpenSQLiteStore(cfg.PipelineDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using SQLite pipeline store", "path", cfg.PipelineDB)
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Error("Failed to close pipeline store", "error", err)
		}
	}, nil
}
