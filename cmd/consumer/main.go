// Command consumer streams meter readings from Kafka, normalizes their
// fields, derives power and writes the results to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridops/meterpower/internal/config"
	"github.com/gridops/meterpower/internal/influxdb"
	"github.com/gridops/meterpower/internal/kafka"
	"github.com/gridops/meterpower/internal/metrics"
	"github.com/gridops/meterpower/internal/normalize"
	"github.com/gridops/meterpower/internal/ops"
	"github.com/gridops/meterpower/internal/processor"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	sets, err := config.LoadSynonyms(cfg.Processor.SynonymsFile)
	if err != nil {
		logger.Error("failed to load synonyms", "error", err)
		os.Exit(1)
	}
	resolver, err := normalize.NewResolver(sets)
	if err != nil {
		logger.Error("invalid synonym sets", "error", err)
		os.Exit(1)
	}

	influxClient, err := influxdb.NewClient(cfg.InfluxDB, logger)
	if err != nil {
		logger.Error("failed to create InfluxDB client", "error", err)
		os.Exit(1)
	}
	// Closed explicitly after the consumers and processor are stopped.

	registry := prometheus.NewRegistry()
	proc := processor.NewProcessor(influxClient, resolver, cfg.Processor, metrics.New(registry), logger)

	opsServer := &http.Server{
		Addr:    cfg.Ops.Addr,
		Handler: ops.NewHandler(registry, os.Stdout),
	}
	go func() {
		logger.Info("ops endpoint listening", "addr", cfg.Ops.Addr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops endpoint failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	consumers := make([]*kafka.Consumer, cfg.Kafka.ConsumerCount)

	logger.Info("starting Kafka consumers", "count", cfg.Kafka.ConsumerCount)

	for i := 0; i < cfg.Kafka.ConsumerCount; i++ {
		consumer, err := kafka.NewConsumer(
			fmt.Sprintf("consumer-%d", i),
			cfg.Kafka,
			proc.ProcessMessages,
			logger,
		)
		if err != nil {
			logger.Error("failed to create consumer", "id", i, "error", err)
			os.Exit(1)
		}

		consumers[i] = consumer

		wg.Add(1)
		go func(c *kafka.Consumer, id int) {
			defer wg.Done()
			logger.Info("consumer started", "id", id)
			if err := c.Consume(ctx); err != nil {
				logger.Error("consumer failed", "id", id, "error", err)
			}
			logger.Info("consumer stopped", "id", id)
		}(consumer, i)
	}

	<-sigChan
	logger.Info("received termination signal, shutting down")

	cancel()

	// Deadline for the consumers to leave their groups cleanly.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all consumers stopped")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
	}

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			logger.Error("closing consumer failed", "error", err)
		}
	}

	// Drain the queue and flush the aggregators before closing the sink.
	proc.Stop()

	logger.Info("closing InfluxDB client")
	influxClient.Close()

	opsCtx, opsCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer opsCancel()
	if err := opsServer.Shutdown(opsCtx); err != nil {
		logger.Error("ops endpoint shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}
