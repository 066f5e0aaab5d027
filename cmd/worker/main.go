package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muraho-rwanda/ai-guide/internal/bootstrap"
	"github.com/muraho-rwanda/ai-guide/internal/config"
	"github.com/muraho-rwanda/ai-guide/internal/observability/metrics"
)

const serviceName = "ai-guide-worker"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker subscribed to %s", cfg.NATSIndexSubject)
	err = app.Queue.SubscribeIndexRequests(ctx, func(handlerCtx context.Context, payload []byte) error {
		indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartIndexRequest()
		start := time.Now()
		affected, handleErr := app.IndexUC.Handle(indexCtx, payload)
		workerMetrics.FinishIndexRequest(serviceName, eventAction(payload), time.Since(start), handleErr)
		if handleErr == nil {
			workerMetrics.ObserveIndexedChunks(serviceName, affected)
		}
		return handleErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func eventAction(payload []byte) string {
	var event struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(payload, &event); err != nil || event.Action == "" {
		return "index"
	}
	return event.Action
}
