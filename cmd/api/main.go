package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/muraho-rwanda/ai-guide/internal/adapters/http"
	"github.com/muraho-rwanda/ai-guide/internal/bootstrap"
	"github.com/muraho-rwanda/ai-guide/internal/config"
	"github.com/muraho-rwanda/ai-guide/internal/observability/metrics"
)

const serviceName = "ai-guide-api"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app.AttachMetrics(httpMetrics, serviceName)

	router := httpadapter.NewRouter(app.AskUC, app.Queue, httpMetrics, httpadapter.RateLimits{
		FreePerDay:   cfg.RateLimitFree,
		PaidPerDay:   cfg.RateLimitPaid,
		AgencyPerDay: cfg.RateLimitAgency,
	}, serviceName).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
