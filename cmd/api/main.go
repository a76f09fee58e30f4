package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/appointment-webhook-bridge/cmd/mainconfig"
	"github.com/wolfman30/appointment-webhook-bridge/internal/api/router"
	"github.com/wolfman30/appointment-webhook-bridge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/appointment-webhook-bridge/internal/config"
	"github.com/wolfman30/appointment-webhook-bridge/internal/http/handlers"
	"github.com/wolfman30/appointment-webhook-bridge/internal/observability/metrics"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting appointment webhook bridge",
		"env", cfg.Env,
		"port", cfg.Port,
		"calendar_timezone", cfg.GHLCalendarTZ,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildHandler wires metrics, the LLM chain, the booking stack and the router.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	metricsHandler, webhookMetrics := setupMetrics()

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, logger, bedrockFactory(cfg))
	if err != nil {
		logger.Warn("llm extraction disabled", "error", err)
		llm = nil
	}

	stack, err := bootstrap.BuildBookingStack(cfg, llm, logger, webhookMetrics)
	if err != nil {
		closeLLM()
		return nil, func() {}, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	limiter := bootstrap.BuildRateLimiter(ctx, cfg, redisClient, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Webhooks:           handlers.NewWebhookHandler(stack.Service, logger, webhookMetrics),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		RateLimitFailOpen:  true,
	})

	cleanup := func() {
		closeLLM()
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}
	return r, cleanup, nil
}

func setupMetrics() (http.Handler, *metrics.WebhookMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewWebhookMetrics(registry)
}

func bedrockFactory(cfg *appconfig.Config) bootstrap.BedrockFactory {
	return func(ctx context.Context) (*bedrockruntime.Client, error) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return mainconfig.NewBedrockClient(awsCfg, cfg), nil
	}
}
