package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SteadySend/internal/api"
	"SteadySend/internal/campaign"
	"SteadySend/internal/config"
	"SteadySend/internal/mail"
	"SteadySend/internal/metrics"
	"SteadySend/internal/registry"
	"SteadySend/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if missing := cfg.MissingSenderConfig(); len(missing) > 0 {
		// Start anyway: status/upload endpoints still work, sends will fail
		// with a configuration error.
		logger.Warn("missing sender configuration", zap.String("vars", strings.Join(missing, ", ")))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Mail Transport
	// ------------------------------------------------
	var sender mail.Sender
	switch cfg.MailProvider {
	case "smtp":
		sender = &mail.SMTPClient{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}
		logger.Info("using SMTP transport", zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
	default:
		client, err := mail.NewAPIClient(cfg.APIURL, cfg.APIKey, cfg.SendTimeout, logger)
		if err != nil {
			logger.Warn("email API client not configured, sends will fail", zap.Error(err))
		} else {
			sender = client
		}
	}

	defaults := worker.SenderIdentity{
		Email: cfg.DefaultSenderEmail,
		Name:  cfg.DefaultSenderName,
	}

	// ------------------------------------------------
	// Campaign Engine
	// ------------------------------------------------
	jobRegistry := registry.New(logger)
	campaigns := campaign.NewService(logger, jobRegistry, sender, defaults, cfg.SendTimeout, cfg.MaxRecipients)

	// ------------------------------------------------
	// Single-Send Rate Limiter
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Limit(cfg.SingleSendRate), cfg.SingleSendBurst)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	handler := &api.Handler{
		Log:       logger,
		Campaigns: campaigns,
		Client:    sender,
		Limiter:   limiter,
		Defaults:  defaults,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: handler.Routes(),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	// In-flight campaign state is in-memory only; running workers are
	// abandoned at process exit.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
