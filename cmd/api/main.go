package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careinbox/careinbox/internal/agent"
	"github.com/careinbox/careinbox/internal/api/router"
	"github.com/careinbox/careinbox/internal/calendar"
	"github.com/careinbox/careinbox/internal/clock"
	appconfig "github.com/careinbox/careinbox/internal/config"
	"github.com/careinbox/careinbox/internal/conversation"
	"github.com/careinbox/careinbox/internal/emergency"
	"github.com/careinbox/careinbox/internal/inbox"
	"github.com/careinbox/careinbox/internal/observability/metrics"
	"github.com/careinbox/careinbox/internal/scheduling"
	"github.com/careinbox/careinbox/internal/webhook"
	"github.com/careinbox/careinbox/pkg/logging"
)

func main() {
	// Load .env if present; real deployments set env vars directly
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting careinbox API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	clk := buildClock(cfg, logger)

	ctx := context.Background()

	// Calendar backend
	backend, err := calendar.NewGoogleBackend(ctx, calendar.GoogleConfig{
		CalendarID:      cfg.CalendarID,
		CredentialsFile: cfg.CalendarCredentialsFile,
		Clock:           clk,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to create calendar backend", "error", err)
		os.Exit(1)
	}

	// Metrics
	schedulingMetrics := metrics.NewSchedulingMetrics(nil)
	webhookMetrics := metrics.NewWebhookMetrics(nil)

	// Scheduling engine
	store := scheduling.NewAvailabilityStore(backend, clk, schedulingMetrics, logger)
	reservations := scheduling.NewReservationManager(store, backend, clk, scheduling.ReservationConfig{
		Location:   cfg.ClinicName,
		Provider:   cfg.ClinicProvider,
		WindowDays: cfg.AvailabilityWindowDays,
	}, schedulingMetrics, logger)
	tool := scheduling.NewTool(store, reservations, cfg.AvailabilityWindowDays, logger)

	// Seed availability from the calendar; a failed first pass is not
	// fatal, the tool re-derives on demand.
	if err := store.Derive(ctx, cfg.AvailabilityWindowDays); err != nil {
		logger.Warn("initial availability derivation failed", "error", err)
	} else {
		logger.Info("availability derived", "open_slots", store.Len())
	}

	// Agent runtime
	runtime, err := agent.NewGeminiRuntime(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, tool, cfg.InboxAddress(), clk, logger)
	if err != nil {
		logger.Error("failed to create agent runtime", "error", err)
		os.Exit(1)
	}

	// AgentMail client
	mail, err := inbox.New(inbox.Config{
		BaseURL: cfg.AgentMailBaseURL,
		APIKey:  cfg.AgentMailAPIKey,
		Timeout: cfg.PublishTimeout,
		Logger:  logger.Logger,
	})
	if err != nil {
		logger.Error("failed to create inbox client", "error", err)
		os.Exit(1)
	}

	// Webhook pipeline
	emergencyState := emergency.NewState()
	dispatcher := webhook.NewDispatcher(webhook.DispatcherConfig{
		InboxID:     cfg.InboxAddress(),
		Dedup:       webhook.NewGuard(cfg.DedupLimit),
		Threads:     conversation.NewThreadStore(),
		Runtime:     runtime,
		Inbox:       mail,
		Emergency:   emergencyState,
		Clock:       clk,
		QueueBuffer: cfg.ThreadQueueBuffer,
		Metrics:     webhookMetrics,
		Logger:      logger,
	})

	// Setup router
	r := router.New(&router.Config{
		Logger:           logger,
		Dispatcher:       dispatcher,
		EmergencyHandler: emergency.NewHandler(emergencyState, clk, logger),
		MetricsHandler:   promhttp.Handler(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "inbox", cfg.InboxAddress())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Drain in-flight webhook work before exiting.
	dispatcher.Close()

	logger.Info("server stopped")
}

// buildClock returns the wall clock unless a fixed instant is pinned via
// configuration, which keeps availability output reproducible in demos.
func buildClock(cfg *appconfig.Config, logger *logging.Logger) clock.Clock {
	if cfg.FixedNow == "" {
		return clock.System{}
	}
	instant, err := time.Parse(time.RFC3339, cfg.FixedNow)
	if err != nil {
		logger.Warn("invalid CLOCK_FIXED_NOW, using wall clock", "value", cfg.FixedNow, "error", err)
		return clock.System{}
	}
	logger.Info("clock pinned", "now", instant.Format(time.RFC3339))
	return clock.NewFixed(instant)
}
