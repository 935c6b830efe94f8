// Command backbone runs the realtime call-assistant backbone: the HTTP
// session API, the Twilio telephony webhook, and the WebSocket session
// pipeline, backed by PostgreSQL.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/callpath/backbone/pkg/api"
	"github.com/callpath/backbone/pkg/config"
	"github.com/callpath/backbone/pkg/database"
	"github.com/callpath/backbone/pkg/guidance"
	"github.com/callpath/backbone/pkg/hub"
	"github.com/callpath/backbone/pkg/llm"
	"github.com/callpath/backbone/pkg/redact"
	"github.com/callpath/backbone/pkg/rules"
	"github.com/callpath/backbone/pkg/store"
	"github.com/callpath/backbone/pkg/telephony"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	setupLogging()

	cfg, err := config.Load(filepath.Join(*configDir, ".env"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, database.Config{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL", "database", "backbone")

	eventStore := store.NewEventStore(dbClient.Pool)
	sessionStore := store.NewSessionStore(dbClient.Pool)
	ruleStore := store.NewRuleStore(dbClient.Pool)

	redactor := redact.New(redact.Mode(cfg.PIIRedactionMode))
	ruleEngine := rules.New(ruleStore)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:       cfg.LLMBaseURL,
		APIKey:        cfg.OpenRouterAPIKey,
		PrimaryModel:  cfg.LLMPrimaryModel,
		FallbackModel: cfg.LLMFallbackModel,
	})

	registry := hub.NewRegistry(10 * time.Second)

	// Pipeline and Scheduler reference each other (Pipeline.PublishSynthesized
	// is the Scheduler's Publisher); Pipeline is built first with guidance
	// wired in afterward via SetGuidance.
	pipeline := hub.NewPipeline(registry, eventStore, sessionStore, redactor, ruleEngine, nil, tenantForSession)
	scheduler := guidance.New(eventStore, llmClient, pipeline)
	pipeline.SetGuidance(scheduler)

	telephonyAdapter := telephony.New(telephony.Config{
		AuthToken:       cfg.TwilioAuthToken,
		StreamWSBaseURL: cfg.TwilioStreamWSBaseURL,
	})

	server := api.NewServer(dbClient, sessionStore, eventStore, pipeline, scheduler, llmClient, telephonyAdapter)

	addr := ":" + cfg.HTTPPort
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		serveErr <- server.Start(addr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			slog.Error("HTTP server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

// tenantForSession is a placeholder scope resolver: the single-tenant
// deployment this binary targets has no per-session tenant lookup, so rule
// evaluation always runs against the global ruleset (spec.md §4.3).
func tenantForSession(ctx context.Context, sessionID string) *string {
	return nil
}

func setupLogging() {
	level := slog.LevelInfo
	switch getEnv("log_level", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if getEnv("log_format", "json") == "console" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
