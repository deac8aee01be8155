package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/ses-tracking/internal/api"
	"github.com/ignite/ses-tracking/internal/bootstrap"
	"github.com/ignite/ses-tracking/internal/ingest"
	"github.com/ignite/ses-tracking/internal/notification"
	"github.com/ignite/ses-tracking/internal/pkg/logger"
	"github.com/ignite/ses-tracking/internal/repository/postgres"
	"github.com/ignite/ses-tracking/internal/reputation"
)

func main() {
	configPath := flag.String("config", bootstrap.DefaultConfigPath, "path to config file")
	flag.Parse()

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	loc, err := cfg.Aggregation.Location()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := bootstrap.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis is optional here and only reported by the health check.
	redisClient := bootstrap.OpenRedis(ctx, cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	events := postgres.NewEventRepo(db)
	stats := postgres.NewStatsRepo(db)

	confirmer := notification.NewConfirmer(nil, cfg.Webhook.ConfirmTimeout())
	webhook := ingest.NewHandler(ingest.NewPipeline(events, confirmer, nil), cfg.Webhook.MaxBodyBytes)

	evaluator := reputation.NewEvaluator(stats, cfg.Reputation, loc)
	handlers := api.NewHandlers(events, stats, evaluator, loc)
	health := api.NewHealthChecker(db, redisClient, webhook)

	router := api.SetupRoutes(handlers, health, webhook, api.RouterOptions{
		WebhookPath:    cfg.Webhook.Path,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", server.Addr, "webhook_path", cfg.Webhook.Path, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped", "webhook", webhook.Stats())
}
