package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/socialtrack/socialtrack/internal/collector"
	"github.com/socialtrack/socialtrack/internal/db"
	"github.com/socialtrack/socialtrack/pkg/config"
	"github.com/socialtrack/socialtrack/pkg/logging"
	"github.com/socialtrack/socialtrack/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting SocialTrack Collector")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	runner := collector.NewRunner(cfg, database, collector.NewRegistry())

	// Schedule the periodic sweep
	engine := cron.New(cron.WithSeconds())
	_, err = engine.AddFunc(cfg.Collector.Schedule, func() {
		runner.SweepAll(context.Background(), "", 0)
	})
	if err != nil {
		logger.Fatal("Invalid collect schedule",
			zap.String("schedule", cfg.Collector.Schedule),
			zap.Error(err))
	}

	engine.Start()
	logger.Info("Collector scheduled", zap.String("schedule", cfg.Collector.Schedule))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down collector...")

	// Let an in-flight sweep finish
	<-engine.Stop().Done()

	logger.Info("Collector exited")
}
