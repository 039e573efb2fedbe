// Package main provides the entry point for the mealchat server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/mealchat-go/internal/config"
	"github.com/raphaelgruber/mealchat-go/internal/db"
	"github.com/raphaelgruber/mealchat-go/internal/metrics"
	"github.com/raphaelgruber/mealchat-go/internal/pipeline"
	"github.com/raphaelgruber/mealchat-go/internal/server"
	"github.com/raphaelgruber/mealchat-go/internal/vision"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	// Log startup info
	logger.Info("mealchat starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"vision_provider", cfg.VisionProvider,
		"vision_model", cfg.VisionModel,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()

	// Connect to database
	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger, collector)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}()

	// Initialize database schema
	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	// Image normalizer and vision model
	normalizer := vision.NewNormalizer(cfg.ImageFetchTimeout, logger, collector)
	visionClient, err := vision.NewClient(ctx, cfg, logger, collector)
	if err != nil {
		logger.Error("failed to create vision client", "error", err)
		os.Exit(1)
	}

	// Message dispatcher and pipeline engine. The engine writes through the
	// dispatcher so its own messages reach triggers and watchers too.
	dispatcher := pipeline.NewDispatcher(dbClient, logger)
	engine := pipeline.NewEngine(dispatcher, normalizer, visionClient, logger, collector)
	dispatcher.Bind(engine)

	// HTTP server
	srv := server.New(":"+cfg.ServerPort, dbClient, dispatcher, logger, collector, version)

	logger.Info("server ready", "port", cfg.ServerPort)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	// Let in-flight triggers (vision inference, meal writes) finish.
	logger.Info("draining in-flight pipeline work")
	dispatcher.Wait()

	logger.Info("shutdown complete")
}
