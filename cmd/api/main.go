package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"adventure-engine/internal/config"
	"adventure-engine/internal/engine"
	"adventure-engine/internal/handlers"
	"adventure-engine/internal/logger"
	"adventure-engine/internal/middleware"
	"adventure-engine/internal/services"
	"adventure-engine/internal/services/queue"
	"adventure-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logg := logger.Setup(cfg)

	logg.Info("Starting Adventure Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"model_name", cfg.ModelName)

	if cfg.AnthropicAPIKey == "" {
		logg.Warn("No Anthropic API key configured; story generation will fail until ANTHROPIC_API_KEY is set")
	}
	llmService := services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, logg)

	if err := storage.ApplyMigrations(cfg.DatabaseURL); err != nil {
		logg.Error("Failed to apply database migrations", "error", err)
		os.Exit(1)
	}

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	store, err := storage.NewPostgresStore(storeCtx, cfg.DatabaseURL, logg)
	storeCancel()
	if err != nil {
		logg.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logg.Info("Database connection established")

	cache, err := storage.NewRedisCache(cfg.RedisURL, logg)
	if err != nil {
		logg.Error("Failed to create Redis cache", "error", err)
		os.Exit(1)
	}

	queueClient, err := queue.NewClient(cfg.RedisURL, logg)
	if err != nil {
		logg.Error("Failed to connect to Redis queue", "error", err)
		os.Exit(1)
	}
	usageQueue := queue.NewUsageQueue(queueClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	if err := llmService.InitModel(ctx, cfg.ModelName); err != nil {
		cancel()
		logg.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	cancel()

	eng := engine.New(llmService, store, usageQueue, logg)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, cache, logg)
	mux.Handle("/health", healthHandler)

	storyHandler := handlers.NewStoryHandler(eng, logg)
	mux.Handle("/v1/story", storyHandler)

	preloadHandler := handlers.NewPreloadHandler(eng, logg)
	mux.Handle("/v1/story/preload", preloadHandler)

	storiesHandler := handlers.NewStoriesHandler(store, cache, cfg.HomepageCacheTTL, logg)
	mux.Handle("/v1/admin/stories", storiesHandler)
	mux.Handle("/v1/admin/stories/", storiesHandler)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	handler := middleware.Logger(logg, corsMiddleware.Handler(mux))
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logg.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("Server is shutting down...")

	if err := cache.Close(); err != nil {
		logg.Error("Error closing cache connection", "error", err)
	}
	if err := queueClient.Close(); err != nil {
		logg.Error("Error closing queue connection", "error", err)
	}
	if err := store.Close(); err != nil {
		logg.Error("Error closing database connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logg.Info("Server exited")
}
