package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adventure-engine/internal/config"
	"adventure-engine/internal/logger"
	"adventure-engine/internal/services/queue"
	"adventure-engine/internal/storage"
	"adventure-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logg := logger.Setup(cfg)

	logg.Info("Starting usage worker",
		"environment", cfg.Environment)

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	store, err := storage.NewPostgresStore(storeCtx, cfg.DatabaseURL, logg)
	storeCancel()
	if err != nil {
		logg.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	queueClient, err := queue.NewClient(cfg.RedisURL, logg)
	if err != nil {
		logg.Error("Failed to connect to Redis queue", "error", err)
		os.Exit(1)
	}
	usageQueue := queue.NewUsageQueue(queueClient)

	w := worker.New(usageQueue, store, logg, os.Getenv("WORKER_ID"))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		w.Stop()
	}()

	if err := w.Start(); err != nil {
		logg.Error("Worker exited with error", "error", err)
	}

	if err := queueClient.Close(); err != nil {
		logg.Error("Error closing queue connection", "error", err)
	}
	if err := store.Close(); err != nil {
		logg.Error("Error closing database connection", "error", err)
	}

	logg.Info("Worker exited")
}
