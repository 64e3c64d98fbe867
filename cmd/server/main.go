package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielRv555/op-calorie-vision/internal/auth"
	"github.com/DanielRv555/op-calorie-vision/internal/config"
	"github.com/DanielRv555/op-calorie-vision/internal/goals"
	"github.com/DanielRv555/op-calorie-vision/internal/history"
	"github.com/DanielRv555/op-calorie-vision/internal/kvstore"
	"github.com/DanielRv555/op-calorie-vision/internal/logger"
	"github.com/DanielRv555/op-calorie-vision/internal/nutrition"
	"github.com/DanielRv555/op-calorie-vision/internal/photos"
	"github.com/DanielRv555/op-calorie-vision/internal/recipes"
	"github.com/DanielRv555/op-calorie-vision/internal/server"
	"github.com/DanielRv555/op-calorie-vision/internal/sheet"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	logger.SetDefault(log)
	log.Info("starting calorie vision service",
		"port", cfg.Port,
		"env", cfg.AppEnv,
	)

	// Key/value store: Redis when configured, in-memory otherwise.
	var store kvstore.Store
	if cfg.Redis.Addr != "" {
		store = kvstore.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			cancel()
			log.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		cancel()
		log.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		store = kvstore.NewMemoryStore()
		log.Warn("REDIS_ADDR not set, using in-memory store; sessions and history will not survive restarts")
	}

	sheets := sheet.NewClient(cfg.SheetTimeout)

	deps := server.Deps{
		Auth:     auth.NewService(store, sheets, cfg.DirectoryCSVURL, log),
		Recipes:  recipes.NewService(sheets, cfg.RecipesCSVURL, log),
		Goals:    goals.NewService(store, log),
		History:  history.NewService(store, log),
		Analyzer: nutrition.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout, log),
		Store:    store,
		Logger:   log,
	}

	if cfg.S3.Enabled {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		photoSvc, err := photos.New(initCtx, cfg.S3, log)
		cancel()
		if err != nil {
			log.Error("failed to initialize photo archive", "error", err)
			os.Exit(1)
		}
		deps.Photos = photoSvc
		log.Info("photo archive enabled", "bucket", cfg.S3.Bucket)
	}

	httpServer := server.New(cfg, deps)

	go func() {
		log.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("stopped")
}
