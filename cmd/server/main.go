// Package main runs the flight delay prediction service:
// - HTTP API for predictions, training and model updates
// - gradient-boosted delay classifier swapped atomically on retrain
// - local or Google Cloud Storage buckets for training data and models
// - SQLite or PostgreSQL store for training reports
// - optional Redis cache of prediction results
// - Prometheus metrics
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"flight-delay/internal/cache"
	"flight-delay/internal/classifier"
	"flight-delay/internal/config"
	"flight-delay/internal/db"
	"flight-delay/internal/delaymodel"
	"flight-delay/internal/handlers"
	"flight-delay/internal/observability"
	"flight-delay/internal/service"
	"flight-delay/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting flight delay service",
		"go_version", runtime.Version(),
		"num_cpu", runtime.NumCPU(),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, closeBlobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlobs()

	reports, err := db.Open(ctx, cfg.MetricsDSN)
	if err != nil {
		return err
	}
	defer reports.Close()

	redisCache := connectRedis(ctx, cfg, logger)
	if redisCache != nil {
		defer redisCache.Close()
	}

	model := delaymodel.New(cfg.ModelPath, classifier.DefaultParams(), logger)
	updater := service.NewUpdater(model, blobs, cfg.ModelsBucket, logger)
	updater.Bootstrap(ctx)

	trainer := service.NewTrainer(model, blobs, reports, clockwork.NewRealClock(), service.TrainerConfig{
		ModelsBucket:     cfg.ModelsBucket,
		TrainingDataPath: cfg.TrainingDataPath,
		ThresholdMinutes: cfg.DelayThreshold,
	}, logger)

	// a nil *RedisCache must not become a non-nil interface
	var resultCache service.Cache
	var cachePing handlers.Pinger
	if redisCache != nil {
		resultCache = redisCache
		cachePing = redisCache
	}
	predictor := service.NewPredictor(model, resultCache, logger)

	handler := handlers.NewHandler(predictor, trainer, updater, reports, model, cachePing, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handlers.NewRouter(handler, cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // POST /fit trains synchronously
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, func(), error) {
	if cfg.StorageBackend == config.StorageGCS {
		gcs, err := storage.NewGCSStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return gcs, func() { gcs.Close() }, nil
	}

	local, err := storage.NewLocalStore(cfg.StorageRoot)
	if err != nil {
		return nil, nil, err
	}
	return local, func() {}, nil
}

// connectRedis retries a few times and returns nil when Redis is off or
// unreachable; the service then runs without a cache.
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *cache.RedisCache {
	if cfg.RedisAddr == "" {
		logger.Info("redis cache disabled")
		return nil
	}

	var lastErr error
	for i := 0; i < 5; i++ {
		c, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err == nil {
			logger.Info("connected to redis", "addr", cfg.RedisAddr)
			return c
		}
		lastErr = err
		logger.Warn("redis connection attempt failed", "attempt", i+1, "error", err)
		if i < 4 {
			select {
			case <-time.After(time.Duration(i+1) * time.Second):
			case <-ctx.Done():
				return nil
			}
		}
	}

	logger.Warn("running without cache", "error", lastErr)
	return nil
}
