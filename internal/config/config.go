package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DelayThreshold minutes late above which a flight counts as delayed
	DelayThreshold   float64
	ModelPath        string
	TrainingDataPath string

	StorageBackend string
	StorageRoot    string
	ModelsBucket   string

	// MetricsDSN is a SQLite path or a postgres:// URL
	MetricsDSN string

	// Redis cache, disabled when RedisAddr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	threshold, err := strconv.ParseFloat(envOrDefault("DELAY_THRESHOLD", "15"), 64)
	if err != nil || threshold < 0 {
		return nil, errors.New("invalid DELAY_THRESHOLD")
	}

	redisDB, err := strconv.Atoi(envOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		DelayThreshold:     threshold,
		ModelPath:          envOrDefault("MODEL_PATH", "./models/model.json"),
		TrainingDataPath:   envOrDefault("TRAINING_DATA_PATH", "./data/data.csv"),
		StorageBackend:     strings.ToLower(envOrDefault("STORAGE_BACKEND", StorageLocal)),
		StorageRoot:        envOrDefault("STORAGE_ROOT", "./buckets"),
		ModelsBucket:       envOrDefault("MODELS_BUCKET_NAME", "models"),
		MetricsDSN:         envOrDefault("METRICS_DSN", "./data/metrics.db"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		CacheTTL:           cacheTTL,
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.StorageBackend != StorageLocal && cfg.StorageBackend != StorageGCS {
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q", StorageLocal, StorageGCS)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, errors.New("LOG_FORMAT must be json or text")
	}
	if strings.ContainsAny(cfg.ModelsBucket, `/\`) {
		return nil, errors.New("invalid MODELS_BUCKET_NAME")
	}

	return cfg, nil
}

// LoadDotEnv seeds unset variables from .env files. Missing files are
// ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range values {
			if os.Getenv(k) != "" {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
