// Package service orchestrates training, serving and model updates on top
// of the delay model and its stores.
package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"

	"flight-delay/internal/analytics"
	"flight-delay/internal/cache"
	"flight-delay/internal/delaymodel"
	"flight-delay/internal/metrics"
	"flight-delay/internal/models"
)

// Cache is an optional result cache. Get returns cache.ErrMiss for absent keys.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

// ServingModel is the model as seen by the serving path. Snapshot returns
// the classifier and the version it is served under as one pair.
type ServingModel interface {
	Snapshot(ctx context.Context) (delaymodel.Scorer, string, error)
}

// Predictor answers prediction requests, memoizing results in the cache
type Predictor struct {
	model  ServingModel
	cache  Cache
	logger *slog.Logger
}

// NewPredictor creates a predictor; cache may be nil
func NewPredictor(model ServingModel, c Cache, logger *slog.Logger) *Predictor {
	return &Predictor{
		model:  model,
		cache:  c,
		logger: logger,
	}
}

// Predict returns the delay label of every flight
func (p *Predictor) Predict(ctx context.Context, flights []models.Flight) ([]int, error) {
	if err := (models.PredictRequest{Flights: flights}).Validate(); err != nil {
		return nil, err
	}
	scorer, version, err := p.model.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	key := p.key(cache.PredictKeyPrefix, version, flights)

	var cached []int
	if p.lookup(ctx, key, &cached) {
		return cached, nil
	}

	out, err := scorer.Predict(analytics.EncodeFlights(flights))
	if err != nil {
		return nil, err
	}
	metrics.PredictionsTotal.WithLabelValues("label").Add(float64(len(out)))
	p.store(ctx, key, out)
	return out, nil
}

// PredictProba returns [p(no delay), p(delay)] for every flight
func (p *Predictor) PredictProba(ctx context.Context, flights []models.Flight) ([][2]float64, error) {
	if err := (models.PredictRequest{Flights: flights}).Validate(); err != nil {
		return nil, err
	}
	scorer, version, err := p.model.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	key := p.key(cache.ProbaKeyPrefix, version, flights)

	var cached [][2]float64
	if p.lookup(ctx, key, &cached) {
		return cached, nil
	}

	out, err := scorer.PredictProba(analytics.EncodeFlights(flights))
	if err != nil {
		return nil, err
	}
	metrics.PredictionsTotal.WithLabelValues("proba").Add(float64(len(out)))
	p.store(ctx, key, out)
	return out, nil
}

// key is prefix + model version + md5 of the flights as sorted-key JSON.
// It is empty when there is no cache or the model has no version.
func (p *Predictor) key(prefix, version string, flights []models.Flight) string {
	if p.cache == nil || version == "" {
		return ""
	}
	return prefix + version + ":" + RequestKey(flights)
}

// RequestKey hashes the flight list independently of field order
func RequestKey(flights []models.Flight) string {
	rows := make([]map[string]interface{}, len(flights))
	for i, f := range flights {
		rows[i] = map[string]interface{}{
			analytics.ColumnOpera:      f.Opera,
			analytics.ColumnFlightType: f.FlightType,
			analytics.ColumnMonth:      f.Month,
		}
	}
	// encoding/json writes map keys sorted
	data, _ := json.Marshal(rows)
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (p *Predictor) lookup(ctx context.Context, key string, dest interface{}) bool {
	if key == "" {
		return false
	}
	err := p.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		metrics.CacheHits.Inc()
		return true
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheMisses.Inc()
	default:
		metrics.CacheErrors.WithLabelValues("get").Inc()
		p.logger.Warn("cache get failed", "key", key, "error", err)
	}
	return false
}

func (p *Predictor) store(ctx context.Context, key string, value interface{}) {
	if key == "" {
		return
	}
	if err := p.cache.Set(ctx, key, value); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		p.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
