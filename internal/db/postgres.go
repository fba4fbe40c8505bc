package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flight-delay/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS model_metrics (
	model_id TEXT PRIMARY KEY,
	precision_0 DOUBLE PRECISION NOT NULL,
	recall_0 DOUBLE PRECISION NOT NULL,
	f1_score_0 DOUBLE PRECISION NOT NULL,
	support_0 INTEGER NOT NULL,
	precision_1 DOUBLE PRECISION NOT NULL,
	recall_1 DOUBLE PRECISION NOT NULL,
	f1_score_1 DOUBLE PRECISION NOT NULL,
	support_1 INTEGER NOT NULL,
	accuracy DOUBLE PRECISION NOT NULL,
	precision_macro DOUBLE PRECISION NOT NULL,
	recall_macro DOUBLE PRECISION NOT NULL,
	f1_score_macro DOUBLE PRECISION NOT NULL,
	precision_weighted DOUBLE PRECISION NOT NULL,
	recall_weighted DOUBLE PRECISION NOT NULL,
	f1_score_weighted DOUBLE PRECISION NOT NULL,
	training_date TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps reports in PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and creates the table if missing
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, modelID string, report models.MetricsReport, trainedAt time.Time) error {
	query := fmt.Sprintf("INSERT INTO model_metrics (%s) VALUES (%s)", columns, placeholders(numColumns, true))
	if _, err := s.pool.Exec(ctx, query, rowValues(modelID, report, trainedAt.UTC())...); err != nil {
		return fmt.Errorf("insert metrics for %s: %w", modelID, err)
	}
	return nil
}

func (s *PostgresStore) Report(ctx context.Context, modelID string) (models.StoredReport, error) {
	query := fmt.Sprintf("SELECT %s FROM model_metrics WHERE model_id = $1", columns)

	var out models.StoredReport
	err := s.pool.QueryRow(ctx, query, modelID).Scan(scanTargets(&out, &out.TrainedAt)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StoredReport{}, reportNotFound(modelID)
	}
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("query metrics for %s: %w", modelID, err)
	}
	fillSupport(&out)
	return out, nil
}

// Close never fails; it returns error to satisfy MetricsStore
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
