package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"flight-delay/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS model_metrics (
	model_id TEXT PRIMARY KEY,
	precision_0 REAL NOT NULL,
	recall_0 REAL NOT NULL,
	f1_score_0 REAL NOT NULL,
	support_0 INTEGER NOT NULL,
	precision_1 REAL NOT NULL,
	recall_1 REAL NOT NULL,
	f1_score_1 REAL NOT NULL,
	support_1 INTEGER NOT NULL,
	accuracy REAL NOT NULL,
	precision_macro REAL NOT NULL,
	recall_macro REAL NOT NULL,
	f1_score_macro REAL NOT NULL,
	precision_weighted REAL NOT NULL,
	recall_weighted REAL NOT NULL,
	f1_score_weighted REAL NOT NULL,
	training_date TEXT NOT NULL
)`

// SQLiteStore keeps reports in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates) the database at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveReport inserts one row; training_date is stored as RFC3339 UTC
func (s *SQLiteStore) SaveReport(ctx context.Context, modelID string, report models.MetricsReport, trainedAt time.Time) error {
	query := fmt.Sprintf("INSERT INTO model_metrics (%s) VALUES (%s)", columns, placeholders(numColumns, false))
	date := trainedAt.UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, query, rowValues(modelID, report, date)...); err != nil {
		return fmt.Errorf("insert metrics for %s: %w", modelID, err)
	}
	return nil
}

// Report reads the row of one model
func (s *SQLiteStore) Report(ctx context.Context, modelID string) (models.StoredReport, error) {
	query := fmt.Sprintf("SELECT %s FROM model_metrics WHERE model_id = ?", columns)

	var out models.StoredReport
	var date string
	err := s.db.QueryRowContext(ctx, query, modelID).Scan(scanTargets(&out, &date)...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredReport{}, reportNotFound(modelID)
	}
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("query metrics for %s: %w", modelID, err)
	}

	out.TrainedAt, err = time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("parse training_date %q: %w", date, err)
	}
	fillSupport(&out)
	return out, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
