// Package db persists the evaluation report of every trained model.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flight-delay/internal/models"
)

// MetricsStore saves and reads training reports keyed by model id
type MetricsStore interface {
	SaveReport(ctx context.Context, modelID string, report models.MetricsReport, trainedAt time.Time) error
	Report(ctx context.Context, modelID string) (models.StoredReport, error)
	Close() error
}

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs
// use PostgreSQL, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (MetricsStore, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresStore(ctx, dsn)
	}
	return NewSQLiteStore(ctx, dsn)
}

// one row per model, the layout of the metrics table
const columns = `model_id,
	precision_0, recall_0, f1_score_0, support_0,
	precision_1, recall_1, f1_score_1, support_1,
	accuracy,
	precision_macro, recall_macro, f1_score_macro,
	precision_weighted, recall_weighted, f1_score_weighted,
	training_date`

const numColumns = 17

func rowValues(modelID string, r models.MetricsReport, trainedAt any) []any {
	return []any{
		modelID,
		r.NoDelay.Precision, r.NoDelay.Recall, r.NoDelay.F1Score, r.NoDelay.Support,
		r.Delay.Precision, r.Delay.Recall, r.Delay.F1Score, r.Delay.Support,
		r.Accuracy,
		r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1Score,
		r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1Score,
		trainedAt,
	}
}

func scanTargets(s *models.StoredReport, trainedAt any) []any {
	r := &s.Report
	return []any{
		&s.ModelID,
		&r.NoDelay.Precision, &r.NoDelay.Recall, &r.NoDelay.F1Score, &r.NoDelay.Support,
		&r.Delay.Precision, &r.Delay.Recall, &r.Delay.F1Score, &r.Delay.Support,
		&r.Accuracy,
		&r.MacroAvg.Precision, &r.MacroAvg.Recall, &r.MacroAvg.F1Score,
		&r.WeightedAvg.Precision, &r.WeightedAvg.Recall, &r.WeightedAvg.F1Score,
		trainedAt,
	}
}

// fillSupport restores the average supports, which are not stored
func fillSupport(s *models.StoredReport) {
	total := s.Report.NoDelay.Support + s.Report.Delay.Support
	s.Report.MacroAvg.Support = total
	s.Report.WeightedAvg.Support = total
}

// placeholders renders "$1, $2, ..." or "?, ?, ..."
func placeholders(n int, numbered bool) string {
	parts := make([]string, n)
	for i := range parts {
		if numbered {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func reportNotFound(modelID string) error {
	return fmt.Errorf("%w: no metrics for model %s", models.ErrNotFound, modelID)
}
