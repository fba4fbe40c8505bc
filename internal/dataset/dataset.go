// Package dataset reads raw training CSV into column tables.
package dataset

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"flight-delay/internal/analytics"
	"flight-delay/internal/models"
)

// ReadCSV loads a CSV with a header row. Every column is kept as text;
// typing happens in the feature code.
func ReadCSV(r io.Reader) (analytics.ColumnTable, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", models.ErrData, df.Err)
	}

	table := make(analytics.ColumnTable, df.Ncol())
	for _, name := range df.Names() {
		table[name] = df.Col(name).Records()
	}
	return table, nil
}

// LoadTrainingRecords parses CSV training data into flight records
func LoadTrainingRecords(r io.Reader) ([]models.FlightRecord, error) {
	table, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	records, err := analytics.TrainingRecords(table)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: training data has no rows", models.ErrData)
	}
	return records, nil
}
