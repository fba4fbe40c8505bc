package analytics

import (
	"fmt"
	"strconv"
	"strings"

	"flight-delay/internal/models"
)

// Raw column names of the training data
const (
	ColumnOpera      = "OPERA"
	ColumnFlightType = "TIPOVUELO"
	ColumnMonth      = "MES"
	ColumnScheduled  = "Fecha-I"
	ColumnDeparted   = "Fecha-O"
)

// featureSchema is the fixed top-10 one-hot schema, in model column order
var featureSchema = []string{
	"OPERA_Latin American Wings",
	"MES_7",
	"MES_10",
	"OPERA_Grupo LATAM",
	"MES_12",
	"TIPOVUELO_I",
	"MES_4",
	"MES_11",
	"OPERA_Sky Airline",
	"OPERA_Copa Air",
}

// FeatureNames returns the feature schema in column order
func FeatureNames() []string {
	names := make([]string, len(featureSchema))
	copy(names, featureSchema)
	return names
}

// NumFeatures width of every feature vector
func NumFeatures() int {
	return len(featureSchema)
}

// ColumnTable is raw tabular data keyed by column name
type ColumnTable map[string][]string

// Rows returns the row count, taken from the first column found
func (t ColumnTable) Rows() int {
	for _, col := range t {
		return len(col)
	}
	return 0
}

// require checks the named columns are present and equally long
func (t ColumnTable) require(names ...string) error {
	n := -1
	for _, name := range names {
		col, ok := t[name]
		if !ok {
			return fmt.Errorf("%w: missing required column %q", models.ErrData, name)
		}
		if n >= 0 && len(col) != n {
			return fmt.Errorf("%w: column %q has %d rows, expected %d", models.ErrData, name, len(col), n)
		}
		n = len(col)
	}
	return nil
}

// encodeRow one-hot encodes a single flight and reindexes it onto the
// schema. Dummies outside the schema are dropped, schema columns
// without a dummy stay 0.
func encodeRow(opera, flightType string, month int) []float64 {
	dummies := make(map[string]float64, 3)
	dummies[ColumnOpera+"_"+opera] = 1
	dummies[ColumnFlightType+"_"+flightType] = 1
	dummies[ColumnMonth+"_"+strconv.Itoa(month)] = 1

	row := make([]float64, len(featureSchema))
	for i, name := range featureSchema {
		row[i] = dummies[name]
	}
	return row
}

// EncodeFlights builds the feature matrix for validated flights
func EncodeFlights(flights []models.Flight) [][]float64 {
	out := make([][]float64, len(flights))
	for i, f := range flights {
		out[i] = encodeRow(f.Opera, f.FlightType, f.Month)
	}
	return out
}

// EncodeRecords builds the feature matrix for training records
func EncodeRecords(records []models.FlightRecord) [][]float64 {
	out := make([][]float64, len(records))
	for i, r := range records {
		out[i] = encodeRow(r.Opera, r.FlightType, r.Month)
	}
	return out
}

// EncodeTable builds the feature matrix from raw columns. It fails with
// models.ErrData when OPERA, TIPOVUELO or MES is missing.
func EncodeTable(t ColumnTable) ([][]float64, error) {
	flights, err := tableFlights(t)
	if err != nil {
		return nil, err
	}
	return EncodeFlights(flights), nil
}

// TrainingRecords converts raw columns into training records. Besides the
// categorical columns it requires Fecha-I and Fecha-O.
func TrainingRecords(t ColumnTable) ([]models.FlightRecord, error) {
	if err := t.require(ColumnOpera, ColumnFlightType, ColumnMonth, ColumnScheduled, ColumnDeparted); err != nil {
		return nil, err
	}
	flights, err := tableFlights(t)
	if err != nil {
		return nil, err
	}

	scheduled, departed := t[ColumnScheduled], t[ColumnDeparted]
	records := make([]models.FlightRecord, len(flights))
	for i, f := range flights {
		records[i] = models.FlightRecord{
			Flight:      f,
			ScheduledAt: scheduled[i],
			DepartedAt:  departed[i],
		}
	}
	return records, nil
}

func tableFlights(t ColumnTable) ([]models.Flight, error) {
	if err := t.require(ColumnOpera, ColumnFlightType, ColumnMonth); err != nil {
		return nil, err
	}

	opera, flightType, month := t[ColumnOpera], t[ColumnFlightType], t[ColumnMonth]
	flights := make([]models.Flight, len(opera))
	for i := range opera {
		m, err := strconv.Atoi(strings.TrimSpace(month[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: bad MES %q", models.ErrData, i, month[i])
		}
		flights[i] = models.Flight{
			Opera:      strings.TrimSpace(opera[i]),
			FlightType: strings.TrimSpace(flightType[i]),
			Month:      m,
		}
	}
	return flights, nil
}
