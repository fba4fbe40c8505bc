package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flight-delay/internal/analytics"
	"flight-delay/internal/cache"
	"flight-delay/internal/classifier"
	"flight-delay/internal/dataset"
	"flight-delay/internal/delaymodel"
	"flight-delay/internal/models"
	"flight-delay/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testParams() classifier.Params {
	p := classifier.DefaultParams()
	p.NumTrees = 20
	return p
}

// trainingCSV renders n rows where international flights and July
// flights leave 30 minutes late and everything else 5 minutes late.
func trainingCSV(n int) string {
	airlines := []string{"Grupo LATAM", "Sky Airline", "Copa Air", "Latin American Wings"}
	var b strings.Builder
	b.WriteString("Fecha-I,Vlo-I,Fecha-O,DIA,MES,AÑO,TIPOVUELO,OPERA\n")
	for i := 0; i < n; i++ {
		month := i%12 + 1
		kind := "N"
		if (i/12)%3 == 0 {
			kind = "I"
		}
		late := 5
		if kind == "I" || month == 7 {
			late = 30
		}
		fmt.Fprintf(&b, "2017-%02d-10 08:00:00,%d,2017-%02d-10 08:%02d:00,10,%d,2017,%s,%s\n",
			month, 100+i, month, late, month, kind, airlines[i%len(airlines)])
	}
	return b.String()
}

func trainedClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	records, err := dataset.LoadTrainingRecords(strings.NewReader(trainingCSV(240)))
	require.NoError(t, err)
	derived, err := analytics.Preprocess(records, analytics.DefaultThresholdMinutes)
	require.NoError(t, err)
	_, clf, err := classifier.Fit(analytics.EncodeRecords(records), analytics.Labels(derived), testParams())
	require.NoError(t, err)
	return clf
}

func newModel(t *testing.T) *delaymodel.Model {
	t.Helper()
	return delaymodel.New(filepath.Join(t.TempDir(), "models", "model.json"), testParams(), testLogger())
}

func newStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	s, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "buckets"))
	require.NoError(t, err)
	return s
}

type savedReport struct {
	modelID   string
	report    models.MetricsReport
	trainedAt time.Time
}

type fakeReports struct {
	mu    sync.Mutex
	saved []savedReport
	err   error
}

func (f *fakeReports) SaveReport(_ context.Context, modelID string, report models.MetricsReport, trainedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, savedReport{modelID: modelID, report: report, trainedAt: trainedAt})
	return nil
}

// memCache stores JSON like the Redis cache does
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(v, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, interface{}) error {
	return errors.New("connection refused")
}
