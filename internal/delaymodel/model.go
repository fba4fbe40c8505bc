// Package delaymodel holds the process-wide delay classifier. Readers take
// one snapshot per call; a new model only ever replaces the old one whole.
package delaymodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"flight-delay/internal/analytics"
	"flight-delay/internal/classifier"
	"flight-delay/internal/metrics"
	"flight-delay/internal/models"
)

// Model is safe for concurrent use
type Model struct {
	path   string
	params classifier.Params
	logger *slog.Logger

	current atomic.Pointer[entry]
	loadMu  sync.Mutex
	// mu serializes writers so the local copy matches the served model
	mu sync.Mutex
}

// Scorer is one immutable classifier
type Scorer interface {
	Predict(x [][]float64) ([]int, error)
	PredictProba(x [][]float64) ([][2]float64, error)
}

type entry struct {
	clf     *classifier.Classifier
	version string
}

// localFile is the on-disk layout of the local model copy
type localFile struct {
	ModelID    string          `json:"model_id"`
	Classifier json.RawMessage `json:"classifier"`
}

// New returns an uninitialized model that lazily loads localPath on first use
func New(localPath string, params classifier.Params, logger *slog.Logger) *Model {
	return &Model{
		path:   localPath,
		params: params,
		logger: logger,
	}
}

// Train fits a new classifier without touching the served one
func (m *Model) Train(x [][]float64, y []int) (models.MetricsReport, *classifier.Classifier, error) {
	return classifier.Fit(x, y, m.params)
}

// Fit trains and swaps the result in under version
func (m *Model) Fit(x [][]float64, y []int, version string) (models.MetricsReport, error) {
	report, clf, err := m.Train(x, y)
	if err != nil {
		return models.MetricsReport{}, err
	}
	if err := m.Load(clf, version); err != nil {
		return models.MetricsReport{}, err
	}
	return report, nil
}

// Load atomically replaces the served classifier
func (m *Model) Load(clf *classifier.Classifier, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(clf, version)
}

// Publish writes the local copy of clf and then serves it under version.
// A failed local write is logged and the model is served anyway.
func (m *Model) Publish(clf *classifier.Classifier, version string) error {
	if err := check(clf); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.StoreLocal(version, clf); err != nil {
		m.logger.Warn("failed to write local model copy", "version", version, "error", err)
	}
	return m.load(clf, version)
}

func check(clf *classifier.Classifier) error {
	if clf == nil {
		return errors.New("load model: nil classifier")
	}
	if clf.NumFeatures != analytics.NumFeatures() {
		return fmt.Errorf("%w: model has %d features, encoder produces %d", models.ErrData, clf.NumFeatures, analytics.NumFeatures())
	}
	return nil
}

func (m *Model) load(clf *classifier.Classifier, version string) error {
	if err := check(clf); err != nil {
		return err
	}
	m.current.Store(&entry{clf: clf, version: version})
	metrics.ModelLoaded.Set(1)
	m.logger.Info("model loaded", "version", version, "trees", len(clf.Trees))
	return nil
}

// Version returns the id of the served model, empty when none is loaded
func (m *Model) Version() string {
	if e := m.current.Load(); e != nil {
		return e.version
	}
	return ""
}

// Ready reports whether a model is loaded
func (m *Model) Ready() bool {
	return m.current.Load() != nil
}

// Snapshot returns the served classifier together with its version. The
// pair stays consistent even if another model is loaded afterwards.
func (m *Model) Snapshot(ctx context.Context) (Scorer, string, error) {
	e, err := m.snapshot(ctx)
	if err != nil {
		return nil, "", err
	}
	return e.clf, e.version, nil
}

// Predict returns 0/1 per row
func (m *Model) Predict(ctx context.Context, x [][]float64) ([]int, error) {
	e, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.clf.Predict(x)
}

// PredictProba returns [p(0), p(1)] per row
func (m *Model) PredictProba(ctx context.Context, x [][]float64) ([][2]float64, error) {
	e, err := m.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.clf.PredictProba(x)
}

func (m *Model) snapshot(ctx context.Context) (*entry, error) {
	if e := m.current.Load(); e != nil {
		return e, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if e := m.current.Load(); e != nil {
		return e, nil
	}
	if err := m.LoadLocal(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.ErrModelNotReady
		}
		return nil, err
	}
	return m.current.Load(), nil
}

// LoadLocal reads the local model copy and swaps it in
func (m *Model) LoadLocal() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read local model: %w", err)
	}
	var f localFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode local model %s: %w", m.path, err)
	}
	clf, err := classifier.Unmarshal(f.Classifier)
	if err != nil {
		return fmt.Errorf("local model %s: %w", m.path, err)
	}
	return m.load(clf, f.ModelID)
}

// StoreLocal writes the local model copy. The file is replaced by rename
// so a concurrent LoadLocal never sees a partial write.
func (m *Model) StoreLocal(version string, clf *classifier.Classifier) error {
	raw, err := clf.Marshal()
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	data, err := json.Marshal(localFile{ModelID: version, Classifier: raw})
	if err != nil {
		return fmt.Errorf("encode local model: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp model: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("replace local model: %w", err)
	}
	return nil
}
