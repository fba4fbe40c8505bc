package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"flight-delay/internal/analytics"
	"flight-delay/internal/classifier"
	"flight-delay/internal/dataset"
	"flight-delay/internal/metrics"
	"flight-delay/internal/models"
	"flight-delay/internal/storage"
)

// ModelExtension suffix of model objects in the models bucket
const ModelExtension = ".json"

// TrainableModel is the model as seen by training and updates
type TrainableModel interface {
	Train(x [][]float64, y []int) (models.MetricsReport, *classifier.Classifier, error)
	Publish(clf *classifier.Classifier, version string) error
}

// ReportSaver persists training reports
type ReportSaver interface {
	SaveReport(ctx context.Context, modelID string, report models.MetricsReport, trainedAt time.Time) error
}

// TrainerConfig holds the training settings
type TrainerConfig struct {
	ModelsBucket     string
	TrainingDataPath string
	ThresholdMinutes float64
}

// Trainer runs the fit pipeline: load data, preprocess, train, persist, swap
type Trainer struct {
	model   TrainableModel
	blobs   storage.BlobStore
	reports ReportSaver
	clock   clockwork.Clock
	cfg     TrainerConfig
	logger  *slog.Logger
	newID   func() string
}

// NewTrainer creates a trainer
func NewTrainer(model TrainableModel, blobs storage.BlobStore, reports ReportSaver, clock clockwork.Clock, cfg TrainerConfig, logger *slog.Logger) *Trainer {
	return &Trainer{
		model:   model,
		blobs:   blobs,
		reports: reports,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// Train fits a new model and, once both the model and its report are
// persisted, swaps it into serving. A report failure removes the stored
// model again and leaves the served model untouched.
func (t *Trainer) Train(ctx context.Context, req models.FitRequest) (resp models.FitResponse, err error) {
	start := t.clock.Now()
	defer func() {
		metrics.ObserveTraining(t.clock.Since(start).Seconds(), resp.Metrics.Accuracy, err)
	}()

	if err := req.Validate(); err != nil {
		return models.FitResponse{}, err
	}

	raw, err := t.trainingData(ctx, req)
	if err != nil {
		return models.FitResponse{}, err
	}
	records, err := dataset.LoadTrainingRecords(bytes.NewReader(raw))
	if err != nil {
		return models.FitResponse{}, err
	}
	derived, err := analytics.Preprocess(records, t.cfg.ThresholdMinutes)
	if err != nil {
		return models.FitResponse{}, err
	}

	report, clf, err := t.model.Train(analytics.EncodeRecords(records), analytics.Labels(derived))
	if err != nil {
		return models.FitResponse{}, err
	}

	id := t.newID()
	if err := t.persist(ctx, id, clf, report, start); err != nil {
		return models.FitResponse{}, err
	}

	if err := t.model.Publish(clf, id); err != nil {
		return models.FitResponse{}, err
	}

	t.logger.Info("model trained",
		"model_id", id,
		"rows", len(records),
		"accuracy", report.Accuracy,
		"duration", t.clock.Since(start),
	)
	return models.FitResponse{TrainedModel: id, Metrics: report}, nil
}

func (t *Trainer) trainingData(ctx context.Context, req models.FitRequest) ([]byte, error) {
	if req.CloudData {
		name, data, err := t.blobs.Latest(ctx, req.BucketName)
		if err != nil {
			return nil, fmt.Errorf("fetch training data: %w", err)
		}
		t.logger.Info("training data fetched", "bucket", req.BucketName, "object", name, "bytes", len(data))
		return data, nil
	}

	data, err := os.ReadFile(t.cfg.TrainingDataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: training data %s", models.ErrNotFound, t.cfg.TrainingDataPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read training data: %w", err)
	}
	return data, nil
}

func (t *Trainer) persist(ctx context.Context, id string, clf *classifier.Classifier, report models.MetricsReport, trainedAt time.Time) error {
	data, err := clf.Marshal()
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	name := id + ModelExtension
	if err := t.blobs.Put(ctx, t.cfg.ModelsBucket, name, data); err != nil {
		return fmt.Errorf("store model: %w", err)
	}

	if err := t.reports.SaveReport(ctx, id, report, trainedAt); err != nil {
		if delErr := t.blobs.Delete(ctx, t.cfg.ModelsBucket, name); delErr != nil {
			t.logger.Error("failed to remove model after metrics failure", "model_id", id, "error", delErr)
		}
		return fmt.Errorf("store metrics: %w", err)
	}
	return nil
}
