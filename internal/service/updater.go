package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"flight-delay/internal/classifier"
	"flight-delay/internal/models"
	"flight-delay/internal/storage"
)

// LocalModel is a TrainableModel with a local copy that can be reloaded
type LocalModel interface {
	TrainableModel
	LoadLocal() error
}

// Updater swaps in models stored in the models bucket
type Updater struct {
	model  LocalModel
	blobs  storage.BlobStore
	bucket string
	logger *slog.Logger
}

// NewUpdater creates an updater for the given models bucket
func NewUpdater(model LocalModel, blobs storage.BlobStore, bucket string, logger *slog.Logger) *Updater {
	return &Updater{
		model:  model,
		blobs:  blobs,
		bucket: bucket,
		logger: logger,
	}
}

// Bootstrap loads the local model copy, falling back to the latest model
// in the bucket. Failures are logged; the service then starts without a
// model and serving answers "not ready" until one is trained or loaded.
func (u *Updater) Bootstrap(ctx context.Context) {
	err := u.model.LoadLocal()
	if err == nil {
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		u.logger.Warn("local model unusable", "error", err)
	}

	resp, err := u.Update(ctx, "")
	if err != nil {
		u.logger.Warn("no model loaded at startup", "error", err)
		return
	}
	u.logger.Info("model bootstrapped from bucket", "model_id", resp.UpdatedModel)
}

// Update loads modelID from the models bucket, or the most recent model
// when modelID is empty.
func (u *Updater) Update(ctx context.Context, modelID string) (models.UpdateResponse, error) {
	var data []byte
	if modelID != "" {
		if err := models.ValidateModelID(modelID); err != nil {
			return models.UpdateResponse{}, err
		}
		var err error
		data, err = u.blobs.Get(ctx, u.bucket, modelID+ModelExtension)
		if err != nil {
			return models.UpdateResponse{}, fmt.Errorf("model %s: %w", modelID, err)
		}
	} else {
		name, latest, err := u.blobs.Latest(ctx, u.bucket)
		if err != nil {
			return models.UpdateResponse{}, fmt.Errorf("latest model: %w", err)
		}
		modelID = strings.TrimSuffix(name, ModelExtension)
		data = latest
	}

	clf, err := classifier.Unmarshal(data)
	if err != nil {
		return models.UpdateResponse{}, fmt.Errorf("%w: model %s: %v", models.ErrData, modelID, err)
	}

	if err := u.model.Publish(clf, modelID); err != nil {
		return models.UpdateResponse{}, err
	}

	u.logger.Info("model updated", "model_id", modelID)
	return models.UpdateResponse{UpdatedModel: modelID, Status: "updated"}, nil
}
