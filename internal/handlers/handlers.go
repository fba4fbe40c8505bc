// Package handlers contains the HTTP API handlers
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"flight-delay/internal/models"
)

// Predictor serves predictions
type Predictor interface {
	Predict(ctx context.Context, flights []models.Flight) ([]int, error)
	PredictProba(ctx context.Context, flights []models.Flight) ([][2]float64, error)
}

// Trainer runs a training job
type Trainer interface {
	Train(ctx context.Context, req models.FitRequest) (models.FitResponse, error)
}

// Updater swaps in a stored model
type Updater interface {
	Update(ctx context.Context, modelID string) (models.UpdateResponse, error)
}

// ReportReader reads stored training reports
type ReportReader interface {
	Report(ctx context.Context, modelID string) (models.StoredReport, error)
}

// ModelInfo describes the served model
type ModelInfo interface {
	Version() string
}

// Pinger checks a dependency connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies of the HTTP handlers
type Handler struct {
	predictor Predictor
	trainer   Trainer
	updater   Updater
	reports   ReportReader
	model     ModelInfo
	cache     Pinger
	logger    *slog.Logger
	startTime time.Time
}

// NewHandler creates the handlers; cache may be nil when caching is off
func NewHandler(predictor Predictor, trainer Trainer, updater Updater, reports ReportReader, model ModelInfo, cache Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		predictor: predictor,
		trainer:   trainer,
		updater:   updater,
		reports:   reports,
		model:     model,
		cache:     cache,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Register mounts the API routes on router
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/predict", h.PredictHandler).Methods(http.MethodPost)
	router.HandleFunc("/predict-proba", h.PredictProbaHandler).Methods(http.MethodPost)
	router.HandleFunc("/fit", h.FitHandler).Methods(http.MethodPost)
	router.HandleFunc("/update-model", h.UpdateModelHandler).Methods(http.MethodGet)
	router.HandleFunc("/models/{model_id}/metrics", h.ModelMetricsHandler).Methods(http.MethodGet)
}

// HealthHandler handles GET /health
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if h.cache != nil {
		redisStatus = "connected"
		if err := h.cache.Ping(r.Context()); err != nil {
			redisStatus = "disconnected"
		}
	}

	status := models.HealthStatus{
		Status:       "OK",
		Timestamp:    time.Now(),
		ModelVersion: h.model.Version(),
		Redis:        redisStatus,
		Uptime:       time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// PredictHandler handles POST /predict
func (h *Handler) PredictHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.respondErr(w, r, err)
		return
	}

	pred, err := h.predictor.Predict(r.Context(), req.Flights)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, models.PredictResponse{Predict: pred}, http.StatusOK)
}

// PredictProbaHandler handles POST /predict-proba
func (h *Handler) PredictProbaHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.respondErr(w, r, err)
		return
	}

	proba, err := h.predictor.PredictProba(r.Context(), req.Flights)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, models.ProbaResponse{Predict: proba}, http.StatusOK)
}

// FitHandler handles POST /fit. An empty body trains on the local data file.
func (h *Handler) FitHandler(w http.ResponseWriter, r *http.Request) {
	var req models.FitRequest
	if err := decodeJSON(r, &req, true); err != nil {
		h.respondErr(w, r, err)
		return
	}

	resp, err := h.trainer.Train(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, resp, http.StatusOK)
}

// UpdateModelHandler handles GET /update-model?model_id=
func (h *Handler) UpdateModelHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.updater.Update(r.Context(), r.URL.Query().Get("model_id"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, resp, http.StatusOK)
}

// ModelMetricsHandler handles GET /models/{model_id}/metrics
func (h *Handler) ModelMetricsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["model_id"]
	if err := models.ValidateModelID(id); err != nil {
		h.respondErr(w, r, err)
		return
	}

	report, err := h.reports.Report(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, report, http.StatusOK)
}

// decodeJSON reads the request body into dest. Malformed bodies are
// validation errors; an empty body is accepted only when allowEmpty.
func decodeJSON(r *http.Request, dest interface{}, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dest)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", models.ErrValidation, err)
	}
	return nil
}

// statusFor maps error kinds onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.respondError(w, err.Error(), status)
}

// respondJSON writes a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// respondError writes an error in JSON
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	h.respondJSON(w, models.ErrorResponse{Error: message}, status)
}
