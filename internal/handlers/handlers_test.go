package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-delay/internal/delaymodel"
	"flight-delay/internal/models"
	"flight-delay/internal/service"
)

type fakePredictor struct {
	pred  []int
	proba [][2]float64
	err   error
	got   []models.Flight
}

func (f *fakePredictor) Predict(_ context.Context, flights []models.Flight) ([]int, error) {
	f.got = flights
	return f.pred, f.err
}

func (f *fakePredictor) PredictProba(_ context.Context, flights []models.Flight) ([][2]float64, error) {
	f.got = flights
	return f.proba, f.err
}

type fakeTrainer struct {
	resp models.FitResponse
	err  error
	got  models.FitRequest
}

func (f *fakeTrainer) Train(_ context.Context, req models.FitRequest) (models.FitResponse, error) {
	f.got = req
	return f.resp, f.err
}

type fakeUpdater struct {
	err error
	got string
}

func (f *fakeUpdater) Update(_ context.Context, modelID string) (models.UpdateResponse, error) {
	f.got = modelID
	if f.err != nil {
		return models.UpdateResponse{}, f.err
	}
	return models.UpdateResponse{UpdatedModel: modelID, Status: "updated"}, nil
}

type fakeReports struct {
	reports map[string]models.StoredReport
}

func (f *fakeReports) Report(_ context.Context, id string) (models.StoredReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return models.StoredReport{}, fmt.Errorf("%w: no metrics for model %s", models.ErrNotFound, id)
	}
	return r, nil
}

type fakeModel string

func (m fakeModel) Version() string { return string(m) }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// untouchableModel fails the test if a request reaches the classifier
type untouchableModel struct{ t *testing.T }

func (m untouchableModel) Snapshot(context.Context) (delaymodel.Scorer, string, error) {
	m.t.Error("model must not be called")
	return nil, "", models.ErrModelNotReady
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	predictor *fakePredictor
	trainer   *fakeTrainer
	updater   *fakeUpdater
	reports   *fakeReports
	router    http.Handler
}

func newFixture(cache Pinger) *fixture {
	f := &fixture{
		predictor: &fakePredictor{},
		trainer:   &fakeTrainer{},
		updater:   &fakeUpdater{},
		reports:   &fakeReports{reports: map[string]models.StoredReport{}},
	}
	h := NewHandler(f.predictor, f.trainer, f.updater, f.reports, fakeModel("v1"), cache, testLogger())
	f.router = NewRouter(h, nil)
	return f
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

const validBody = `{"flights":[{"OPERA":"Aerolineas Argentinas","TIPOVUELO":"N","MES":3}]}`

func TestHealth(t *testing.T) {
	tests := []struct {
		name  string
		cache Pinger
		want  string
	}{
		{"no cache", nil, "disabled"},
		{"cache up", fakePinger{}, "connected"},
		{"cache down", fakePinger{err: errors.New("refused")}, "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.cache)
			rec := do(t, f.router, http.MethodGet, "/health", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var got models.HealthStatus
			decode(t, rec, &got)
			assert.Equal(t, "OK", got.Status)
			assert.Equal(t, "v1", got.ModelVersion)
			assert.Equal(t, tt.want, got.Redis)
		})
	}
}

func TestPredict(t *testing.T) {
	f := newFixture(nil)
	f.predictor.pred = []int{0}

	rec := do(t, f.router, http.MethodPost, "/predict", validBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"predict":[0]}`, rec.Body.String())
	assert.Equal(t, []models.Flight{{Opera: "Aerolineas Argentinas", FlightType: "N", Month: 3}}, f.predictor.got)
}

func TestPredictProba(t *testing.T) {
	f := newFixture(nil)
	f.predictor.proba = [][2]float64{{0.75, 0.25}}

	rec := do(t, f.router, http.MethodPost, "/predict-proba", validBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"predict":[[0.75,0.25]]}`, rec.Body.String())
}

func TestPredict_UnknownAirlineRejected(t *testing.T) {
	p := service.NewPredictor(untouchableModel{t: t}, nil, testLogger())
	h := NewHandler(p, &fakeTrainer{}, &fakeUpdater{}, &fakeReports{}, fakeModel("v1"), nil, testLogger())
	router := NewRouter(h, nil)

	bodies := []string{
		`{"flights":[{"OPERA":"Argentinas","TIPOVUELO":"N","MES":3}]}`,
		`{"flights":[{"OPERA":"Aerolineas Argentinas","TIPOVUELO":"O","MES":3}]}`,
		`{"flights":[{"OPERA":"Aerolineas Argentinas","TIPOVUELO":"N","MES":13}]}`,
		`{"flights":[]}`,
	}
	for _, body := range bodies {
		rec := do(t, router, http.MethodPost, "/predict", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)

		var e models.ErrorResponse
		decode(t, rec, &e)
		assert.NotEmpty(t, e.Error)
	}
}

func TestPredict_MalformedJSON(t *testing.T) {
	f := newFixture(nil)

	for _, body := range []string{"", "{", `{"flights":[{"MES":"3"}]}`} {
		rec := do(t, f.router, http.MethodPost, "/predict", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestPredict_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrModelNotReady, http.StatusServiceUnavailable},
		{fmt.Errorf("wrap: %w", models.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", models.ErrData), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		f := newFixture(nil)
		f.predictor.err = tt.err
		rec := do(t, f.router, http.MethodPost, "/predict", validBody)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestFit(t *testing.T) {
	f := newFixture(nil)
	f.trainer.resp = models.FitResponse{
		TrainedModel: "abc",
		Metrics:      models.MetricsReport{Accuracy: 0.8},
	}

	rec := do(t, f.router, http.MethodPost, "/fit", `{"bucket_name":"training","cloud_data":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FitRequest{BucketName: "training", CloudData: true}, f.trainer.got)

	var got models.FitResponse
	decode(t, rec, &got)
	assert.Equal(t, "abc", got.TrainedModel)
	assert.Equal(t, 0.8, got.Metrics.Accuracy)
}

func TestFit_EmptyBody(t *testing.T) {
	f := newFixture(nil)

	rec := do(t, f.router, http.MethodPost, "/fit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.FitRequest{}, f.trainer.got)
}

func TestUpdateModel(t *testing.T) {
	f := newFixture(nil)

	rec := do(t, f.router, http.MethodGet, "/update-model?model_id=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", f.updater.got)
	assert.JSONEq(t, `{"updated_model":"abc","status":"updated"}`, rec.Body.String())

	f.updater.err = fmt.Errorf("%w: model x", models.ErrNotFound)
	rec = do(t, f.router, http.MethodGet, "/update-model?model_id=x", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModelMetrics(t *testing.T) {
	f := newFixture(nil)
	f.reports.reports["abc"] = models.StoredReport{
		ModelID:   "abc",
		TrainedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Report:    models.MetricsReport{Accuracy: 0.7},
	}

	rec := do(t, f.router, http.MethodGet, "/models/abc/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.StoredReport
	decode(t, rec, &got)
	assert.Equal(t, "abc", got.ModelID)
	assert.Equal(t, 0.7, got.Report.Accuracy)

	rec = do(t, f.router, http.MethodGet, "/models/nope/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, f.router, http.MethodGet, "/models/abc.json/metrics", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(nil)
	rec := do(t, f.router, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUnmatchedRequestsLoggedAndCounted(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := NewHandler(&fakePredictor{}, &fakeTrainer{}, &fakeUpdater{}, &fakeReports{}, fakeModel("v1"), nil, logger)
	router := NewRouter(h, nil)

	rec := do(t, router, http.MethodGet, "/no-such-route", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body models.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "not found", body.Error)

	rec = do(t, router, http.MethodDelete, "/fit", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Contains(t, logs.String(), "path=/no-such-route status=404")
	assert.Contains(t, logs.String(), "path=/fit status=405")

	rec = do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `flight_delay_requests_total{endpoint="unmatched",method="GET",status="404"}`)
	assert.Contains(t, rec.Body.String(), `flight_delay_requests_total{endpoint="unmatched",method="DELETE",status="405"}`)
}

func TestPrometheusEndpoint(t *testing.T) {
	f := newFixture(nil)
	do(t, f.router, http.MethodGet, "/health", "")

	rec := do(t, f.router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flight_delay_requests_total")
}

func TestCORS(t *testing.T) {
	h := NewHandler(&fakePredictor{}, &fakeTrainer{}, &fakeUpdater{}, &fakeReports{}, fakeModel(""), nil, testLogger())
	router := NewRouter(h, []string{"https://example.com"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
