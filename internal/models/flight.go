// Package models contains the data structures shared by the API and the model pipeline
package models

import (
	"fmt"
	"strings"
)

// Flight types accepted in TIPOVUELO
const (
	FlightTypeNational      = "N"
	FlightTypeInternational = "I"
)

// ValidAirlines lists every operator the model knows about
var ValidAirlines = []string{
	"Grupo LATAM",
	"Sky Airline",
	"Aerolineas Argentinas",
	"Copa Air",
	"Latin American Wings",
	"Avianca",
	"JetSmart SPA",
	"Gol Trans",
	"American Airlines",
	"Air Canada",
	"Iberia",
	"Delta Air",
	"Air France",
	"Aeromexico",
	"United Airlines",
	"Oceanair Linhas Aereas",
	"Alitalia",
	"K.L.M.",
	"British Airways",
	"Qantas Airways",
	"Lacsa",
	"Austral",
	"Plus Ultra Lineas Aereas",
}

var validAirlines = func() map[string]struct{} {
	m := make(map[string]struct{}, len(ValidAirlines))
	for _, a := range ValidAirlines {
		m[a] = struct{}{}
	}
	return m
}()

// IsValidAirline reports whether name is one of ValidAirlines
func IsValidAirline(name string) bool {
	_, ok := validAirlines[name]
	return ok
}

// Flight is a flight as received by the prediction endpoints
type Flight struct {
	Opera      string `json:"OPERA"`
	FlightType string `json:"TIPOVUELO"`
	Month      int    `json:"MES"`
}

// Validate checks the flight against the known airlines, flight types and months
func (f Flight) Validate() error {
	if !IsValidAirline(f.Opera) {
		return fmt.Errorf("%w: invalid OPERA %q", ErrValidation, f.Opera)
	}
	if f.FlightType != FlightTypeNational && f.FlightType != FlightTypeInternational {
		return fmt.Errorf("%w: invalid TIPOVUELO %q, must be N or I", ErrValidation, f.FlightType)
	}
	if f.Month < 1 || f.Month > 12 {
		return fmt.Errorf("%w: invalid MES %d, must be between 1 and 12", ErrValidation, f.Month)
	}
	return nil
}

// FlightRecord is a raw training row: a flight plus its scheduled and actual departure
type FlightRecord struct {
	Flight
	ScheduledAt string `json:"Fecha-I"`
	DepartedAt  string `json:"Fecha-O"`
}

// PredictRequest is the body of POST /predict and POST /predict-proba
type PredictRequest struct {
	Flights []Flight `json:"flights"`
}

// Validate rejects empty requests and any invalid flight
func (r PredictRequest) Validate() error {
	if len(r.Flights) == 0 {
		return fmt.Errorf("%w: flights must not be empty", ErrValidation)
	}
	for i, f := range r.Flights {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("flights[%d]: %w", i, err)
		}
	}
	return nil
}

// PredictResponse carries hard delay labels
type PredictResponse struct {
	Predict []int `json:"predict"`
}

// ProbaResponse carries [p(no delay), p(delay)] per flight
type ProbaResponse struct {
	Predict [][2]float64 `json:"predict"`
}

// FitRequest is the body of POST /fit
type FitRequest struct {
	BucketName string `json:"bucket_name"`
	CloudData  bool   `json:"cloud_data"`
}

// Validate requires a bucket when training from the blob store
func (r FitRequest) Validate() error {
	if r.CloudData && strings.TrimSpace(r.BucketName) == "" {
		return fmt.Errorf("%w: bucket_name is required when cloud_data is true", ErrValidation)
	}
	return nil
}

// FitResponse is returned after a successful training run
type FitResponse struct {
	TrainedModel string        `json:"trained_model"`
	Metrics      MetricsReport `json:"metrics"`
}

// UpdateResponse is returned by GET /update-model
type UpdateResponse struct {
	UpdatedModel string `json:"updated_model"`
	Status       string `json:"status"`
}

// ValidateModelID rejects identifiers that carry an extension or a path
func ValidateModelID(id string) error {
	if strings.ContainsAny(id, "./\\") {
		return fmt.Errorf("%w: model id %q should not have extension or path", ErrValidation, id)
	}
	return nil
}
