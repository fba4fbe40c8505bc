package models

import "time"

// ClassMetrics holds precision/recall/F1 for one class or one average
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// MetricsReport is the classification report of one training run,
// evaluated on the held-out partition
type MetricsReport struct {
	NoDelay     ClassMetrics `json:"0"`
	Delay       ClassMetrics `json:"1"`
	Accuracy    float64      `json:"accuracy"`
	MacroAvg    ClassMetrics `json:"macro avg"`
	WeightedAvg ClassMetrics `json:"weighted avg"`
}

// StoredReport is a MetricsReport as persisted in the metrics store
type StoredReport struct {
	ModelID   string        `json:"model_id"`
	TrainedAt time.Time     `json:"training_date"`
	Report    MetricsReport `json:"metrics"`
}

// HealthStatus represents the service health
type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	ModelVersion string    `json:"model_version"`
	Redis        string    `json:"redis"`
	Uptime       string    `json:"uptime"`
}

// ErrorResponse is the JSON body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}
