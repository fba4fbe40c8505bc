package models

import "errors"

// Error kinds. Callers wrap them with fmt.Errorf("...: %w") and the HTTP
// layer classifies with errors.Is.
var (
	// ErrValidation malformed client input (400)
	ErrValidation = errors.New("validation error")
	// ErrData training or feature data with the wrong shape (500)
	ErrData = errors.New("data error")
	// ErrNotFound requested model or object does not exist (404)
	ErrNotFound = errors.New("not found")
	// ErrModelNotReady no fitted model is loaded and none could be loaded (503)
	ErrModelNotReady = errors.New("model not ready")
)
