package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a RetryConfig. Zero values keep
// the defaults.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return cfg
}

// FailedDocument records a document a batch run could not extract.
type FailedDocument struct {
	Path      string    `json:"path" yaml:"path"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	Stage     string    `json:"stage" yaml:"stage"`
	Error     string    `json:"error" yaml:"error"`
	ErrorType string    `json:"error_type" yaml:"error_type"`
	FailedAt  time.Time `json:"failed_at" yaml:"failed_at"`
}

// NewFailedDocument builds a record for err, classifying it.
func NewFailedDocument(path, runID, stage string, err error) FailedDocument {
	return FailedDocument{
		Path:      path,
		RunID:     runID,
		Stage:     stage,
		Error:     err.Error(),
		ErrorType: ClassifyError(err),
		FailedAt:  time.Now().UTC(),
	}
}

// Retryable reports whether resubmitting the document may succeed.
func (f FailedDocument) Retryable() bool {
	return f.ErrorType == "transient"
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
