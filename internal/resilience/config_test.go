package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 100, 2000)
	if cfg.MaxAttempts != 5 || cfg.InitialBackoff != 100*time.Millisecond || cfg.MaxBackoff != 2*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}

	def := FromRetryConfig(0, 0, 0)
	if def.MaxAttempts != 3 {
		t.Errorf("expected default attempts, got %d", def.MaxAttempts)
	}
}

func TestFailedDocument(t *testing.T) {
	f := NewFailedDocument("lots/lot02.xlsx", "run-1", "fetch", NewTransientError(errors.New("503"), 503))
	if f.ErrorType != "transient" || !f.Retryable() {
		t.Errorf("expected transient retryable failure, got %+v", f)
	}
	if f.FailedAt.IsZero() {
		t.Error("expected failure time")
	}

	p := NewFailedDocument("lots/lot03.xlsx", "run-2", "extract", errors.New("no worksheet"))
	if p.ErrorType != "permanent" || p.Retryable() {
		t.Errorf("expected permanent failure, got %+v", p)
	}
}
