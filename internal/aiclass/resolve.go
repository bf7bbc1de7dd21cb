package aiclass

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dpgf-extract/internal/classify"
	"github.com/sells-group/dpgf-extract/internal/config"
	"github.com/sells-group/dpgf-extract/internal/lot"
	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/resilience"
	"github.com/sells-group/dpgf-extract/internal/store"
	"github.com/sells-group/dpgf-extract/pkg/anthropic"
)

// ResolveLabels labels rows chunk by chunk with ext, falling back to
// heuristic for any chunk ext fails on. Each failed chunk yields an
// ai_fallback warning until the breaker opens; after that one warning
// covers the rest. A nil ext labels everything heuristically.
func ResolveLabels(ctx context.Context, ext, heuristic classify.Labeler, rows []classify.RowText, chunkSize int) (map[int]classify.Label, []model.Warning) {
	out := make(map[int]classify.Label, len(rows))
	var warnings []model.Warning

	for i, chunk := range Chunks(rows, chunkSize) {
		var (
			labels []classify.Label
			err    error
		)
		if ext != nil {
			labels, err = ext.Label(ctx, chunk)
		}
		if ext == nil || err != nil {
			if err != nil {
				logFallback(i, chunk, err)
				if !errors.Is(err, ErrUnavailable) || len(warnings) == 0 {
					warnings = append(warnings, model.Warning{
						Row:     chunk[0].Row,
						Kind:    model.WarnAIFallback,
						Message: "row labels fell back to heuristic: " + err.Error(),
					})
				}
			}
			labels, _ = heuristic.Label(ctx, chunk)
		}
		for _, l := range labels {
			if l.Kind.Valid() {
				out[l.Row] = l
			}
		}
	}
	return out, warnings
}

func logFallback(chunk int, rows []classify.RowText, err error) {
	log := zap.L().With(zap.Int("chunk", chunk), zap.Int("first_row", rows[0].Row))
	if errors.Is(err, ErrUnavailable) {
		log.Debug("aiclass: labeler unavailable, using heuristic")
		return
	}
	log.Warn("aiclass: labeling failed, using heuristic", zap.Error(err))
}

// Service assembles the decorated labeler and lot service for each run.
// The limiter is shared across runs; breakers are per run.
type Service struct {
	client    anthropic.Client
	model     string
	store     store.Store
	limiter   *rate.Limiter
	breakers  *resilience.RunBreakers
	retry     resilience.RetryConfig
	timeout   time.Duration
	chunkSize int
}

// NewService builds a Service from configuration. st may be nil to disable
// the label cache.
func NewService(client anthropic.Client, cfg config.AnthropicConfig, st store.Store) *Service {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Service{
		client:    client,
		model:     cfg.Model,
		store:     st,
		limiter:   rate.NewLimiter(limit, burst),
		breakers:  resilience.NewRunBreakers(resilience.RunBreakerConfig(cfg.FailureThreshold)),
		retry:     retryConfig(cfg.MaxAttempts),
		timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		chunkSize: cfg.ChunkSize,
	}
}

func retryConfig(attempts int) resilience.RetryConfig {
	rc := resilience.FromRetryConfig(attempts, 0, 0)
	rc.ShouldRetry = retryable
	rc.OnRetry = resilience.RetryLogger("anthropic", "messages")
	return rc
}

// ChunkSize returns the configured rows per labeling call.
func (s *Service) ChunkSize() int {
	if s.chunkSize <= 0 {
		return DefaultChunkSize
	}
	return s.chunkSize
}

// Labeler returns the decorated labeler for runID: cache, then breaker,
// then timeout, then retries, then rate limit, then the model call.
func (s *Service) Labeler(runID string) classify.Labeler {
	var l classify.Labeler = NewAnthropicLabeler(s.client, s.model)
	l = RateLimited{Next: l, Limiter: s.limiter}
	l = Retried{Next: l, Config: s.retry}
	l = Timeout{Next: l, D: s.timeout}
	l = Breaker{Next: l, Circuit: s.breakers.Get(runID)}
	if s.store != nil {
		l = Cached{Next: l, Store: s.store}
	}
	return l
}

// Lot returns the lot service for runID, sharing the run's breaker.
func (s *Service) Lot(runID string) lot.Service {
	return LotService{
		Client:  s.client,
		Model:   s.model,
		Circuit: s.breakers.Get(runID),
		Limiter: s.limiter,
		Retry:   s.retry,
	}
}

// Timeout returns the per-call timeout.
func (s *Service) Timeout() time.Duration { return s.timeout }

// Release drops the breaker of a finished run.
func (s *Service) Release(runID string) { s.breakers.Release(runID) }

// BreakerStates reports the state of every live run breaker.
func (s *Service) BreakerStates() map[string]resilience.CircuitState {
	return s.breakers.States()
}
