package aiclass

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/dpgf-extract/internal/classify"
	"github.com/sells-group/dpgf-extract/internal/resilience"
	"github.com/sells-group/dpgf-extract/internal/store"
	"github.com/sells-group/dpgf-extract/pkg/anthropic"
)

// ErrUnavailable is returned once the run's breaker has opened.
var ErrUnavailable = eris.New("aiclass: labeler unavailable")

// Breaker guards a Labeler with a circuit breaker.
type Breaker struct {
	Next    classify.Labeler
	Circuit *resilience.CircuitBreaker
}

// Label implements classify.Labeler.
func (b Breaker) Label(ctx context.Context, rows []classify.RowText) ([]classify.Label, error) {
	labels, err := resilience.ExecuteVal(ctx, b.Circuit, func(ctx context.Context) ([]classify.Label, error) {
		return b.Next.Label(ctx, rows)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, ErrUnavailable
	}
	return labels, err
}

// Timeout bounds each call with its own deadline.
type Timeout struct {
	Next classify.Labeler
	D    time.Duration
}

// Label implements classify.Labeler.
func (t Timeout) Label(ctx context.Context, rows []classify.RowText) ([]classify.Label, error) {
	if t.D <= 0 {
		return t.Next.Label(ctx, rows)
	}
	ctx, cancel := context.WithTimeout(ctx, t.D)
	defer cancel()
	return t.Next.Label(ctx, rows)
}

// Retried retries transient failures of Next.
type Retried struct {
	Next   classify.Labeler
	Config resilience.RetryConfig
}

// Label implements classify.Labeler.
func (r Retried) Label(ctx context.Context, rows []classify.RowText) ([]classify.Label, error) {
	return resilience.DoVal(ctx, r.Config, func(ctx context.Context) ([]classify.Label, error) {
		return r.Next.Label(ctx, rows)
	})
}

// retryable reports whether a model call failure is worth another attempt.
func retryable(err error) bool {
	return anthropic.IsRetryable(err) || resilience.IsTransient(err)
}

// RateLimited waits on a shared limiter before each call.
type RateLimited struct {
	Next    classify.Labeler
	Limiter *rate.Limiter
}

// Label implements classify.Labeler.
func (r RateLimited) Label(ctx context.Context, rows []classify.RowText) ([]classify.Label, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "aiclass: rate limit wait")
		}
	}
	return r.Next.Label(ctx, rows)
}

// cachedLabel stores a label by its position in the batch so that identical
// rows found at other offsets reuse it.
type cachedLabel struct {
	Index  int           `json:"i"`
	Kind   classify.Kind `json:"type"`
	Numero string        `json:"numero,omitempty"`
	Title  string        `json:"title,omitempty"`
	Level  int           `json:"level,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Cached consults the store's label cache before calling Next and fills it
// after a successful call. Cache errors are logged and ignored.
type Cached struct {
	Next  classify.Labeler
	Store store.Store
}

// Label implements classify.Labeler.
func (c Cached) Label(ctx context.Context, rows []classify.RowText) ([]classify.Label, error) {
	key := batchKey(rows)
	log := zap.L().With(zap.String("cache_key", key))

	if data, err := c.Store.GetLabels(ctx, key); err != nil {
		log.Warn("aiclass: label cache read failed", zap.Error(err))
	} else if data != nil {
		var cached []cachedLabel
		if err := json.Unmarshal(data, &cached); err == nil {
			log.Debug("aiclass: label cache hit", zap.Int("rows", len(rows)))
			return fromCache(cached, rows), nil
		}
		log.Warn("aiclass: label cache entry unreadable")
	}

	labels, err := c.Next.Label(ctx, rows)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(toCache(labels, rows))
	if err == nil {
		err = c.Store.PutLabels(ctx, key, data)
	}
	if err != nil {
		log.Warn("aiclass: label cache write failed", zap.Error(err))
	}
	return labels, nil
}

func batchKey(rows []classify.RowText) string {
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = strings.Join(r.Cells, "|")
	}
	return store.LabelKey(texts)
}

func toCache(labels []classify.Label, rows []classify.RowText) []cachedLabel {
	index := make(map[int]int, len(rows))
	for i, r := range rows {
		index[r.Row] = i
	}
	out := make([]cachedLabel, 0, len(labels))
	for _, l := range labels {
		i, ok := index[l.Row]
		if !ok {
			continue
		}
		out = append(out, cachedLabel{
			Index: i, Kind: l.Kind, Numero: l.Numero, Title: l.Title, Level: l.Level, Reason: l.Reason,
		})
	}
	return out
}

func fromCache(cached []cachedLabel, rows []classify.RowText) []classify.Label {
	out := make([]classify.Label, 0, len(cached))
	for _, c := range cached {
		if c.Index < 0 || c.Index >= len(rows) {
			continue
		}
		out = append(out, classify.Label{
			Row: rows[c.Index].Row, Kind: c.Kind, Numero: c.Numero, Title: c.Title, Level: c.Level, Reason: c.Reason,
		})
	}
	return out
}
