package extract

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dpgf-extract/internal/resilience"
)

// Outcome is the result of one document of a batch.
type Outcome struct {
	Document Document
	Result   *Result
	Failure  *resilience.FailedDocument
}

// Summary tallies a batch run.
type Summary struct {
	Total     int                         `json:"total"`
	Succeeded int                         `json:"succeeded"`
	Failed    []resilience.FailedDocument `json:"failed,omitempty"`
	Elements  int                         `json:"elements"`
	Warnings  int                         `json:"warnings"`
}

// ExtractAll extracts docs with at most concurrency documents in flight. A
// failing document never stops the others; onOutcome, when set, is called
// once per document from the worker goroutines and must be safe for
// concurrent use. ExtractAll only returns an error when ctx is cancelled.
func (e *Extractor) ExtractAll(ctx context.Context, docs []Document, concurrency int, onOutcome func(Outcome)) (Summary, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu  sync.Mutex
		sum = Summary{Total: len(docs)}
	)

	for _, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := e.Extract(gctx, doc)
			out := Outcome{Document: doc, Result: res}

			mu.Lock()
			if err != nil {
				stage, runID := "extract", ""
				if fe, ok := IsFatal(err); ok {
					stage, runID = string(fe.Kind), fe.RunID
				}
				fd := resilience.NewFailedDocument(doc.name(), runID, stage, err)
				out.Failure = &fd
				sum.Failed = append(sum.Failed, fd)
				zap.L().Warn("extract: document failed",
					zap.String("document", doc.name()),
					zap.String("stage", stage),
					zap.Error(err),
				)
			} else {
				sum.Succeeded++
				sum.Elements += res.Diagnostics.Stats.Elements
				sum.Warnings += len(res.Diagnostics.Warnings)
			}
			mu.Unlock()

			if onOutcome != nil {
				onOutcome(out)
			}
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("extract: batch done",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", len(sum.Failed)),
		zap.Int("elements", sum.Elements),
	)
	return sum, ctx.Err()
}
