package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/aiclass"
	"github.com/sells-group/dpgf-extract/internal/diagnostics"
	"github.com/sells-group/dpgf-extract/internal/extract"
	"github.com/sells-group/dpgf-extract/internal/fetcher"
	"github.com/sells-group/dpgf-extract/internal/store"
	"github.com/sells-group/dpgf-extract/internal/workbook"
	"github.com/sells-group/dpgf-extract/pkg/anthropic"
)

// extractEnv holds everything the extract/batch/watch/serve commands need.
type extractEnv struct {
	Store     store.Store
	Extractor *extract.Extractor
	Source    *fetcher.Source
	AI        *aiclass.Service // nil when no API key is configured
	csv       *diagnostics.CSVSink
}

// Close flushes and releases resources held by the environment.
func (e *extractEnv) Close() {
	if e.csv != nil {
		_ = e.csv.Close()
	}
	if e.Store != nil {
		if err := e.Store.Flush(context.Background()); err != nil {
			zap.L().Warn("flush store", zap.Error(err))
		}
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens the mapping store and wires
// the extractor. extra options are applied after the configured ones.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, extra ...extract.Option) (*extractEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	env := &extractEnv{Store: st, Source: fetcher.NewSource(cfg.Fetch)}

	reader, err := newReader(workbook.Engine(cfg.Extract.WorkbookEngine))
	if err != nil {
		env.Close()
		return nil, err
	}

	sinks := diagnostics.Multi{diagnostics.ZapSink{Logger: zap.L()}}
	if cfg.Diagnostics.CSVPath != "" {
		csv, err := diagnostics.OpenCSV(cfg.Diagnostics.CSVPath)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.csv = csv
		sinks = append(sinks, csv)
	}

	opts := []extract.Option{
		extract.WithReader(reader),
		extract.WithSink(sinks),
		extract.WithHeaderScanRows(cfg.Extract.HeaderScanRows),
		extract.WithSampleRows(cfg.Extract.SampleRows),
		extract.WithFilenameTag(cfg.Extract.FilenameTag),
	}
	if cfg.Anthropic.Enabled() {
		env.AI = aiclass.NewService(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic, st)
		opts = append(opts, extract.WithAI(env.AI))
	} else {
		zap.L().Info("anthropic key not set, row labels use the heuristic classifier")
	}
	env.Extractor = extract.New(st, append(opts, extra...)...)

	return env, nil
}

// newReader returns the configured engine backed by the other one.
func newReader(engine workbook.Engine) (workbook.Reader, error) {
	primary, err := workbook.NewReader(engine)
	if err != nil {
		return nil, err
	}
	secondary := workbook.Reader(workbook.TealegReader{})
	if engine == workbook.EngineTealeg {
		secondary = workbook.ExcelizeReader{}
	}
	return workbook.Fallback{Primary: primary, Secondary: secondary}, nil
}
