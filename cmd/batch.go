package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/extract"
	"github.com/sells-group/dpgf-extract/internal/fetcher"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

var (
	batchOutputDir  string
	batchConcurrent int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir|zip|url>",
	Short: "Extract every workbook of a directory or tender bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		docs, cleanup, err := collectDocuments(ctx, env.Source, args[0])
		defer cleanup()
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return eris.Errorf("no workbook found in %s", args[0])
		}

		if batchOutputDir != "" {
			if err := os.MkdirAll(batchOutputDir, 0o755); err != nil {
				return eris.Wrap(err, "create output dir")
			}
		}

		concurrency := batchConcurrent
		if concurrency == 0 {
			concurrency = cfg.Batch.Concurrency
		}
		sum, err := env.Extractor.ExtractAll(ctx, docs, concurrency, func(o extract.Outcome) {
			if o.Result == nil || batchOutputDir == "" {
				return
			}
			if werr := writeJSON(resultPath(batchOutputDir, o.Document), nil, o.Result); werr != nil {
				zap.L().Error("write result", zap.String("document", o.Document.Name), zap.Error(werr))
			}
		})
		if err != nil {
			return eris.Wrap(err, "batch interrupted")
		}
		return writeJSON("", cmd.OutOrStdout(), sum)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "", "write one JSON result per workbook into this directory")
	batchCmd.Flags().IntVar(&batchConcurrent, "concurrency", 0, "documents in flight (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// collectDocuments lists the workbooks under a local directory (zip bundles
// included), or resolves a single file, bundle or URL.
func collectDocuments(ctx context.Context, src *fetcher.Source, ref string) ([]extract.Document, func(), error) {
	var resolved []*fetcher.Resolved
	cleanup := func() {
		for _, r := range resolved {
			r.Cleanup()
		}
	}

	refs := []string{ref}
	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		refs, err = scanDir(ref)
		if err != nil {
			return nil, cleanup, err
		}
	}

	var docs []extract.Document
	for _, r := range refs {
		res, err := src.Resolve(ctx, r)
		resolved = append(resolved, res)
		if err != nil {
			return docs, cleanup, eris.Wrapf(err, "resolve %s", r)
		}
		for _, d := range res.Documents {
			docs = append(docs, toDocument(d))
		}
	}
	return docs, cleanup, nil
}

func scanDir(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}
		if workbook.Supported(p) || fetcher.IsZip(p) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scan %s", dir)
	}
	sort.Strings(out)
	return out, nil
}

// resultPath names the JSON file written for doc in dir.
func resultPath(dir string, doc extract.Document) string {
	base := doc.Name
	if base == "" {
		base = filepath.Base(doc.Path)
	}
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+".json")
}
