package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/extract"
	"github.com/sells-group/dpgf-extract/internal/fetcher"
)

var (
	extractOutput      string
	extractInteractive bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file|url>",
	Short: "Extract one workbook (or every workbook of a zip bundle) to JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var opts []extract.Option
		if extractInteractive {
			opts = append(opts, extract.WithResolver(newPromptResolver(cmd.InOrStdin(), cmd.ErrOrStderr())))
		}
		env, err := initEnv(ctx, "extract", opts...)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := extractRef(ctx, env, args[0])
		if err != nil {
			return err
		}

		var payload any = results
		if len(results) == 1 {
			payload = results[0]
		}
		return writeJSON(extractOutput, cmd.OutOrStdout(), payload)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write JSON here instead of stdout")
	extractCmd.Flags().BoolVarP(&extractInteractive, "interactive", "i", false, "prompt for the column mapping when it cannot be trusted")
	rootCmd.AddCommand(extractCmd)
}

// extractRef resolves ref and extracts every workbook it stands for. The
// first fatal document error is returned.
func extractRef(ctx context.Context, env *extractEnv, ref string) ([]*extract.Result, error) {
	res, err := env.Source.Resolve(ctx, ref)
	defer res.Cleanup()
	if err != nil {
		return nil, eris.Wrapf(err, "resolve %s", ref)
	}
	if len(res.Documents) == 0 {
		return nil, eris.Errorf("no workbook found in %s", ref)
	}

	out := make([]*extract.Result, 0, len(res.Documents))
	for _, d := range res.Documents {
		r, err := env.Extractor.Extract(ctx, toDocument(d))
		if err != nil {
			return nil, err
		}
		zap.L().Info("extracted",
			zap.String("document", r.Document),
			zap.Int("elements", r.Diagnostics.Stats.Elements),
			zap.Int("warnings", len(r.Diagnostics.Warnings)),
		)
		out = append(out, r)
	}
	return out, nil
}

func toDocument(d fetcher.Document) extract.Document {
	return extract.Document{Path: d.Path, Name: d.Name}
}

// writeJSON writes v as indented JSON to path, or to w when path is empty.
func writeJSON(path string, w io.Writer, v any) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "create output")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}
