package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/store"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Inspect and edit learned column mappings",
	Long:  "Commands for listing, exporting, importing and deleting the column mappings the extractor has learned.",
}

// openMappingStore opens the configured store for the mappings commands.
func openMappingStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("mappings"); err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store)
}

// -- mappings list --

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned mappings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openMappingStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ms, err := st.ListMappings(ctx)
		if err != nil {
			return eris.Wrap(err, "mappings list")
		}
		if len(ms) == 0 {
			fmt.Fprintln(os.Stderr, "No mappings stored.")
			return nil
		}
		formatMappings(cmd.OutOrStdout(), ms)
		return nil
	},
}

// -- mappings export --

var mappingsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export mappings as YAML (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openMappingStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return eris.Wrap(err, "mappings export: create file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return exportMappings(ctx, st, out)
	},
}

// -- mappings import --

var mappingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import mappings from a YAML export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openMappingStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "mappings import: open file")
		}
		defer f.Close() //nolint:errcheck

		created, skipped, err := importMappings(ctx, st, f)
		if err != nil {
			return err
		}
		if err := st.Flush(ctx); err != nil {
			return eris.Wrap(err, "mappings import: flush")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d mappings (%d already present).\n", created, skipped)
		return nil
	},
}

// -- mappings delete --

var mappingsDeleteCmd = &cobra.Command{
	Use:   "delete <signature>",
	Short: "Forget a learned mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openMappingStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteMapping(ctx, args[0]); err != nil {
			return eris.Wrap(err, "mappings delete")
		}
		return st.Flush(ctx)
	},
}

func init() {
	mappingsCmd.AddCommand(mappingsListCmd)
	mappingsCmd.AddCommand(mappingsExportCmd)
	mappingsCmd.AddCommand(mappingsImportCmd)
	mappingsCmd.AddCommand(mappingsDeleteCmd)
	rootCmd.AddCommand(mappingsCmd)
}

// mappingsFile is the YAML export layout.
type mappingsFile struct {
	Mappings []store.Mapping `yaml:"mappings"`
}

func exportMappings(ctx context.Context, st store.Store, w io.Writer) error {
	ms, err := st.ListMappings(ctx)
	if err != nil {
		return eris.Wrap(err, "mappings export")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(mappingsFile{Mappings: ms}); err != nil {
		return eris.Wrap(err, "mappings export: encode")
	}
	return enc.Close()
}

// importMappings stores every mapping of a YAML export. Entries whose
// signature is already known are left untouched. An entry without a source
// is recorded as manual.
func importMappings(ctx context.Context, st store.Store, r io.Reader) (created, skipped int, err error) {
	var f mappingsFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return 0, 0, eris.Wrap(err, "mappings import: decode")
	}
	for _, m := range f.Mappings {
		source := m.Source
		if source == "" {
			source = model.ConfidenceManual
		}
		_, ok, err := st.PutMapping(ctx, m.Signature, m.Roles, source)
		if err != nil {
			return created, skipped, eris.Wrapf(err, "mappings import: %s", m.Signature)
		}
		if ok {
			created++
		} else {
			skipped++
		}
	}
	return created, skipped, nil
}

// formatMappings writes a tabular list of mappings to out.
func formatMappings(out io.Writer, ms []store.Mapping) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SIGNATURE\tSOURCE\tCREATED\tROLES")
	_, _ = fmt.Fprintln(w, "---------\t------\t-------\t-----")
	for _, m := range ms {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			m.Signature,
			m.Source,
			m.CreatedAt.Format("2006-01-02 15:04"),
			formatRoles(m.Roles),
		)
	}
	_ = w.Flush()
}

func formatRoles(roles model.RoleMap) string {
	parts := make([]string, 0, len(roles))
	for role, col := range roles {
		parts = append(parts, fmt.Sprintf("%s=%d", role, col))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
