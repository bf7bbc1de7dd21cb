package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/dpgf-extract/internal/extract"
	"github.com/sells-group/dpgf-extract/internal/fetcher"
	"github.com/sells-group/dpgf-extract/internal/store"
)

var bidRows = [][]any{
	{"Désignation", "Unité", "Quantité", "P.U. HT", "P.T. HT"},
	{"1 Serrurerie"},
	{"Garde-corps acier", "ml", 25, 180, 4500},
	{"Portail coulissant", "u", 1, 3200, 3200},
}

// writeBid saves a small bid workbook as dir/name.
func writeBid(t *testing.T, dir, name string) string {
	t.Helper()
	return writeRows(t, dir, name, bidRows)
}

func writeRows(t *testing.T, dir, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	for r, row := range rows {
		for c, v := range row {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", axis, v))
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func testEnv(t *testing.T) *extractEnv {
	t.Helper()
	st := store.NewMemory()
	return &extractEnv{
		Store:     st,
		Extractor: extract.New(st),
		Source:    &fetcher.Source{TempDir: t.TempDir()},
	}
}
