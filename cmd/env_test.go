package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpgf-extract/internal/config"
	"github.com/sells-group/dpgf-extract/internal/extract"
	"github.com/sells-group/dpgf-extract/internal/model"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:       config.StoreConfig{Driver: "file", Path: filepath.Join(t.TempDir(), "mappings.yaml")},
		Anthropic:   config.AnthropicConfig{ChunkSize: 20, FailureThreshold: 3},
		Extract:     config.ExtractConfig{WorkbookEngine: "excelize", HeaderScanRows: 30, SampleRows: 40},
		Batch:       config.BatchConfig{Concurrency: 2},
		Diagnostics: config.DiagnosticsConfig{CSVPath: filepath.Join(t.TempDir(), "errors.csv")},
		Server:      config.ServerConfig{Port: 8080},
		Fetch:       config.FetchConfig{TimeoutSecs: 5, UserAgent: "test"},
		Log:         config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestInitEnv_ExtractsAndPersists(t *testing.T) {
	cfg = validConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx, "extract")
	require.NoError(t, err)
	assert.Nil(t, env.AI)

	path := writeBid(t, t.TempDir(), "Lot 05 - Serrurerie.xlsx")
	results, err := extractRef(ctx, env, path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "05", results[0].Lot.Numero)
	env.Close()

	// The learned mapping survives in the file store.
	_, err = os.Stat(cfg.Store.Path)
	require.NoError(t, err)

	env, err = initEnv(ctx, "extract")
	require.NoError(t, err)
	defer env.Close()
	ms, err := env.Store.ListMappings(ctx)
	require.NoError(t, err)
	assert.Len(t, ms, 1)

	// Diagnostics CSV is created with its header.
	data, err := os.ReadFile(cfg.Diagnostics.CSVPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "timestamp,filename,line_number")
}

func TestInitEnv_InteractiveMapping(t *testing.T) {
	cfg = validConfig(t)
	ctx := context.Background()

	rows := make([][]any, 0, 7)
	for i := 0; i < 7; i++ {
		rows = append(rows, []any{"Ouvrage de maçonnerie courante", 100, 105})
	}
	path := writeRows(t, t.TempDir(), "bordereau.xlsx", rows)

	// Keep designation, unmap unit, quantity in column 1, drop the proposed
	// unit price, keep the total.
	answers := strings.NewReader("\n-\n1\n-\n\ny\n")
	env, err := initEnv(ctx, "extract", extract.WithResolver(newPromptResolver(answers, io.Discard)))
	require.NoError(t, err)
	defer env.Close()

	results, err := extractRef(ctx, env, path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	m := results[0].Diagnostics.Mapping
	assert.Equal(t, model.ConfidenceManual, m.Confidence)
	assert.Equal(t, model.RoleMap{model.RoleDesignation: 0, model.RoleQuantity: 1, model.RoleTotalPrice: 2}, m.Roles)

	stored, err := env.Store.GetMapping(ctx, m.Signature)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.ConfidenceManual, stored.Source)
}

func TestInitEnv_WithAnthropicKey(t *testing.T) {
	cfg = validConfig(t)
	cfg.Anthropic.Key = "sk-test"

	env, err := initEnv(context.Background(), "extract")
	require.NoError(t, err)
	defer env.Close()
	assert.NotNil(t, env.AI)
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	cfg = validConfig(t)
	cfg.Store.Driver = "mongo"

	_, err := initEnv(context.Background(), "extract")
	assert.Error(t, err)
}
