package diagnostics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/dpgf-extract/internal/model"
)

func entry(row int, kind model.WarningKind) Entry {
	return Entry{
		Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Document:  "DPGF - Lot 06 - Métallerie.xlsx",
		Row:       row,
		Kind:      kind,
		Message:   "could not parse value",
		Raw:       []string{"Garde-corps", "ml", "douze"},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestCSVSink_WritesHeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "errors.csv")

	s, err := OpenCSV(path)
	require.NoError(t, err)
	s.Record(entry(11, model.WarnNumberUnparsed))
	require.NoError(t, s.Close())

	s, err = OpenCSV(path)
	require.NoError(t, err)
	s.Record(entry(-1, model.WarnLotNotFound))
	require.NoError(t, s.Close())

	recs := readCSV(t, path)
	require.Len(t, recs, 3)
	assert.Equal(t, csvHeader, recs[0])
	assert.Equal(t, []string{
		"2026-03-02T10:00:00Z", "DPGF - Lot 06 - Métallerie.xlsx", "12",
		"number_unparsed", "could not parse value", "Garde-corps | ml | douze",
	}, recs[1])
	assert.Equal(t, "", recs[2][2])
	assert.Equal(t, "lot_not_found", recs[2][3])
}

func TestCSVSink_ConcurrentRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "errors.csv")
	s, err := OpenCSV(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Record(entry(i, model.WarnRowIgnored))
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	assert.Len(t, readCSV(t, path), 51)
}

func TestOpenCSV_BadPath(t *testing.T) {
	t.Parallel()

	_, err := OpenCSV(filepath.Join(t.TempDir(), "missing", "errors.csv"))
	assert.Error(t, err)
}

func TestMultiAndMemory(t *testing.T) {
	t.Parallel()

	a, b := &MemorySink{}, &MemorySink{}
	m := Multi{a, nil, b, Nop{}}
	m.Record(entry(1, model.WarnSyntheticSection))
	m.Record(entry(2, model.WarnNegativeValue))

	assert.Len(t, a.Entries(), 2)
	assert.Equal(t, a.Entries(), b.Entries())
	assert.Equal(t, model.WarnNegativeValue, b.Entries()[1].Kind)
}

func TestZapSink(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	ZapSink{Logger: zap.New(core)}.Record(entry(4, model.WarnReconciledInconsistent))

	require.Equal(t, 1, logs.Len())
	got := logs.All()[0]
	assert.Equal(t, "diagnostics: reconciled_inconsistent", got.Message)
	assert.Equal(t, int64(4), got.ContextMap()["row"])
}

func TestFromWarning(t *testing.T) {
	t.Parallel()

	e := FromWarning("a.xlsx", model.Warning{Row: 3, Kind: model.WarnRowIgnored, Message: "m", Raw: []string{"x"}})
	assert.Equal(t, "a.xlsx", e.Document)
	assert.Equal(t, 3, e.Row)
	assert.Equal(t, []string{"x"}, e.Raw)
	assert.False(t, e.Timestamp.IsZero())
}
