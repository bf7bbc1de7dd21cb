// Package header finds the column-title row of a bill of quantities and maps
// its columns to semantic roles.
package header

import (
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

// DefaultScanRows is how many leading rows are searched for a header.
const DefaultScanRows = 30

const (
	earlyAcceptScore = 4
	minHeaderScore   = 2
)

// Header is a located header row.
type Header struct {
	Row     int
	Score   int
	Columns model.RoleMap
	Cells   []string
}

// Found reports whether role was matched in the header row.
func (h *Header) Found(role model.Role) bool {
	return h != nil && h.Columns.Has(role)
}

// Locate scans the first scanRows rows of m for the row matching the most
// role synonyms. A row matching at least four roles is accepted at once;
// otherwise the best row with at least two wins. Locate returns nil when no
// row qualifies.
func Locate(m *workbook.Matrix, scanRows int) *Header {
	if m == nil {
		return nil
	}
	if scanRows <= 0 {
		scanRows = DefaultScanRows
	}
	limit := min(scanRows, m.Rows())

	var best *Header
	for r := 0; r < limit; r++ {
		if m.RowEmpty(r) {
			continue
		}
		cells := m.RowTexts(r)
		cols := matchRow(cells)
		score := len(cols)
		if score < minHeaderScore {
			continue
		}
		h := &Header{Row: r, Score: score, Columns: cols, Cells: trimTrailing(cells)}
		if score >= earlyAcceptScore {
			best = h
			break
		}
		if best == nil || score > best.Score {
			best = h
		}
	}

	if best != nil {
		zap.L().Debug("header: row located",
			zap.Int("row", best.Row),
			zap.Int("score", best.Score),
		)
	}
	return best
}

func trimTrailing(cells []string) []string {
	end := len(cells)
	for end > 0 && cells[end-1] == "" {
		end--
	}
	return cells[:end]
}
