// Package workbook reads spreadsheet files into immutable in-memory grids.
package workbook

import (
	"strconv"
	"strings"

	"github.com/sells-group/dpgf-extract/internal/numeric"
)

// CellKind is the value type of a worksheet cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell is a single worksheet value.
type Cell struct {
	Kind CellKind
	Text string
	Num  float64
}

// TextCell builds a text cell; blank text yields an empty cell.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell builds a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Num: f, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool { return c.Kind == CellEmpty }

// String returns the trimmed display text of the cell.
func (c Cell) String() string {
	return strings.TrimSpace(c.Text)
}

// Float returns the numeric value of the cell. Numeric cells pass through
// unchanged; text cells go through the locale-aware normalizer. The second
// return is false when text could not be converted.
func (c Cell) Float() (float64, bool) {
	switch c.Kind {
	case CellNumber:
		return c.Num, true
	case CellText:
		return numeric.ParseText(c.Text)
	default:
		return 0, true
	}
}

// IsNumeric reports whether the cell is a number or numeric-looking text.
func (c Cell) IsNumeric() bool {
	switch c.Kind {
	case CellNumber:
		return true
	case CellText:
		return numeric.IsNumber(c.Text)
	default:
		return false
	}
}

// Matrix is a read-only 2-D grid of cells. Rows may be ragged; reads outside
// the stored bounds return empty cells.
type Matrix struct {
	rows  [][]Cell
	width int
}

// NewMatrix wraps rows. The slice is owned by the matrix afterwards.
func NewMatrix(rows [][]Cell) *Matrix {
	m := &Matrix{rows: rows}
	for _, r := range rows {
		if len(r) > m.width {
			m.width = len(r)
		}
	}
	return m
}

// FromStrings builds a matrix from plain strings, typing cells that parse
// strictly as numbers as numeric cells.
func FromStrings(rows [][]string) *Matrix {
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		cells := make([]Cell, len(r))
		for j, v := range r {
			cells[j] = inferCell(v)
		}
		out[i] = cells
	}
	return NewMatrix(out)
}

func inferCell(v string) Cell {
	t := strings.TrimSpace(v)
	if t == "" {
		return Cell{}
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return Cell{Kind: CellNumber, Num: f, Text: t}
	}
	return Cell{Kind: CellText, Text: v}
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return len(m.rows) }

// Cols returns the width of the widest row.
func (m *Matrix) Cols() int { return m.width }

// At returns the cell at (r, c), or an empty cell when out of bounds.
func (m *Matrix) At(r, c int) Cell {
	if r < 0 || r >= len(m.rows) || c < 0 || c >= len(m.rows[r]) {
		return Cell{}
	}
	return m.rows[r][c]
}

// Text returns the trimmed text at (r, c).
func (m *Matrix) Text(r, c int) string {
	return m.At(r, c).String()
}

// RowEmpty reports whether every cell of row r is empty.
func (m *Matrix) RowEmpty(r int) bool {
	if r < 0 || r >= len(m.rows) {
		return true
	}
	for _, c := range m.rows[r] {
		if !c.IsEmpty() && c.String() != "" {
			return false
		}
	}
	return true
}

// RowTexts returns the trimmed texts of row r, padded to the matrix width.
func (m *Matrix) RowTexts(r int) []string {
	out := make([]string, m.width)
	for c := range out {
		out[c] = m.Text(r, c)
	}
	return out
}

// PopulatedCols counts the columns holding at least one value.
func (m *Matrix) PopulatedCols() int {
	n := 0
	for c := 0; c < m.width; c++ {
		for r := range m.rows {
			if !m.At(r, c).IsEmpty() {
				n++
				break
			}
		}
	}
	return n
}

// Sheet is a named worksheet.
type Sheet struct {
	Name string
	Data *Matrix
}

// Workbook is an ordered collection of worksheets.
type Workbook struct {
	Name   string
	Sheets []Sheet
}
