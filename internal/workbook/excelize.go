package workbook

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExcelizeReader loads workbooks with excelize. It keeps numeric cells typed
// by reading raw values and consulting the stored cell type.
type ExcelizeReader struct{}

// Open reads the workbook at path.
func (ExcelizeReader) Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "excelize: open %s", filepath.Base(path))
	}
	defer f.Close() //nolint:errcheck
	return readExcelize(f, filepath.Base(path))
}

// Read loads a workbook from r; name is used for diagnostics only.
func (ExcelizeReader) Read(r io.Reader, name string) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, eris.Wrapf(err, "excelize: read %s", name)
	}
	defer f.Close() //nolint:errcheck
	return readExcelize(f, name)
}

func readExcelize(f *excelize.File, name string) (*Workbook, error) {
	wb := &Workbook{Name: name}
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, eris.Wrapf(err, "excelize: rows of sheet %q", sheetName)
		}
		cells := make([][]Cell, len(rows))
		for r, row := range rows {
			cells[r] = make([]Cell, len(row))
			for c, raw := range row {
				cells[r][c] = excelizeCell(f, sheetName, r, c, raw)
			}
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: sheetName, Data: NewMatrix(cells)})
	}
	zap.L().Debug("workbook: loaded with excelize",
		zap.String("workbook", name),
		zap.Int("sheets", len(wb.Sheets)),
	)
	return wb, nil
}

func excelizeCell(f *excelize.File, sheet string, r, c int, raw string) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}
	axis, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return TextCell(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return TextCell(raw)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return TextCell(raw)
	}
	if v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64); perr == nil {
		return Cell{Kind: CellNumber, Num: v, Text: raw}
	}
	return TextCell(raw)
}
