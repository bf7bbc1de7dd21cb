package workbook

import (
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// TealegReader loads workbooks with tealeg/xlsx. It is the fallback engine
// for files excelize refuses to open.
type TealegReader struct{}

// Open reads the workbook at path.
func (TealegReader) Open(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", filepath.Base(path))
	}
	return readTealeg(f, filepath.Base(path)), nil
}

// Read loads a workbook from r.
func (TealegReader) Read(r io.Reader, name string) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: read %s", name)
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: parse %s", name)
	}
	return readTealeg(f, name), nil
}

func readTealeg(f *xlsx.File, name string) *Workbook {
	wb := &Workbook{Name: name}
	for _, sheet := range f.Sheets {
		rows := make([][]Cell, len(sheet.Rows))
		for r, row := range sheet.Rows {
			if row == nil {
				continue
			}
			rows[r] = rowToCells(row)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: sheet.Name, Data: NewMatrix(rows)})
	}
	zap.L().Debug("workbook: loaded with tealeg",
		zap.String("workbook", name),
		zap.Int("sheets", len(wb.Sheets)),
	)
	return wb
}

func rowToCells(row *xlsx.Row) []Cell {
	cells := make([]Cell, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		if cell.Type() == xlsx.CellTypeNumeric {
			if v, err := cell.Float(); err == nil {
				cells[j] = Cell{Kind: CellNumber, Num: v, Text: cell.Value}
				continue
			}
		}
		cells[j] = TextCell(cell.String())
	}
	return cells
}
