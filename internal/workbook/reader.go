package workbook

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Engine names a workbook parsing backend.
type Engine string

const (
	EngineExcelize Engine = "excelize"
	EngineTealeg   Engine = "tealeg"
)

// Reader parses a spreadsheet into a Workbook.
type Reader interface {
	Open(path string) (*Workbook, error)
	Read(r io.Reader, name string) (*Workbook, error)
}

// NewReader returns the reader for engine. An empty engine selects excelize.
func NewReader(engine Engine) (Reader, error) {
	switch engine {
	case EngineExcelize, "":
		return ExcelizeReader{}, nil
	case EngineTealeg:
		return TealegReader{}, nil
	default:
		return nil, eris.Errorf("workbook: unknown engine %q", engine)
	}
}

// Supported reports whether path has a spreadsheet extension the readers
// understand.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	default:
		return false
	}
}

// Fallback tries primary first and falls back to secondary when primary
// cannot open the file.
type Fallback struct {
	Primary   Reader
	Secondary Reader
}

// Open implements Reader.
func (f Fallback) Open(path string) (*Workbook, error) {
	wb, err := f.Primary.Open(path)
	if err == nil || f.Secondary == nil {
		return wb, err
	}
	zap.L().Warn("workbook: primary engine failed, retrying",
		zap.String("path", path),
		zap.Error(err),
	)
	wb, err2 := f.Secondary.Open(path)
	if err2 != nil {
		return nil, eris.Wrapf(err2, "workbook: both engines failed (primary: %v)", err)
	}
	return wb, nil
}

// Read implements Reader. The input is buffered so the secondary reader can
// retry from the start.
func (f Fallback) Read(r io.Reader, name string) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: read %s", name)
	}
	wb, err := f.Primary.Read(bytes.NewReader(data), name)
	if err == nil || f.Secondary == nil {
		return wb, err
	}
	zap.L().Warn("workbook: primary engine failed, retrying",
		zap.String("workbook", name),
		zap.Error(err),
	)
	wb, err2 := f.Secondary.Read(bytes.NewReader(data), name)
	if err2 != nil {
		return nil, eris.Wrapf(err2, "workbook: both engines failed (primary: %v)", err)
	}
	return wb, nil
}
