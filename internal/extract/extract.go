// Package extract runs the full extraction of one bid workbook: worksheet
// selection, header location, column mapping, lot identification, row
// labeling, classification and assembly of the section tree.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/aiclass"
	"github.com/sells-group/dpgf-extract/internal/classify"
	"github.com/sells-group/dpgf-extract/internal/diagnostics"
	"github.com/sells-group/dpgf-extract/internal/header"
	"github.com/sells-group/dpgf-extract/internal/lot"
	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/sheet"
	"github.com/sells-group/dpgf-extract/internal/store"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

// Document is one workbook to extract. Name is the original file name and
// drives lot identification; Data, when set, is read instead of Path.
type Document struct {
	Path string
	Name string
	Data []byte
}

func (d Document) name() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Path
}

// FatalKind names why a document could not be extracted at all.
type FatalKind string

const (
	FatalUnreadable FatalKind = "unreadable_workbook"
	FatalNoSheets   FatalKind = "no_worksheets"
	FatalEmptySheet FatalKind = "empty_worksheet"
)

// FatalError aborts the extraction of one document.
type FatalError struct {
	Kind     FatalKind
	Document string
	RunID    string
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("extract: %s: %s: %v", e.Document, e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a FatalError and returns it.
func IsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Stats counts what was extracted.
type Stats struct {
	Sections int `json:"sections"`
	Elements int `json:"elements"`
	Ignored  int `json:"ignored_rows"`
}

// Diagnostics explains how a result was produced.
type Diagnostics struct {
	RunID       string            `json:"run_id"`
	Sheet       sheet.Selection   `json:"sheet"`
	HeaderRow   int               `json:"header_row"`
	HeaderScore int               `json:"header_score,omitempty"`
	Mapping     *header.Mapping   `json:"mapping"`
	LotStrategy model.LotStrategy `json:"lot_strategy"`
	Labeler     string            `json:"labeler"`
	Warnings    []model.Warning   `json:"warnings"`
	Stats       Stats             `json:"stats"`
	Duration    time.Duration     `json:"duration_ns"`
}

// Result is the extraction of one document.
type Result struct {
	Document    string          `json:"document"`
	Lot         *model.Lot      `json:"lot"`
	Sections    []model.Section `json:"sections"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

// Extractor runs extractions. It is safe for concurrent use.
type Extractor struct {
	reader         workbook.Reader
	store          store.Store
	ai             *aiclass.Service
	sink           diagnostics.Sink
	resolver       header.ManualResolver
	headerScanRows int
	sampleRows     int
	filenameTag    bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithReader sets the workbook reader. Default: excelize with tealeg fallback.
func WithReader(r workbook.Reader) Option { return func(e *Extractor) { e.reader = r } }

// WithAI enables the language-model labeler and lot service.
func WithAI(s *aiclass.Service) Option { return func(e *Extractor) { e.ai = s } }

// WithSink sets where warnings are recorded.
func WithSink(s diagnostics.Sink) Option { return func(e *Extractor) { e.sink = s } }

// WithResolver sets the manual column mapping resolver.
func WithResolver(r header.ManualResolver) Option { return func(e *Extractor) { e.resolver = r } }

// WithHeaderScanRows bounds the header search.
func WithHeaderScanRows(n int) Option { return func(e *Extractor) { e.headerScanRows = n } }

// WithSampleRows bounds content inference sampling.
func WithSampleRows(n int) Option { return func(e *Extractor) { e.sampleRows = n } }

// WithFilenameTag suffixes mapping signatures with the file name's lot tag.
func WithFilenameTag(on bool) Option { return func(e *Extractor) { e.filenameTag = on } }

// New creates an Extractor backed by st.
func New(st store.Store, opts ...Option) *Extractor {
	e := &Extractor{
		reader:         workbook.Fallback{Primary: workbook.ExcelizeReader{}, Secondary: workbook.TealegReader{}},
		store:          st,
		sink:           diagnostics.Nop{},
		headerScanRows: header.DefaultScanRows,
		sampleRows:     header.DefaultSampleRows,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract runs every stage on doc in sequence. Only fatal document problems
// and context cancellation are returned as errors; everything else is
// reported in the result's diagnostics.
func (e *Extractor) Extract(ctx context.Context, doc Document) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	name := doc.name()
	log := zap.L().With(zap.String("run_id", runID), zap.String("document", name))
	if e.ai != nil {
		defer e.ai.Release(runID)
	}

	wb, err := e.open(doc)
	if err != nil {
		return nil, &FatalError{Kind: FatalUnreadable, Document: name, RunID: runID, Err: err}
	}

	sel, err := sheet.Select(wb)
	if err != nil {
		return nil, &FatalError{Kind: FatalNoSheets, Document: name, RunID: runID, Err: err}
	}
	ws := wb.Sheets[sel.Index]
	m := ws.Data
	if empty(m) {
		return nil, &FatalError{Kind: FatalEmptySheet, Document: name, RunID: runID, Err: eris.Errorf("extract: worksheet %q is empty", ws.Name)}
	}
	log.Debug("extract: worksheet selected", zap.String("sheet", sel.Name), zap.Int("score", sel.Score))

	diag := Diagnostics{RunID: runID, Sheet: sel, HeaderRow: -1}
	if sel.LowConfidence {
		diag.warn(model.WarnSheetLowConfidence, fmt.Sprintf("no worksheet looks like a bill of quantities; using %q", sel.Name))
	}

	hdr := header.Locate(m, e.headerScanRows)
	start := 0
	if hdr != nil {
		diag.HeaderRow, diag.HeaderScore = hdr.Row, hdr.Score
		start = hdr.Row + 1
	} else {
		diag.warn(model.WarnHeaderNotFound, "no header row found; columns inferred from content")
	}

	mapper := header.NewMapper(e.store,
		header.WithResolver(e.resolver),
		header.WithSampleRows(e.sampleRows),
		header.WithFilenameTag(e.filenameTag),
	)
	mapping, err := mapper.Map(ctx, m, hdr, name)
	if err != nil {
		return nil, eris.Wrap(err, "extract: map columns")
	}
	diag.Mapping = mapping
	diag.Warnings = append(diag.Warnings, mapping.Warnings...)
	log.Info("extract: column mapping resolved",
		zap.String("strategy", string(mapping.Strategy)),
		zap.String("confidence", string(mapping.Confidence)),
	)

	lotRes := e.identifyLot(ctx, runID, name, wb, ws)
	diag.LotStrategy = lotRes.Strategy
	diag.Warnings = append(diag.Warnings, lotRes.Warnings...)
	var found *model.Lot
	if lotRes.Found {
		l := lotRes.Lot
		found = &l
	} else {
		diag.warn(model.WarnLotNotFound, "no lot identified from file name, service or content")
	}

	labels, labelWarnings := e.label(ctx, runID, m, start, mapping.Roles)
	diag.Labeler = "heuristic"
	if e.ai != nil {
		diag.Labeler = "anthropic"
	}
	diag.Warnings = append(diag.Warnings, labelWarnings...)

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: cancelled")
	}

	lotNumero := ""
	if found != nil {
		lotNumero = found.Numero
	}
	acc := classify.New(mapping.Roles).Run(m, start, labels, classify.NewAccumulator(lotNumero))
	sections := acc.Sections()
	diag.Warnings = append(diag.Warnings, acc.Warnings...)

	diag.Stats = Stats{Sections: len(sections), Ignored: acc.Ignored()}
	for _, s := range sections {
		diag.Stats.Elements += len(s.Elements)
	}
	diag.Duration = time.Since(started)

	for _, w := range diag.Warnings {
		e.sink.Record(diagnostics.FromWarning(name, w))
	}

	log.Info("extract: document done",
		zap.Int("sections", diag.Stats.Sections),
		zap.Int("elements", diag.Stats.Elements),
		zap.Int("warnings", len(diag.Warnings)),
		zap.Duration("elapsed", diag.Duration),
	)
	return &Result{Document: name, Lot: found, Sections: sections, Diagnostics: diag}, nil
}

func (e *Extractor) open(doc Document) (*workbook.Workbook, error) {
	if doc.Data != nil {
		return e.reader.Read(bytes.NewReader(doc.Data), doc.name())
	}
	return e.reader.Open(doc.Path)
}

// identifyLot prefers the sheet name for workbooks holding one lot per
// sheet.
func (e *Extractor) identifyLot(ctx context.Context, runID, name string, wb *workbook.Workbook, ws workbook.Sheet) lot.Result {
	var opts []lot.Option
	if e.ai != nil {
		opts = append(opts, lot.WithService(e.ai.Lot(runID)), lot.WithTimeout(e.ai.Timeout()))
	}
	id := lot.NewIdentifier(opts...)
	if len(wb.Sheets) > 1 {
		return id.IdentifyInSheet(ctx, name, ws)
	}
	return id.Identify(ctx, name, ws.Data)
}

// label returns external row labels, or nil when no labeler is configured
// and the classifier's own heuristic applies.
func (e *Extractor) label(ctx context.Context, runID string, m *workbook.Matrix, start int, roles model.RoleMap) (map[int]classify.Label, []model.Warning) {
	if e.ai == nil {
		return nil, nil
	}
	rows := classify.RowTexts(m, start)
	return aiclass.ResolveLabels(ctx, e.ai.Labeler(runID), classify.HeuristicLabeler{Roles: roles}, rows, e.ai.ChunkSize())
}

func (d *Diagnostics) warn(kind model.WarningKind, msg string) {
	d.Warnings = append(d.Warnings, model.Warning{Row: -1, Kind: kind, Message: msg})
}

func empty(m *workbook.Matrix) bool {
	if m == nil {
		return true
	}
	for r := 0; r < m.Rows(); r++ {
		if !m.RowEmpty(r) {
			return false
		}
	}
	return true
}
