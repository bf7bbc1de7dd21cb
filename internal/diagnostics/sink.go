// Package diagnostics records per-row extraction warnings to append-only
// sinks: a CSV error report, the structured log and memory.
package diagnostics

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/model"
)

// Entry is one recorded problem.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Document  string            `json:"document"`
	Row       int               `json:"row"`
	Kind      model.WarningKind `json:"kind"`
	Message   string            `json:"message"`
	Raw       []string          `json:"raw,omitempty"`
}

// FromWarning converts a warning of document into an entry stamped now.
func FromWarning(document string, w model.Warning) Entry {
	return Entry{
		Timestamp: time.Now().UTC(),
		Document:  document,
		Row:       w.Row,
		Kind:      w.Kind,
		Message:   w.Message,
		Raw:       w.Raw,
	}
}

// Sink receives entries. Implementations are safe for concurrent use.
type Sink interface {
	Record(Entry)
}

// Nop discards entries.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(Entry) {}

// MemorySink keeps entries in memory.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// Record implements Sink.
func (s *MemorySink) Record(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Entries returns a copy of the recorded entries.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Multi fans entries out to several sinks.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(e Entry) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

// ZapSink logs each entry at warn level.
type ZapSink struct {
	Logger *zap.Logger
}

// Record implements Sink.
func (z ZapSink) Record(e Entry) {
	log := z.Logger
	if log == nil {
		log = zap.L()
	}
	log.Warn("diagnostics: "+string(e.Kind),
		zap.String("document", e.Document),
		zap.Int("row", e.Row),
		zap.String("message", e.Message),
	)
}

// csvHeader is the column layout of the error report.
var csvHeader = []string{"timestamp", "filename", "line_number", "error_type", "error_message", "raw_data"}

// CSVSink appends entries to a CSV error report. The header is written when
// the file is created.
type CSVSink struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	path string
}

// OpenCSV opens or creates the report at path.
func OpenCSV(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "diagnostics: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "diagnostics: stat %s", path)
	}
	s := &CSVSink{f: f, w: csv.NewWriter(f), path: path}
	if info.Size() == 0 {
		if err := s.w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, eris.Wrap(err, "diagnostics: write header")
		}
		s.w.Flush()
	}
	return s, nil
}

// Record implements Sink. Write failures are logged.
func (s *CSVSink) Record(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := ""
	if e.Row >= 0 {
		line = strconv.Itoa(e.Row + 1)
	}
	rec := []string{
		e.Timestamp.Format(time.RFC3339),
		e.Document,
		line,
		string(e.Kind),
		e.Message,
		strings.Join(e.Raw, " | "),
	}
	if err := s.w.Write(rec); err != nil {
		zap.L().Error("diagnostics: csv write failed", zap.String("path", s.path), zap.Error(err))
		return
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		zap.L().Error("diagnostics: csv flush failed", zap.String("path", s.path), zap.Error(err))
	}
}

// Path returns the report location.
func (s *CSVSink) Path() string { return s.path }

// Close flushes and closes the report.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.f.Close()
		return eris.Wrap(err, "diagnostics: flush")
	}
	return eris.Wrap(s.f.Close(), "diagnostics: close")
}
