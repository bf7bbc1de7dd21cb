// Package lot identifies the work package (lot) a bid document covers.
package lot

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

const (
	// ContextRows is how many leading non-empty rows the service sees and
	// the content scan reads.
	ContextRows = 15
	// ContextCells caps the cells per row sent to the service.
	ContextCells = 10
)

// ErrServiceUnavailable is returned by a Service that declines to run,
// for instance because its breaker is open.
var ErrServiceUnavailable = eris.New("lot: service unavailable")

var contentPattern = regexp.MustCompile(`(?i)lot\s+([^\s–-]+)\s*[–-]\s*(.+)`)

// ServiceRequest is the context handed to an external lot service.
type ServiceRequest struct {
	Filename string
	Rows     [][]string
}

// Service is an external lot classifier.
type Service interface {
	IdentifyLot(ctx context.Context, req ServiceRequest) (model.Lot, bool, error)
}

// Result is the outcome of lot identification.
type Result struct {
	Lot      model.Lot         `json:"lot"`
	Found    bool              `json:"found"`
	Strategy model.LotStrategy `json:"strategy"`
	Warnings []model.Warning   `json:"-"`
}

// Identifier runs the lot strategies in order: file name, external service,
// worksheet content.
type Identifier struct {
	service Service
	timeout time.Duration
}

// Option configures an Identifier.
type Option func(*Identifier)

// WithService enables the external classification strategy.
func WithService(s Service) Option {
	return func(id *Identifier) { id.service = s }
}

// WithTimeout bounds each service call.
func WithTimeout(d time.Duration) Option {
	return func(id *Identifier) { id.timeout = d }
}

// NewIdentifier builds an Identifier.
func NewIdentifier(opts ...Option) *Identifier {
	id := &Identifier{}
	for _, o := range opts {
		o(id)
	}
	return id
}

// Identify determines the lot of a document from its file name, the
// optional service and the first rows of m. It never fabricates a lot:
// Found is false when no strategy succeeds.
func (id *Identifier) Identify(ctx context.Context, filename string, m *workbook.Matrix) Result {
	log := zap.L().With(zap.String("document", filename))

	if l, ok := FromFilename(filename); ok {
		log.Debug("lot: identified from file name", zap.String("numero", l.Numero))
		return Result{Lot: l, Found: true, Strategy: model.LotStrategyFilename}
	}

	var res Result
	if id.service != nil {
		l, ok, err := id.callService(ctx, filename, m)
		switch {
		case err != nil && errors.Is(err, ErrServiceUnavailable):
			log.Debug("lot: service skipped", zap.Error(err))
		case err != nil:
			log.Warn("lot: service failed", zap.Error(err))
			res.Warnings = append(res.Warnings, model.Warning{
				Row: -1, Kind: model.WarnAIFallback, Message: "lot service failed: " + err.Error(),
			})
		case ok:
			log.Debug("lot: identified by service", zap.String("numero", l.Numero))
			res.Lot, res.Found, res.Strategy = l, true, model.LotStrategyService
			return res
		}
	}

	if l, ok := FromContent(m); ok {
		log.Debug("lot: identified from content", zap.String("numero", l.Numero))
		res.Lot, res.Found, res.Strategy = l, true, model.LotStrategyContent
		return res
	}

	res.Strategy = model.LotStrategyNone
	return res
}

// IdentifyInSheet identifies the lot of one worksheet of a multi-lot
// workbook. The sheet name is tried like a file name before the content.
func (id *Identifier) IdentifyInSheet(ctx context.Context, filename string, sh workbook.Sheet) Result {
	if l, ok := fromSheetName(sh.Name); ok {
		return Result{Lot: l, Found: true, Strategy: model.LotStrategyFilename}
	}
	if l, ok := FromContent(sh.Data); ok {
		return Result{Lot: l, Found: true, Strategy: model.LotStrategyContent}
	}
	return id.Identify(ctx, filename, sh.Data)
}

// fromSheetName only accepts catalog hits; keyword inference would match
// any sheet named after a trade.
func fromSheetName(name string) (model.Lot, bool) {
	for _, p := range filenameCatalog {
		sub := p.re.FindStringSubmatch(name)
		if sub == nil || !validNumero(strings.TrimSpace(sub[1])) {
			continue
		}
		numero := strings.TrimSpace(sub[1])
		n := ""
		if len(sub) > 2 {
			n = CleanName(sub[2])
		}
		if len([]rune(n)) < 3 {
			n = FallbackName(numero, name)
		}
		return model.Lot{Numero: numero, Name: n}, true
	}
	return model.Lot{}, false
}

func (id *Identifier) callService(ctx context.Context, filename string, m *workbook.Matrix) (model.Lot, bool, error) {
	if id.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, id.timeout)
		defer cancel()
	}
	return id.service.IdentifyLot(ctx, ServiceRequest{Filename: filename, Rows: LeadingRows(m)})
}

// LeadingRows returns up to ContextRows non-empty rows of m, each cut to
// ContextCells cells.
func LeadingRows(m *workbook.Matrix) [][]string {
	if m == nil {
		return nil
	}
	var out [][]string
	for r := 0; r < m.Rows() && len(out) < ContextRows; r++ {
		if m.RowEmpty(r) {
			continue
		}
		cells := m.RowTexts(r)
		if len(cells) > ContextCells {
			cells = cells[:ContextCells]
		}
		out = append(out, cells)
	}
	return out
}

// FromContent scans every cell of the first rows of m for a "Lot n - name"
// title.
func FromContent(m *workbook.Matrix) (model.Lot, bool) {
	if m == nil {
		return model.Lot{}, false
	}
	for r := 0; r < min(ContextRows, m.Rows()); r++ {
		for c := 0; c < m.Cols(); c++ {
			text := m.Text(r, c)
			if text == "" {
				continue
			}
			if sub := contentPattern.FindStringSubmatch(text); sub != nil {
				return model.Lot{
					Numero: strings.TrimSpace(sub[1]),
					Name:   strings.TrimSpace(sub[2]),
				}, true
			}
		}
	}
	return model.Lot{}, false
}

// ParseReply decodes a service reply of the form "LOT_FOUND:nn|name" or
// "NO_LOT_FOUND".
func ParseReply(reply string) (model.Lot, bool, error) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "NO_LOT_FOUND") {
		return model.Lot{}, false, nil
	}
	i := strings.Index(s, "LOT_FOUND:")
	if i < 0 {
		return model.Lot{}, false, eris.Errorf("lot: unexpected service reply %q", reply)
	}
	body := strings.TrimSpace(s[i+len("LOT_FOUND:"):])
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[:nl]
	}
	numero, name, ok := strings.Cut(body, "|")
	numero, name = strings.TrimSpace(numero), strings.TrimSpace(name)
	if !ok || numero == "" || name == "" {
		return model.Lot{}, false, eris.Errorf("lot: malformed service reply %q", reply)
	}
	return model.Lot{Numero: numero, Name: name}, true, nil
}
