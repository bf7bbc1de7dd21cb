package header

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/store"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

// Strategy names the mapping strategy that produced a RoleMap.
type Strategy string

const (
	StrategyStore   Strategy = "store"
	StrategyHeader  Strategy = "header"
	StrategyContent Strategy = "content"
	StrategyManual  Strategy = "manual"
)

const (
	highScore   = 6
	mediumScore = 4

	signatureRows = 5
	manualSample  = 10
)

// ManualRequest is what a ManualResolver sees when automatic mapping is
// not trusted.
type ManualRequest struct {
	Document  string
	Signature string
	Headers   []string
	Sample    [][]string
	Proposed  model.RoleMap
	Width     int
}

// ManualResolver asks an operator (or any external authority) for a mapping.
// Returning a nil map declines.
type ManualResolver interface {
	Resolve(ctx context.Context, req ManualRequest) (model.RoleMap, error)
}

// ResolverFunc adapts a function to ManualResolver.
type ResolverFunc func(ctx context.Context, req ManualRequest) (model.RoleMap, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, req ManualRequest) (model.RoleMap, error) {
	return f(ctx, req)
}

// Mapping is a resolved column mapping with its provenance.
type Mapping struct {
	Roles      model.RoleMap    `json:"roles"`
	Confidence model.Confidence `json:"confidence"`
	Strategy   Strategy         `json:"strategy"`
	Signature  string           `json:"signature"`
	Inferred   []model.Role     `json:"inferred,omitempty"`
	Persisted  bool             `json:"persisted"`
	Warnings   []model.Warning  `json:"-"`
}

// Mapper resolves worksheet columns to roles. It tries the mapping store,
// then header synonyms, then content statistics, then the manual resolver.
type Mapper struct {
	store       store.Store
	resolver    ManualResolver
	sampleRows  int
	filenameTag bool
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithResolver sets the resolver consulted for low-confidence mappings.
func WithResolver(r ManualResolver) Option {
	return func(m *Mapper) { m.resolver = r }
}

// WithSampleRows bounds the rows examined by content inference.
func WithSampleRows(n int) Option {
	return func(m *Mapper) {
		if n > 0 {
			m.sampleRows = n
		}
	}
}

// WithFilenameTag appends a tag derived from the document name to every
// signature.
func WithFilenameTag(on bool) Option {
	return func(m *Mapper) { m.filenameTag = on }
}

// NewMapper returns a Mapper backed by s. A nil store disables lookup and
// persistence.
func NewMapper(s store.Store, opts ...Option) *Mapper {
	mp := &Mapper{store: s, sampleRows: DefaultSampleRows}
	for _, o := range opts {
		o(mp)
	}
	return mp
}

// Map resolves the column roles of m. hdr may be nil when no header row was
// found. Store and resolver failures are logged and degrade to the next
// strategy; only context cancellation is returned as an error.
func (mp *Mapper) Map(ctx context.Context, m *workbook.Matrix, hdr *Header, document string) (*Mapping, error) {
	if m == nil {
		return nil, eris.New("header: nil matrix")
	}
	sig := mp.signature(m, hdr, document)
	log := zap.L().With(zap.String("document", document), zap.String("signature", sig))
	out := &Mapping{Signature: sig}

	// 1. Learned mapping.
	if mp.store != nil {
		stored, err := mp.store.GetMapping(ctx, sig)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "header: map columns")
			}
			log.Warn("header: mapping store lookup failed", zap.Error(err))
		case stored != nil:
			if verr := stored.Roles.Validate(m.Cols()); verr != nil {
				out.warn(model.WarnMappingRejected, fmt.Sprintf("stored mapping %s rejected: %v", sig, verr))
			} else {
				out.Roles = stored.Roles.Clone()
				out.Confidence = model.ConfidenceHigh
				out.Strategy = StrategyStore
				return out, nil
			}
		}
	}

	// 2. Header synonyms.
	start := 0
	if hdr != nil {
		start = hdr.Row + 1
		roles, conf, inferred := mapFromHeader(m, hdr)
		out.Roles, out.Confidence, out.Strategy, out.Inferred = roles, conf, StrategyHeader, inferred
	}

	// 3. Content statistics.
	if hdr == nil || out.Confidence == model.ConfidenceLow {
		inf := inferFromContent(m, start, mp.sampleRows)
		if hdr == nil || betterInference(inf, out) {
			out.Roles, out.Confidence, out.Strategy, out.Inferred = inf.roles, inf.confidence, StrategyContent, nil
			if inf.ambiguous {
				out.warn(model.WarnAmbiguousMagnitude, "two numeric columns of near-equal magnitude; assigned unit_price and total_price")
			}
		}
	}

	// 4. Manual resolution.
	if out.Confidence == model.ConfidenceLow {
		if err := mp.resolveManually(ctx, m, hdr, document, out); err != nil {
			return nil, err
		}
	}
	if out.Confidence == model.ConfidenceLow {
		out.warn(model.WarnLowMappingConfidence, fmt.Sprintf("column mapping kept with low confidence (%s)", out.Strategy))
	}

	if out.Confidence == model.ConfidenceHigh && out.Strategy != StrategyStore {
		mp.persist(ctx, out, model.ConfidenceHigh)
	}

	log.Debug("header: column mapping resolved",
		zap.String("strategy", string(out.Strategy)),
		zap.String("confidence", string(out.Confidence)),
		zap.Any("roles", out.Roles),
	)
	return out, nil
}

func (mp *Mapper) resolveManually(ctx context.Context, m *workbook.Matrix, hdr *Header, document string, out *Mapping) error {
	if mp.resolver == nil {
		return nil
	}
	req := ManualRequest{
		Document:  document,
		Signature: out.Signature,
		Proposed:  out.Roles.Clone(),
		Width:     m.Cols(),
	}
	start := 0
	if hdr != nil {
		req.Headers = hdr.Cells
		start = hdr.Row + 1
	}
	for r := start; r < m.Rows() && len(req.Sample) < manualSample; r++ {
		if !m.RowEmpty(r) {
			req.Sample = append(req.Sample, m.RowTexts(r))
		}
	}

	roles, err := mp.resolver.Resolve(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "header: manual resolution")
		}
		out.warn(model.WarnMappingRejected, fmt.Sprintf("manual resolver failed: %v", err))
		return nil
	}
	if roles == nil {
		return nil
	}
	if verr := roles.Validate(m.Cols()); verr != nil {
		out.warn(model.WarnMappingRejected, fmt.Sprintf("manual mapping rejected: %v", verr))
		return nil
	}
	out.Roles = roles.Clone()
	out.Confidence = model.ConfidenceManual
	out.Strategy = StrategyManual
	out.Inferred = nil
	mp.persist(ctx, out, model.ConfidenceManual)
	return nil
}

func (mp *Mapper) persist(ctx context.Context, out *Mapping, source model.Confidence) {
	if mp.store == nil {
		return
	}
	_, created, err := mp.store.PutMapping(ctx, out.Signature, out.Roles, source)
	if err != nil {
		zap.L().Warn("header: persist mapping failed",
			zap.String("signature", out.Signature),
			zap.Error(err),
		)
		return
	}
	out.Persisted = created
}

// signature fingerprints the header row, or the first non-empty rows when
// there is no header.
func (mp *Mapper) signature(m *workbook.Matrix, hdr *Header, document string) string {
	tag := ""
	if mp.filenameTag && document != "" {
		tag = store.FilenameTag(document)
	}
	if hdr != nil {
		return store.Signature(hdr.Cells, tag)
	}
	var cells []string
	seen := 0
	for r := 0; r < m.Rows() && seen < signatureRows; r++ {
		if m.RowEmpty(r) {
			continue
		}
		seen++
		cells = append(cells, trimTrailing(m.RowTexts(r))...)
	}
	return store.Signature(cells, tag)
}

// mapFromHeader maps roles from the matched header cells, then fills the
// designation and positional gaps.
func mapFromHeader(m *workbook.Matrix, hdr *Header) (model.RoleMap, model.Confidence, []model.Role) {
	roles := hdr.Columns.Clone()

	score := 0
	for _, r := range roles.Mapped() {
		if r.IsEssential() {
			score += 2
		} else {
			score++
		}
	}
	conf := model.ConfidenceLow
	switch {
	case score >= highScore:
		conf = model.ConfidenceHigh
	case score >= mediumScore:
		conf = model.ConfidenceMedium
	}

	var inferred []model.Role
	if !roles.Has(model.RoleDesignation) {
		if col, ok := designationFallback(m, hdr.Row, roles); ok {
			roles[model.RoleDesignation] = col
		} else {
			roles[model.RoleDesignation] = firstFree(roles, m.Cols())
		}
		inferred = append(inferred, model.RoleDesignation)
	}
	inferred = append(inferred, completePositions(roles, m.Cols())...)
	return roles, conf, inferred
}

func firstFree(roles model.RoleMap, width int) int {
	for c := 0; c < width; c++ {
		if !roles.ColumnTaken(c) {
			return c
		}
	}
	return 0
}

// betterInference reports whether content inference beats the header map.
// Ties go to the header unless inference maps more roles.
func betterInference(inf inference, cur *Mapping) bool {
	if cur.Roles == nil {
		return true
	}
	if inf.confidence != cur.Confidence {
		return inf.confidence.AtLeast(cur.Confidence)
	}
	return len(inf.roles) > len(cur.Roles)
}

func (m *Mapping) warn(kind model.WarningKind, msg string) {
	m.Warnings = append(m.Warnings, model.Warning{Row: -1, Kind: kind, Message: msg})
}
