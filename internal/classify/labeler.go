package classify

import (
	"context"
	"fmt"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

// Kind is the classification of one worksheet row.
type Kind string

const (
	KindSection Kind = "section"
	KindElement Kind = "element"
	KindIgnore  Kind = "ignore"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSection || k == KindElement || k == KindIgnore
}

// RowText is a non-empty worksheet row handed to a Labeler.
type RowText struct {
	Row   int      `json:"row"`
	Cells []string `json:"cells"`
}

// Label is a Labeler's verdict on one row. Numero, Title and Level are
// hints for sections the catalog does not recognize.
type Label struct {
	Row    int    `json:"row"`
	Kind   Kind   `json:"type"`
	Numero string `json:"numero,omitempty"`
	Title  string `json:"title,omitempty"`
	Level  int    `json:"level,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Labeler classifies batches of rows.
type Labeler interface {
	Label(ctx context.Context, rows []RowText) ([]Label, error)
}

// RowTexts returns the non-empty rows of m from start on.
func RowTexts(m *workbook.Matrix, start int) []RowText {
	var out []RowText
	for r := max(0, start); r < m.Rows(); r++ {
		if m.RowEmpty(r) {
			continue
		}
		out = append(out, RowText{Row: r, Cells: m.RowTexts(r)})
	}
	return out
}

// HeuristicLabeler labels rows with the section catalog and the element
// heuristic. It never fails.
type HeuristicLabeler struct {
	Roles model.RoleMap
}

// Label implements Labeler.
func (h HeuristicLabeler) Label(_ context.Context, rows []RowText) ([]Label, error) {
	views := viewsFromText(rows, h.Roles)
	out := make([]Label, 0, len(views))
	last := 0
	for i := range views {
		d := decide(views, i)
		l := Label{Row: views[i].row, Kind: d.kind, Reason: d.reason}
		if d.kind == KindSection {
			l.Numero, l.Title = d.section.Numero, d.section.Title
			l.Level = d.section.Level(last)
			last = l.Level
		}
		out = append(out, l)
	}
	return out, nil
}

// decision is the heuristic outcome for one row.
type decision struct {
	kind     Kind
	section  SectionMatch
	analysis analysis
	reason   string
}

// decide classifies views[i] without any accumulated state: section catalog
// first, then the element heuristic.
func decide(views []rowView, i int) decision {
	v := views[i]
	if v.empty {
		return decision{kind: KindIgnore, reason: "empty row"}
	}
	if v.designation == "" {
		if v.hasNumbers() {
			return decision{kind: KindIgnore, reason: "values without designation"}
		}
		return decision{kind: KindIgnore, reason: "no designation"}
	}
	if sm, ok := MatchSection(v.designation); ok && (sm.Pattern == totalPattern || !pricedLine(v)) {
		return decision{kind: KindSection, section: sm}
	}
	a := analyze(views, i)
	if a.isElement(v.designation) {
		return decision{kind: KindElement, analysis: a}
	}
	return decision{
		kind:     KindIgnore,
		analysis: a,
		reason:   fmt.Sprintf("element score %d below threshold %d", a.score, a.threshold),
	}
}
