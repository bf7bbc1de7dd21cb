// Package classify turns worksheet rows into sections and priced elements.
package classify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/textutil"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

const (
	maxNumero = 50
	maxTitle  = 255

	syntheticNumero = "1"
	syntheticTitle  = "Ungrouped items"
)

// State is the classifier state.
type State int

const (
	NoSection State = iota
	InSection
)

func (s State) String() string {
	if s == InSection {
		return "in_section"
	}
	return "no_section"
}

// Accumulator carries the hierarchy state between rows. A fresh one is
// used per worksheet.
type Accumulator struct {
	State    State
	Warnings []model.Warning

	sections []*model.Section
	current  *model.Section
	stack    map[int]string
	last     int

	lotNumero string
	rebase    int
	rebased   bool

	ignored int
}

// NewAccumulator starts in NoSection. lotNumero, when known, lets numbered
// chapters prefixed with the lot number start at level 1.
func NewAccumulator(lotNumero string) *Accumulator {
	return &Accumulator{stack: map[int]string{}, lotNumero: lotNumero}
}

// Sections returns the sections seen so far, in order, with their elements.
func (a *Accumulator) Sections() []model.Section {
	out := make([]model.Section, len(a.sections))
	for i, s := range a.sections {
		out[i] = *s
		out[i].Elements = append([]model.Element(nil), s.Elements...)
	}
	return out
}

// Ignored returns how many non-empty rows were ignored.
func (a *Accumulator) Ignored() int { return a.ignored }

func (a *Accumulator) warn(w model.Warning) {
	a.Warnings = append(a.Warnings, w)
}

// openSection appends a section, links its parent and updates the level
// stack.
func (a *Accumulator) openSection(s *model.Section) {
	for l := s.Level - 1; l >= 1; l-- {
		if p, ok := a.stack[l]; ok {
			s.Parent = p
			break
		}
	}
	a.stack[s.Level] = s.Numero
	for l := range a.stack {
		if l > s.Level {
			delete(a.stack, l)
		}
	}
	a.last = s.Level
	a.sections = append(a.sections, s)
	a.current = s
	a.State = InSection
}

// level applies the lot-prefix rebase to depth-numbered sections. The first
// depth-numbered chapter decides it: a two-component numero ("2.1") or one
// led by the lot number means the leading component names the lot.
func (a *Accumulator) level(sm SectionMatch) int {
	lvl := sm.Level(a.last)
	if !depthPatterns[sm.Pattern] {
		return lvl
	}
	if !a.rebased {
		a.rebased = true
		parts := strings.FieldsFunc(sm.Numero, func(r rune) bool { return r == '.' || r == ',' || r == '-' })
		if len(parts) == 2 || (len(parts) > 1 && sameNumber(parts[0], a.lotNumero)) {
			a.rebase = 1
		}
	}
	return max(1, lvl-a.rebase)
}

func sameNumber(a, b string) bool {
	x, err1 := strconv.Atoi(strings.TrimSpace(a))
	y, err2 := strconv.Atoi(strings.TrimSpace(b))
	return err1 == nil && err2 == nil && x == y
}

// Classifier walks worksheet rows through the section/element state machine.
type Classifier struct {
	roles model.RoleMap
}

// New returns a Classifier reading the columns of roles.
func New(roles model.RoleMap) *Classifier {
	return &Classifier{roles: roles.Clone()}
}

// Run classifies rows start.. of m in ascending order. labels, keyed by
// row, decide the kind of the rows they cover; other rows use the
// heuristic.
func (c *Classifier) Run(m *workbook.Matrix, start int, labels map[int]Label, acc *Accumulator) *Accumulator {
	if acc == nil {
		acc = NewAccumulator("")
	}
	views := viewsFromMatrix(m, c.roles, start)
	for i := 0; i < len(views); i++ {
		i += c.step(views, i, labels, acc)
	}
	return acc
}

// step classifies views[i] and returns the number of following rows it
// consumed as continuation lines.
func (c *Classifier) step(views []rowView, i int, labels map[int]Label, acc *Accumulator) int {
	v := views[i]
	if v.empty {
		return 0
	}

	d := decide(views, i)
	if l, ok := labels[v.row]; ok && l.Kind.Valid() {
		d = applyLabel(views, i, l, d)
	}

	switch d.kind {
	case KindSection:
		c.section(acc, v, d)
		return 0
	case KindElement:
		return c.element(acc, views, i, d.analysis)
	default:
		acc.ignored++
		acc.warn(model.Warning{Row: v.row, Kind: model.WarnRowIgnored, Message: d.reason, Raw: v.raw})
		return 0
	}
}

// applyLabel lets an external label override the heuristic kind. Field
// extraction still runs locally.
func applyLabel(views []rowView, i int, l Label, d decision) decision {
	v := views[i]
	switch l.Kind {
	case KindSection:
		if sm, ok := MatchSection(v.designation); ok {
			return decision{kind: KindSection, section: sm}
		}
		title := strings.TrimSpace(l.Title)
		if title == "" {
			title = v.designation
		}
		if title == "" {
			return decision{kind: KindIgnore, reason: "section label without title"}
		}
		numero := strings.TrimSpace(l.Numero)
		if numero == "" {
			numero = hashedNumero("S", title, 10000, 4)
		}
		lvl := l.Level
		return decision{kind: KindSection, section: SectionMatch{
			Pattern: "label",
			Numero:  numero,
			Title:   title,
			level:   func(string, int) int { return max(1, lvl) },
		}}
	case KindElement:
		if v.designation == "" {
			return decision{kind: KindIgnore, reason: "element label without designation"}
		}
		a := d.analysis
		if d.kind != KindElement {
			a = analyze(views, i)
		}
		return decision{kind: KindElement, analysis: a}
	default:
		reason := l.Reason
		if reason == "" {
			reason = "labeled ignore"
		}
		return decision{kind: KindIgnore, reason: reason}
	}
}

func (c *Classifier) section(acc *Accumulator, v rowView, d decision) {
	sm := d.section
	numero, cut := textutil.Truncate(sm.Numero, maxNumero, "…")
	if cut {
		acc.warn(model.Warning{
			Row: v.row, Kind: model.WarnNumeroTruncated,
			Message: fmt.Sprintf("section numero truncated to %d characters", maxNumero), Raw: v.raw,
		})
	}
	if sm.Pattern != totalPattern && pricedLine(v) {
		acc.warn(model.Warning{
			Row: v.row, Kind: model.WarnPricedSection,
			Message: "row labeled as a section carries quantity or price values that are not extracted", Raw: v.raw,
		})
	}
	title, _ := textutil.Truncate(sm.Title, maxTitle, "…")
	acc.openSection(&model.Section{
		Numero:   numero,
		Title:    title,
		Level:    acc.level(sm),
		Row:      v.row,
		Pattern:  sm.Pattern,
		Elements: []model.Element{},
	})
}

func (c *Classifier) element(acc *Accumulator, views []rowView, i int, a analysis) int {
	v := views[i]
	if acc.current == nil {
		acc.openSection(&model.Section{
			Numero:    syntheticNumero,
			Title:     syntheticTitle,
			Level:     1,
			Row:       v.row,
			Pattern:   "synthetic",
			Synthetic: true,
			Elements:  []model.Element{},
		})
		acc.warn(model.Warning{
			Row: v.row, Kind: model.WarnSyntheticSection,
			Message: "line item before any section; grouped under a synthetic section", Raw: v.raw,
		})
	}
	el, consumed, warnings := buildElement(views, i, a)
	acc.current.Elements = append(acc.current.Elements, el)
	for _, w := range warnings {
		acc.warn(w)
	}
	return consumed
}
