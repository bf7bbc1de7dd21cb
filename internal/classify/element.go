package classify

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/numeric"
	"github.com/sells-group/dpgf-extract/internal/textutil"
	"github.com/sells-group/dpgf-extract/internal/units"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

const (
	maxDesignation   = 500
	maxUnit          = 10
	maxContinuations = 4
	reconcileEpsilon = 0.02
	minDesignation   = 5
)

// value is one numeric cell of a row.
type value struct {
	num     float64
	present bool
	ok      bool
	raw     string
}

func (v value) positive() bool { return v.present && v.ok && v.num > 0 }

const (
	colQuantity = iota
	colUnitPrice
	colTotalPrice
)

// rowView is the role-projected content of one worksheet row.
type rowView struct {
	row         int
	empty       bool
	designation string
	unit        string
	values      [3]value
	raw         []string
}

func (v rowView) hasNumbers() bool {
	for _, x := range v.values {
		if x.present {
			return true
		}
	}
	return false
}

var valueRoles = [3]model.Role{model.RoleQuantity, model.RoleUnitPrice, model.RoleTotalPrice}

// viewsFromMatrix projects rows start.. of m through roles.
func viewsFromMatrix(m *workbook.Matrix, roles model.RoleMap, start int) []rowView {
	if start < 0 {
		start = 0
	}
	out := make([]rowView, 0, max(0, m.Rows()-start))
	desig, _ := roles.Get(model.RoleDesignation)
	unitCol, hasUnit := roles.Get(model.RoleUnit)
	for r := start; r < m.Rows(); r++ {
		v := rowView{row: r, empty: m.RowEmpty(r), designation: m.Text(r, desig)}
		if !v.empty {
			v.raw = m.RowTexts(r)
		}
		if hasUnit {
			v.unit = m.Text(r, unitCol)
		}
		for i, role := range valueRoles {
			col, ok := roles.Get(role)
			if !ok {
				continue
			}
			cell := m.At(r, col)
			if cell.IsEmpty() || cell.String() == "" {
				continue
			}
			f, parsed := cell.Float()
			v.values[i] = value{num: f, present: true, ok: parsed, raw: cell.String()}
		}
		out = append(out, v)
	}
	return out
}

// viewsFromText projects labeler rows through roles.
func viewsFromText(rows []RowText, roles model.RoleMap) []rowView {
	out := make([]rowView, 0, len(rows))
	at := func(cells []string, role model.Role) (string, bool) {
		col, ok := roles.Get(role)
		if !ok || col >= len(cells) {
			return "", false
		}
		return strings.TrimSpace(cells[col]), true
	}
	for _, rt := range rows {
		v := rowView{row: rt.Row, raw: rt.Cells, empty: true}
		for _, c := range rt.Cells {
			if strings.TrimSpace(c) != "" {
				v.empty = false
				break
			}
		}
		v.designation, _ = at(rt.Cells, model.RoleDesignation)
		v.unit, _ = at(rt.Cells, model.RoleUnit)
		for i, role := range valueRoles {
			s, ok := at(rt.Cells, role)
			if !ok || s == "" {
				continue
			}
			f, parsed := numeric.ParseText(s)
			v.values[i] = value{num: f, present: true, ok: parsed, raw: s}
		}
		out = append(out, v)
	}
	return out
}

// analysis is the element heuristic's verdict on one row.
type analysis struct {
	score       int
	threshold   int
	typ         model.ElementType
	hasPrice    bool
	hasUnit     bool
	hasArticle  bool
	technical   bool
	numericCols int
	multiline   bool
}

func (a analysis) isElement(designation string) bool {
	if utf8.RuneCountInString(designation) <= 2 || utf8.RuneCountInString(designation) < minDesignation {
		return false
	}
	if !(a.hasPrice || a.hasUnit || a.hasArticle || a.technical || a.numericCols >= 1) {
		return false
	}
	return a.score >= a.threshold && a.score >= 0
}

// analyze scores views[i] as a potential line item. The following view is
// consulted for a continuation marker.
func analyze(views []rowView, i int) analysis {
	v := views[i]
	text := v.designation
	a := analysis{typ: model.ElementStandard}

	if utf8.RuneCountInString(text) > 2 {
		a.score++
		if technicalTerms.matches(text) {
			a.technical = true
			a.score += 2
		}
		if forfaitTerms.matches(text) {
			a.typ = model.ElementForfait
			a.score++
		}
		if variableTerms.matches(text) {
			a.typ = model.ElementVariable
			a.score++
		}
	}

	if first, ok := firstWord(text); ok {
		for _, re := range strictArticle {
			if re.MatchString(first) {
				a.hasArticle = true
				a.score += 2
				break
			}
		}
		if utf8.RuneCountInString(first) >= 3 && strings.ContainsAny(first, "0123456789") &&
			utf8.RuneCountInString(text) > utf8.RuneCountInString(first)+5 {
			a.hasArticle = true
			a.score++
		}
	}

	if u := strings.TrimSpace(v.unit); u != "" && u != "0" && u != "-" {
		a.hasUnit = true
		a.score++
		switch {
		case units.IsToken(u):
			a.score += 2
		case units.LooksLikeUnit(u):
			a.score++
		}
	}

	if q := v.values[colQuantity]; q.positive() {
		a.numericCols++
		a.score++
		if q.num >= 0.01 && q.num <= 10000 {
			a.score++
		}
	}
	if pu := v.values[colUnitPrice]; pu.positive() {
		a.hasPrice = true
		a.numericCols++
		a.score += 2
		if pu.num >= 0.01 && pu.num <= 100000 {
			a.score++
		}
	}
	if pt := v.values[colTotalPrice]; pt.positive() {
		a.hasPrice = true
		a.numericCols++
		a.score += 2
		if pt.num >= 1 && pt.num <= 1000000 {
			a.score++
		}
	}

	if next, ok := nextView(views, i); ok && continuesDesignation(next) {
		a.multiline = true
		a.score++
	}

	if contextTerms.matches(text) {
		a.score++
	}
	if falsePositiveTerms.matches(text) && utf8.RuneCountInString(text) < 50 {
		a.score -= 2
	}

	a.threshold = 3
	if a.typ == model.ElementForfait {
		a.threshold = 2
	}
	return a
}

func firstWord(s string) (string, bool) {
	f := strings.Fields(s)
	if len(f) == 0 {
		return "", false
	}
	return f[0], true
}

// nextView returns the view directly below views[i] when it is adjacent.
func nextView(views []rowView, i int) (rowView, bool) {
	if i+1 >= len(views) || views[i+1].row != views[i].row+1 || views[i+1].empty {
		return rowView{}, false
	}
	return views[i+1], true
}

// continuesDesignation reports whether v is a text-only continuation line.
func continuesDesignation(v rowView) bool {
	return !v.hasNumbers() && isContinuation(v.designation)
}

// pricedLine reports whether a row carries line-item values, in which case
// a section-like designation (a number, capitals, a dash) is read as an
// element rather than a chapter.
func pricedLine(v rowView) bool {
	if v.values[colUnitPrice].positive() {
		return true
	}
	return v.values[colQuantity].positive() && strings.TrimSpace(v.unit) != ""
}

// buildElement turns views[i] into an Element, folding up to four
// continuation rows into the designation. It returns the element, the
// number of continuation rows consumed and the warnings raised.
func buildElement(views []rowView, i int, a analysis) (model.Element, int, []model.Warning) {
	v := views[i]
	var warnings []model.Warning
	warn := func(kind model.WarningKind, msg string) {
		warnings = append(warnings, model.Warning{Row: v.row, Kind: kind, Message: msg, Raw: v.raw})
	}

	designation := strings.TrimSpace(v.designation)
	consumed := 0
	for j := i; consumed < maxContinuations; j++ {
		next, ok := nextView(views, j)
		if !ok || !continuesDesignation(next) {
			break
		}
		designation += " " + strings.TrimSpace(next.designation)
		consumed++
	}

	el := model.Element{
		Type:      a.typ,
		Multiline: consumed > 0,
		Row:       v.row,
	}

	var nums [3]float64
	for k, x := range v.values {
		if !x.present {
			continue
		}
		if !x.ok {
			warn(model.WarnNumberUnparsed, fmt.Sprintf("%s value %q is not a number", valueRoles[k], x.raw))
			continue
		}
		n := x.num
		if n < 0 {
			warn(model.WarnNegativeValue, fmt.Sprintf("negative %s %v replaced by its absolute value", valueRoles[k], n))
			n = math.Abs(n)
		}
		nums[k] = n
	}
	q, pu, total := nums[colQuantity], nums[colUnitPrice], nums[colTotalPrice]
	q, pu, total, el.Reconciled = reconcile(q, pu, total, a.typ, func(msg string) {
		warn(model.WarnReconciledInconsistent, msg)
	})
	el.Quantity = round(q, 4)
	el.UnitPrice = round(pu, 4)
	el.TotalPrice = round(total, 2)

	if a.typ == model.ElementVariable && !strings.Contains(strings.ToLower(designation), "variable") {
		designation += " (Prix variable)"
	}
	if a.hasArticle {
		if first, ok := firstWord(designation); ok {
			for _, re := range strictArticle[:splittableArticles] {
				if re.MatchString(first) {
					el.Article, _ = textutil.Truncate(first, 20, "")
					designation = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(designation), first))
					break
				}
			}
		}
	}
	el.Designation, _ = textutil.Truncate(designation, maxDesignation, "")
	el.Unit, _ = textutil.Truncate(units.Normalize(v.unit), maxUnit, "")
	return el, consumed, warnings
}

// reconcile derives missing values and settles inconsistent ones. Total
// price is authoritative when the three disagree.
func reconcile(q, pu, total float64, typ model.ElementType, inconsistent func(string)) (float64, float64, float64, bool) {
	derived := false
	switch {
	case total == 0 && q > 0 && pu > 0:
		total = q * pu
		derived = true
	case pu == 0 && q > 0 && total > 0:
		pu = total / q
		derived = true
	case q == 0 && pu > 0 && total > 0:
		q = total / pu
		derived = true
	}

	if typ == model.ElementForfait && q == 0 {
		q = 1
		switch {
		case total > 0:
			pu = total
		case pu > 0:
			total = pu
		}
		derived = true
	}

	if q > 0 && pu > 0 && total > 0 {
		if calc := q * pu; math.Abs(calc-total) > reconcileEpsilon {
			inconsistent(fmt.Sprintf("%v x %v = %v differs from total %v; unit price recomputed", q, pu, calc, total))
			pu = total / q
			derived = true
		}
	}
	return q, pu, total, derived
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
