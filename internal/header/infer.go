package header

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/units"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

// DefaultSampleRows bounds the rows examined by content inference.
const DefaultSampleRows = 40

const (
	minNumericCells   = 5
	maxUnitCellLen    = 15
	unitTokenShare    = 0.5
	magnitudeSplit    = 10.0
	magnitudeDistinct = 1.15
	maxArticleStep    = 10.0

	designationScanCols = 5
	designationScanRows = 9
	designationMinLen   = 10
)

// columnStats summarizes the sampled cells of one column.
type columnStats struct {
	col        int
	numeric    int
	texts      int
	textLen    int
	maxTextLen int
	unitTokens int
	sum        float64

	// last and smallSteps track runs of increasing numbers, the shape of an
	// article-number column.
	last       float64
	smallSteps int
}

// articleLike reports whether every sampled number rises over the previous
// one by at most maxArticleStep.
func (s columnStats) articleLike() bool {
	return s.numeric > minNumericCells && s.smallSteps == s.numeric-1
}

func (s columnStats) mean() float64 {
	if s.numeric == 0 {
		return 0
	}
	return s.sum / float64(s.numeric)
}

func (s columnStats) avgText() float64 {
	if s.texts == 0 {
		return 0
	}
	return float64(s.textLen) / float64(s.texts)
}

func sampleStats(m *workbook.Matrix, start, rows int) []columnStats {
	stats := make([]columnStats, m.Cols())
	for c := range stats {
		stats[c].col = c
	}
	taken := 0
	for r := start; r < m.Rows() && taken < rows; r++ {
		if m.RowEmpty(r) {
			continue
		}
		taken++
		for c := range stats {
			cell := m.At(r, c)
			if cell.IsEmpty() {
				continue
			}
			if cell.IsNumeric() {
				v, _ := cell.Float()
				if d := v - stats[c].last; stats[c].numeric > 0 && d > 0 && d <= maxArticleStep {
					stats[c].smallSteps++
				}
				stats[c].last = v
				stats[c].numeric++
				stats[c].sum += math.Abs(v)
				continue
			}
			text := cell.String()
			if text == "" {
				continue
			}
			n := utf8.RuneCountInString(text)
			stats[c].texts++
			stats[c].textLen += n
			stats[c].maxTextLen = max(stats[c].maxTextLen, n)
			if units.IsToken(text) {
				stats[c].unitTokens++
			}
		}
	}
	return stats
}

// inference is the outcome of content-statistics mapping.
type inference struct {
	roles      model.RoleMap
	confidence model.Confidence
	ambiguous  bool
}

// inferFromContent maps columns from the statistics of the rows following
// start. It never fails; with no usable text column it falls back to column
// zero for the designation.
func inferFromContent(m *workbook.Matrix, start, sampleRows int) inference {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	stats := sampleStats(m, start, sampleRows)
	roles := model.RoleMap{}

	desig, bestAvg := -1, 0.0
	for _, s := range stats {
		if s.numeric > minNumericCells || s.texts == 0 {
			continue
		}
		if avg := s.avgText(); avg > bestAvg {
			desig, bestAvg = s.col, avg
		}
	}
	if desig < 0 {
		desig = 0
	}
	roles[model.RoleDesignation] = desig

	var numeric []columnStats
	for _, s := range stats {
		if s.col != desig && s.numeric > minNumericCells && !s.articleLike() {
			numeric = append(numeric, s)
		}
	}
	if len(numeric) > 3 {
		sort.SliceStable(numeric, func(i, j int) bool { return numeric[i].numeric > numeric[j].numeric })
		numeric = numeric[:3]
	}
	sort.SliceStable(numeric, func(i, j int) bool { return numeric[i].mean() < numeric[j].mean() })

	out := inference{roles: roles, confidence: model.ConfidenceLow}
	switch len(numeric) {
	case 3:
		roles[model.RoleQuantity] = numeric[0].col
		roles[model.RoleUnitPrice] = numeric[1].col
		roles[model.RoleTotalPrice] = numeric[2].col
		if distinct(numeric[0].mean(), numeric[1].mean()) && distinct(numeric[1].mean(), numeric[2].mean()) {
			out.confidence = model.ConfidenceMedium
		}
	case 2:
		lo, hi := numeric[0], numeric[1]
		ratio := math.Inf(1)
		if lo.mean() > 0 {
			ratio = hi.mean() / lo.mean()
		}
		switch {
		case ratio >= magnitudeSplit:
			roles[model.RoleQuantity] = lo.col
			roles[model.RoleTotalPrice] = hi.col
			out.confidence = model.ConfidenceMedium
		case ratio >= magnitudeDistinct:
			roles[model.RoleUnitPrice] = lo.col
			roles[model.RoleTotalPrice] = hi.col
			out.confidence = model.ConfidenceMedium
		default:
			roles[model.RoleUnitPrice] = lo.col
			roles[model.RoleTotalPrice] = hi.col
			out.ambiguous = true
		}
	case 1:
		roles[model.RoleTotalPrice] = numeric[0].col
	}

	if col, ok := unitColumn(stats, desig, roles); ok {
		roles[model.RoleUnit] = col
	}
	return out
}

func distinct(a, b float64) bool {
	lo, hi := math.Min(a, b), math.Max(a, b)
	if lo <= 0 {
		return hi > 0
	}
	return hi/lo >= magnitudeDistinct
}

// unitColumn picks a short text column next to the designation whose cells
// are mostly known unit tokens. The right neighbour is preferred.
func unitColumn(stats []columnStats, desig int, roles model.RoleMap) (int, bool) {
	for _, col := range []int{desig + 1, desig - 1} {
		if col < 0 || col >= len(stats) || roles.ColumnTaken(col) {
			continue
		}
		s := stats[col]
		if s.texts == 0 || s.numeric > s.texts || s.maxTextLen > maxUnitCellLen {
			continue
		}
		if float64(s.unitTokens)/float64(s.texts) >= unitTokenShare {
			return col, true
		}
	}
	return 0, false
}

// designationFallback picks, among the first five columns, the one with the
// most text (counting only texts longer than ten characters) in the nine rows
// after the header.
func designationFallback(m *workbook.Matrix, headerRow int, roles model.RoleMap) (int, bool) {
	best, bestLen := -1, 0
	for c := 0; c < min(designationScanCols, m.Cols()); c++ {
		if roles.ColumnTaken(c) {
			continue
		}
		total := 0
		for r := headerRow + 1; r <= headerRow+designationScanRows && r < m.Rows(); r++ {
			cell := m.At(r, c)
			if cell.Kind != workbook.CellText {
				continue
			}
			if t := strings.TrimSpace(cell.Text); utf8.RuneCountInString(t) > designationMinLen {
				total += utf8.RuneCountInString(t)
			}
		}
		if total > bestLen {
			best, bestLen = c, total
		}
	}
	return best, best >= 0
}

// completePositions fills roles that usually sit next to known ones.
// It returns the roles it added.
func completePositions(roles model.RoleMap, width int) []model.Role {
	var added []model.Role
	assign := func(role model.Role, col int) {
		if roles.Has(role) || col < 0 || col >= width || roles.ColumnTaken(col) {
			return
		}
		roles[role] = col
		added = append(added, role)
	}

	pu, hasPU := roles.Get(model.RoleUnitPrice)
	qty, hasQty := roles.Get(model.RoleQuantity)
	total, hasTotal := roles.Get(model.RoleTotalPrice)

	if hasPU && hasQty && !hasTotal {
		assign(model.RoleTotalPrice, pu+1)
	}
	if hasTotal && hasQty && !hasPU {
		assign(model.RoleUnitPrice, total-1)
	}
	if desig, ok := roles.Get(model.RoleDesignation); ok && hasQty && !roles.Has(model.RoleUnit) && qty-desig > 1 {
		assign(model.RoleUnit, qty-1)
	}
	return added
}
