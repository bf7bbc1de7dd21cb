// Package sheet picks the worksheet of a workbook that holds the bill of
// quantities.
package sheet

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dpgf-extract/internal/units"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = eris.New("sheet: workbook has no worksheets")

const scanRows = 20

var (
	dpgfKeywords = []string{
		"designation", "désignation", "quantité", "quantite", "prix unitaire", "prix total",
		"montant", "unitaire", "unité", "unite",
	}
	tradeKeywords = []string{
		"fourniture", "pose", "installation", "montage", "maçonnerie", "maconnerie",
		"charpente", "couverture", "menuiserie", "plomberie", "électricité", "electricite",
	}
	nonDataNames = []string{"info", "infos", "garde", "page", "cover", "sommaire", "recap", "summary"}

	// unitPriceRe matches the P.U. abbreviation as a whole word only.
	unitPriceRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])p\.?u\.?(?:$|[^\p{L}\p{N}])`)
	numberingRe = regexp.MustCompile(`^(?:\d+(?:\.\d+)*|[A-Z]\d+(?:\.\d+)*)$`)
	lotNameRe   = regexp.MustCompile(`(?i)lot\s*\d+`)
)

// Score is the relevance score of one worksheet.
type Score struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Selection is the chosen worksheet and the score of every candidate.
type Selection struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	Score         int     `json:"score"`
	LowConfidence bool    `json:"low_confidence"`
	Scores        []Score `json:"scores"`
}

// Select scores every worksheet of wb and returns the best one. Ties keep the
// earlier sheet. When no sheet scores above zero the first sheet is chosen
// and the selection is flagged low confidence.
func Select(wb *workbook.Workbook) (Selection, error) {
	if wb == nil || len(wb.Sheets) == 0 {
		return Selection{}, ErrNoSheets
	}

	sel := Selection{Index: -1, Scores: make([]Score, len(wb.Sheets))}
	for i, s := range wb.Sheets {
		sc := ScoreSheet(s.Name, s.Data)
		sel.Scores[i] = Score{Name: s.Name, Score: sc}
		if sel.Index < 0 || sc > sel.Score {
			sel.Index, sel.Score = i, sc
		}
	}

	if sel.Score <= 0 {
		sel.Index, sel.Score = 0, sel.Scores[0].Score
		sel.LowConfidence = true
	}
	sel.Name = wb.Sheets[sel.Index].Name
	return sel, nil
}

// ScoreSheet rates how much a worksheet looks like a bill of quantities.
func ScoreSheet(name string, m *workbook.Matrix) int {
	if m == nil {
		return 0
	}
	score := 0
	rows := m.Rows()
	limit := min(scanRows, rows)

	for r := 0; r < limit; r++ {
		texts := m.RowTexts(r)
		rowText := strings.ToLower(strings.Join(texts, " "))

		for _, kw := range dpgfKeywords {
			if strings.Contains(rowText, kw) {
				score += 8
			}
		}
		if unitPriceRe.MatchString(rowText) {
			score += 8
		}
		for _, kw := range tradeKeywords {
			if strings.Contains(rowText, kw) {
				score += 3
			}
		}

		numeric := 0
		first := true
		for c, t := range texts {
			if t == "" {
				continue
			}
			// Only the leading cell of a row carries the item number.
			if first && numberingRe.MatchString(t) {
				score += 3
			}
			first = false
			if units.IsToken(t) {
				score += 2
			}
			if m.At(r, c).IsNumeric() {
				numeric++
			}
		}
		if numeric >= 3 {
			score += 4
		}
	}

	for c := 0; c < min(10, m.Cols()); c++ {
		n := 0
		for r := 0; r < limit; r++ {
			if m.At(r, c).IsNumeric() {
				n++
			}
		}
		if n > 5 {
			score += 3
		}
	}

	switch {
	case rows > 20:
		score += 10
	case rows > 10:
		score += 5
	}
	if rows < 10 {
		score -= 10
	}

	cols := m.PopulatedCols()
	switch {
	case cols >= 4 && cols <= 15:
		score += 5
	case cols > 15:
		score -= 2
	}

	lname := strings.ToLower(name)
	for _, bad := range nonDataNames {
		if strings.Contains(lname, bad) {
			score -= 15
			break
		}
	}
	if lotNameRe.MatchString(name) {
		score += 15
	}
	return score
}
