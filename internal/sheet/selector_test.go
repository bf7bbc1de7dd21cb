package sheet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpgf-extract/internal/workbook"
)

func dpgfRows(n int) [][]string {
	rows := [][]string{{"N°", "Désignation", "Unité", "Quantité", "Prix unitaire", "Prix total"}}
	for i := 1; i <= n; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("1.%d", i),
			"Fourniture et pose de cloison",
			"m2",
			fmt.Sprintf("%d", 10+i),
			"45.5",
			fmt.Sprintf("%d", (10+i)*45),
		})
	}
	return rows
}

func TestSelect_PrefersDataSheet(t *testing.T) {
	t.Parallel()

	wb := &workbook.Workbook{Sheets: []workbook.Sheet{
		{Name: "Page de garde", Data: workbook.FromStrings([][]string{{"Projet : école"}, {"Maître d'ouvrage"}})},
		{Name: "Lot 02", Data: workbook.FromStrings(dpgfRows(25))},
		{Name: "Récap", Data: workbook.FromStrings([][]string{{"Total", "1200"}})},
	}}

	sel, err := Select(wb)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Index)
	assert.Equal(t, "Lot 02", sel.Name)
	assert.False(t, sel.LowConfidence)
	require.Len(t, sel.Scores, 3)
	assert.Greater(t, sel.Scores[1].Score, sel.Scores[0].Score)
	assert.Greater(t, sel.Scores[1].Score, sel.Scores[2].Score)
}

func TestSelect_SingleSheet(t *testing.T) {
	t.Parallel()

	wb := &workbook.Workbook{Sheets: []workbook.Sheet{
		{Name: "Feuil1", Data: workbook.FromStrings(dpgfRows(12))},
	}}
	sel, err := Select(wb)
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Index)
	assert.Equal(t, "Feuil1", sel.Name)
	assert.Positive(t, sel.Score)
}

func TestSelect_AllNonPositive(t *testing.T) {
	t.Parallel()

	wb := &workbook.Workbook{Sheets: []workbook.Sheet{
		{Name: "Sommaire", Data: workbook.FromStrings([][]string{{"a"}})},
		{Name: "Infos", Data: workbook.FromStrings([][]string{{"b"}})},
	}}
	sel, err := Select(wb)
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Index)
	assert.Equal(t, "Sommaire", sel.Name)
	assert.True(t, sel.LowConfidence)
}

func TestSelect_NoSheets(t *testing.T) {
	t.Parallel()

	_, err := Select(&workbook.Workbook{})
	assert.ErrorIs(t, err, ErrNoSheets)

	_, err = Select(nil)
	assert.ErrorIs(t, err, ErrNoSheets)
}

func TestScoreSheet_Signals(t *testing.T) {
	t.Parallel()

	empty := workbook.FromStrings(nil)
	assert.Equal(t, -10, ScoreSheet("Feuil1", empty))

	// lot-named sheet bonus
	assert.Equal(t, 5, ScoreSheet("LOT3", empty))

	// non-data sheet penalty
	assert.Equal(t, -25, ScoreSheet("Page de garde", empty))

	// désignation, quantité and unité each +8; the "Unité" cell is also a unit token
	hdr := workbook.FromStrings([][]string{{"Désignation", "Quantité", "Unité"}})
	assert.Equal(t, 3*8+2-10, ScoreSheet("x", hdr))

	assert.Equal(t, 0, ScoreSheet("x", nil))
}

func TestScoreSheet_UnitPriceWholeWord(t *testing.T) {
	t.Parallel()

	base := ScoreSheet("x", workbook.FromStrings([][]string{{"Projet"}}))
	assert.Equal(t, base+8, ScoreSheet("x", workbook.FromStrings([][]string{{"P.U. HT"}})))
	assert.Equal(t, base+8, ScoreSheet("x", workbook.FromStrings([][]string{{"PU"}})))
	assert.Equal(t, base, ScoreSheet("x", workbook.FromStrings([][]string{{"Marché public"}})))
	assert.Equal(t, base, ScoreSheet("x", workbook.FromStrings([][]string{{"Pupitre"}})))
}

func TestScoreSheet_NumberingOnlyInLeadingCell(t *testing.T) {
	t.Parallel()

	// Three numeric cells: one numbering match plus the numeric-row bonus.
	withNumber := workbook.FromStrings([][]string{{"1.1", "12", "45"}})
	assert.Equal(t, 3+4-10, ScoreSheet("x", withNumber))

	// Leading text: the amounts do not count as numbering. Four columns earn
	// the shape bonus.
	withText := workbook.FromStrings([][]string{{"Cloison", "12", "45", "540"}})
	assert.Equal(t, 4+5-10, ScoreSheet("x", withText))
}
