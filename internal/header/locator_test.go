package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

func TestMatchRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cell string
		role model.Role
		want bool
	}{
		{"Désignation", model.RoleDesignation, true},
		{"DESIGNATION DES OUVRAGES", model.RoleDesignation, true},
		{"Libellé", model.RoleDesignation, true},
		{"Unité", model.RoleUnit, true},
		{"U", model.RoleUnit, true},
		{"Qté", model.RoleQuantity, true},
		{"Quantité :", model.RoleQuantity, true},
		{"Quantités estimées", model.RoleQuantity, true},
		{"P.U. HT", model.RoleUnitPrice, true},
		{"Prix unitaire HT (€)", model.RoleUnitPrice, true},
		{"PU", model.RoleUnitPrice, true},
		{"Prix HT", model.RoleUnitPrice, true},
		{"P.T. HT", model.RoleTotalPrice, true},
		{"Montant HT", model.RoleTotalPrice, true},
		{"Prix total H.T.", model.RoleTotalPrice, true},
		{"Sous-total", model.RoleTotalPrice, true},
		{"Prix total", model.RoleUnitPrice, false},
		{"Fondation béton armé pour semelles filantes et longrines", model.RoleDesignation, false},
		{"Montant HT", model.RoleQuantity, false},
	}
	for _, tt := range tests {
		t.Run(tt.cell+"/"+string(tt.role), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, matchRole(tt.role, clean(tt.cell)))
		})
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "prix unitaire", clean("  Prix  Unitaire HT (€) "))
	assert.Equal(t, "montant", clean("Montant € HT"))
	assert.Equal(t, "quantité", clean("Quantité :"))
	assert.Equal(t, "", clean("Ceci est une cellule beaucoup trop longue pour être un titre"))
}

func TestMatchRow_ColumnsClaimedOnce(t *testing.T) {
	t.Parallel()

	roles := matchRow([]string{"Désignation", "Montant unitaire", "Montant"})
	assert.Equal(t, model.RoleMap{
		model.RoleDesignation: 0,
		model.RoleUnitPrice:   1,
		model.RoleTotalPrice:  2,
	}, roles)
}

func TestLocate(t *testing.T) {
	t.Parallel()

	m := workbook.FromStrings([][]string{
		{"DPGF Lot 02 Gros oeuvre"},
		{},
		{"Désignation", "Unité", "Quantité", "P.U. HT", "P.T. HT"},
		{"2.1 Gros œuvre"},
		{"Fondation béton", "m3", "10", "150", "1500"},
	})

	h := Locate(m, 0)
	require.NotNil(t, h)
	assert.Equal(t, 2, h.Row)
	assert.Equal(t, 5, h.Score)
	assert.Equal(t, model.RoleMap{
		model.RoleDesignation: 0,
		model.RoleUnit:        1,
		model.RoleQuantity:    2,
		model.RoleUnitPrice:   3,
		model.RoleTotalPrice:  4,
	}, h.Columns)
	assert.True(t, h.Found(model.RoleUnit))
	assert.Equal(t, []string{"Désignation", "Unité", "Quantité", "P.U. HT", "P.T. HT"}, h.Cells)
}

func TestLocate_BestPartialRow(t *testing.T) {
	t.Parallel()

	m := workbook.FromStrings([][]string{
		{"Désignation", "Notes"},
		{"Libellé", "Prix", "Total"},
		{"Item", "1", "2"},
	})

	h := Locate(m, 10)
	require.NotNil(t, h)
	assert.Equal(t, 1, h.Row)
	assert.Equal(t, 3, h.Score)
}

func TestLocate_ScanLimit(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 0, 12)
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{"texte libre"})
	}
	rows = append(rows, []string{"Désignation", "Unité", "Qté", "PU", "PT"})
	m := workbook.FromStrings(rows)

	assert.Nil(t, Locate(m, 5))
	h := Locate(m, 30)
	require.NotNil(t, h)
	assert.Equal(t, 10, h.Row)
}

func TestLocate_None(t *testing.T) {
	t.Parallel()

	m := workbook.FromStrings([][]string{
		{"Béton", "12"},
		{"Acier", "40"},
	})
	assert.Nil(t, Locate(m, 30))
	assert.Nil(t, Locate(nil, 30))
}
