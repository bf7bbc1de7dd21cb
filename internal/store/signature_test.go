package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignature(t *testing.T) {
	t.Parallel()

	a := Signature([]string{"N°", "Désignation", "U", "Qté", "PU HT", "Total HT"}, "")
	b := Signature([]string{" n° ", "DÉSIGNATION", "u", "QTÉ", "pu ht", "TOTAL HT "}, "")
	assert.Len(t, a, 8)
	assert.Equal(t, a, b, "case and surrounding space must not change the signature")

	c := Signature([]string{"Désignation", "N°", "U", "Qté", "PU HT", "Total HT"}, "")
	assert.NotEqual(t, a, c, "column order is part of the signature")

	tagged := Signature([]string{"N°", "Désignation"}, "dpgf_lot_X")
	assert.Regexp(t, `^[0-9a-f]{8}_dpgf_lot_X$`, tagged)
}

func TestFilenameTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dpgf_lot_X_menuiserie", FilenameTag("/tmp/DPGF_Lot_06_Menuiserie.xlsx"))
	assert.Equal(t, FilenameTag("DPGF_Lot_06.xlsx"), FilenameTag("DPGF_Lot_12.xlsx"))
}

func TestLabelKey(t *testing.T) {
	t.Parallel()

	a := LabelKey([]string{"1.1  Terrassement", "Fouilles"})
	b := LabelKey([]string{"1.1terrassement", " FOUILLES "})
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, LabelKey([]string{"Fouilles", "1.1 Terrassement"}))
}
