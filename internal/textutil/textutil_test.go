package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "prix unitaire ht", Normalize("  Prix   Unitaire\tHT "))
	assert.Equal(t, "", Normalize(" \n "))
}

func TestFold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "designation", Fold("désignation"))
	assert.Equal(t, "Quantite", Fold("Quantité"))
	assert.Equal(t, "Electricite courants forts", Fold("Électricité courants forts"))
	assert.Equal(t, "m²", Fold("m²"))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	s, cut := Truncate("abcdef", 10, "…")
	assert.Equal(t, "abcdef", s)
	assert.False(t, cut)

	s, cut = Truncate("abcdef", 4, "…")
	assert.Equal(t, "abc…", s)
	assert.True(t, cut)

	s, cut = Truncate("éèàùçô", 3, "")
	assert.Equal(t, "éèà", s)
	assert.True(t, cut)
}
