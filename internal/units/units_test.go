package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"m²", "m2"},
		{"M²", "m2"},
		{"M2", "m2"},
		{"m.l.", "ml"},
		{"ML", "ml"},
		{"m³", "m3"},
		{"Unité", "u"},
		{"pièce", "u"},
		{"pce", "u"},
		{"Ensemble", "ens"},
		{"heure", "h"},
		{"jour", "j"},
		{"Forfait", "ft"},
		{"global", "gb"},
		{"litre", "L"},
		{"kilogramme", "kg"},
		{"tonne", "t"},
		{"ens", "ens"},
		{"le forfait", "ft"},
		{"", ""},
		{"  xyzqwertyuiop ", "xyzqwertyu"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestIsToken(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"m2", " ML ", "u", "Ens", "ft", "m³", "kg"} {
		assert.True(t, IsToken(s), s)
	}
	for _, s := range []string{"", "Bureau", "12", "Désignation"} {
		assert.False(t, IsToken(s), s)
	}
}

func TestLooksLikeUnit(t *testing.T) {
	t.Parallel()

	assert.True(t, LooksLikeUnit("kit"))
	assert.False(t, LooksLikeUnit("m2"))
	assert.False(t, LooksLikeUnit("Enduit de façade"))
	assert.False(t, LooksLikeUnit(""))
}
