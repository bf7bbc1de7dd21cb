// Package units recognizes and normalizes measurement units found in bills
// of quantities.
package units

import (
	"strings"
	"unicode"
)

type alias struct {
	from, to string
}

// aliases maps spelled-out or decorated unit forms to their short form.
// Order matters for substring matching: longer forms come first.
var aliases = []alias{
	{"mètres linéaires", "ml"},
	{"mètre linéaire", "ml"},
	{"metre lineaire", "ml"},
	{"mètres carrés", "m2"},
	{"metres carres", "m2"},
	{"mètres cubes", "m3"},
	{"metres cubes", "m3"},
	{"kilogramme", "kg"},
	{"millimètre", "mm"},
	{"millimetre", "mm"},
	{"centimètre", "cm"},
	{"centimetre", "cm"},
	{"kilomètre", "km"},
	{"kilometre", "km"},
	{"ensemble", "ens"},
	{"journée", "j"},
	{"journee", "j"},
	{"hectare", "ha"},
	{"forfait", "ft"},
	{"gramme", "g"},
	{"global", "gb"},
	{"mètre", "m"},
	{"metre", "m"},
	{"litre", "L"},
	{"tonne", "t"},
	{"unité", "u"},
	{"unite", "u"},
	{"pièce", "u"},
	{"piece", "u"},
	{"heure", "h"},
	{"paire", "pr"},
	{"boîte", "boite"},
	{"kilo", "kg"},
	{"jour", "j"},
	{"m.l.", "ml"},
	{"dm²", "dm2"},
	{"cm²", "cm2"},
	{"dm³", "dm3"},
	{"cm³", "cm3"},
	{"pce", "u"},
	{"m²", "m2"},
	{"m³", "m3"},
	{"pc", "u"},
}

// tokens is the set of recognized unit spellings, compared after
// lower-casing and trimming.
var tokens = map[string]bool{}

func init() {
	for _, t := range []string{
		"m2", "m²", "mc", "m.c.", "dm2", "dm²", "cm2", "cm²", "ha",
		"ml", "m.l.", "m", "mm", "cm", "km",
		"m3", "m³", "dm3", "dm³", "cm3", "cm³", "l", "litre",
		"kg", "kilo", "g", "t", "tonne",
		"u", "un", "unité", "unite", "pièce", "piece", "pce", "pc",
		"ens", "ensemble", "jeu", "lot", "série", "serie",
		"paire", "pr", "kit", "boîte", "boite", "sachet", "sac",
		"h", "heure", "j", "jour", "journée", "journee", "semaine", "mois", "année", "annee",
		"forfait", "ft", "f", "fft", "global", "gb", "intervention",
		"point", "pt", "passage", "rang", "couche", "application", "appl", "traitement", "trmt",
	} {
		tokens[t] = true
	}
	for _, a := range aliases {
		tokens[a.from] = true
	}
}

// IsToken reports whether s, trimmed and lower-cased, is a recognized unit.
func IsToken(s string) bool {
	return tokens[strings.ToLower(strings.TrimSpace(s))]
}

// Normalize converts a raw unit to its short form. An exact alias match wins;
// otherwise the first alias contained in the text is used. Unknown units are
// returned trimmed and cut to 10 runes.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	for _, a := range aliases {
		if s == a.from {
			return a.to
		}
	}
	if tokens[s] {
		return s
	}
	for _, a := range aliases {
		if strings.Contains(s, a.from) {
			return a.to
		}
	}
	return truncate(strings.TrimSpace(raw), 10)
}

// LooksLikeUnit reports whether s is short alphabetic text of the kind a unit
// column holds.
func LooksLikeUnit(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > 5 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
