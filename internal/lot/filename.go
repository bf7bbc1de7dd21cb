package lot

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/dpgf-extract/internal/model"
)

// nameClass matches the characters a lot name may span in a file name.
const nameClass = `[\p{L}\p{N}_\s\-&°'\.]`

// filenamePattern is one entry of the filename catalog. Group 1 is the lot
// number; group 2, when present, is the raw name.
type filenamePattern struct {
	name string
	re   *regexp.Regexp
}

func fp(name, expr string) filenamePattern {
	return filenamePattern{name: name, re: regexp.MustCompile(`(?i)` + expr)}
}

// filenameCatalog is tried in order against the file stem.
var filenameCatalog = []filenamePattern{
	fp("lot-doc-name", `lot\s*(\d{1,2})\s*-\s*(?:dpgf|devis|bpu|dqe)\s*-\s*(`+nameClass+`+)`),
	fp("doc-lot-name", `dpgf\s*[-_]?\s*lot\s*(\d{1,2})\s+(`+nameClass+`+)`),
	fp("lot-dash-name", `lot\s*(\d{1,2})\s*-\s*(`+nameClass+`+)`),
	fp("code-doc-lot", `^\d+\s+dpgf\s+lot\s*(\d{1,2})\s*-\s*(`+nameClass+`+)`),
	fp("doc-lot-dash", `dpgf\s+lot\s*(\d{1,2})\s*-\s*(`+nameClass+`+)`),
	fp("lot-sep-name", `lot\s*(\d{1,2})[_\-\s]+(`+nameClass+`+)`),
	fp("sharepoint", `-\s*dpgf\s*-?\s*lot\s*(\d{1,2})\s*-?\s*(`+nameClass+`*)`),
	fp("company-lot", `[\[\(][\p{L}\p{N}_\s]+[\]\)]\s*-\s*lot\s*(\d{1,2})\s*-\s*(`+nameClass+`+)`),
	fp("tender-prefix", `(?:dce|bce|appel|marche|projet)[-_\s]*lot[-_\s]*(\d{1,2})[-_\s]+(`+nameClass+`+)`),
	fp("site-prefix", `(?:chantier|projet|travaux)[-_\s]*[\p{L}\p{N}_\s]*[-_\s]*lot[-_\s]*(\d{1,2})[-_\s]+(`+nameClass+`+)`),
	fp("client-code", `(?:cdc|bnp|axa|vinci|bouygues)[-_\s]*(?:habitat|group|immobilier)?[-_\s]*lot[-_\s]*(\d{1,2})[-_\s]+(`+nameClass+`+)`),
	fp("lot-glued", `lot(\d{1,2})\s*-\s*(`+nameClass+`+)`),
	fp("lot-underscore", `lot[-_](\d{1,2})[-_](`+nameClass+`+)`),
	fp("inverted", `(\d{1,2})[-_\s]*(`+nameClass+`+)[-_\s]*lot`),
	fp("lot-only", `lot\s*(\d{1,2})(?:[^\p{L}\p{N}_]|$)`),
	fp("short", `\bL(\d{1,2})\b`),
	fp("number-dash-name", `^(\d{1,2})\s*-\s*(`+nameClass+`{5,})`),
	fp("path-segment", `[\\/]lot[-_\s]*(\d{1,2})[-_\s]*(`+nameClass+`*)`),
}

var pathPattern = regexp.MustCompile(`(?i)[\\/]lot[-_\s]*(\d{1,2})[-_\s]*(` + nameClass + `*)`)

var (
	separators = regexp.MustCompile(`[_\-\.]+`)
	extension  = regexp.MustCompile(`(?i)\.(xlsx?|xlsm|pdf|docx?)$`)
	longWord   = regexp.MustCompile(`\p{L}{4,}`)
	lotNumber  = regexp.MustCompile(`\d{1,2}`)

	noiseWords = map[string]bool{
		"dpgf": true, "bpu": true, "dqe": true, "devis": true,
		"bordereau": true, "quantitatif": true, "prix": true, "lot": true,
	}
	fallbackIgnore = map[string]bool{
		"dpgf": true, "bpu": true, "dqe": true, "devis": true, "bordereau": true,
		"quantitatif": true, "prix": true, "lot": true, "document": true,
		"fichier": true, "excel": true, "pdf": true, "word": true, "nouveau": true,
		"final": true, "version": true, "copie": true, "backup": true,
		"temp": true, "draft": true, "brouillon": true,
	}
	documentKeywords = []string{"lot", "dpgf", "bpu", "dqe", "devis", "bordereau"}
)

// specialty maps a trade to the file-name vocabulary that reveals it.
type specialty struct {
	trade    string
	keywords []string
}

var specialties = []specialty{
	{"gros oeuvre", []string{"gros", "oeuvre", "béton", "beton", "maçonnerie", "maconnerie", "structure"}},
	{"charpente", []string{"charpente", "bois", "ossature"}},
	{"couverture", []string{"couverture", "toiture", "zinc", "tuile", "ardoise"}},
	{"menuiserie", []string{"menuiserie", "fenêtre", "fenetre", "porte", "volet"}},
	{"serrurerie", []string{"serrurerie", "métallerie", "metallerie", "acier", "fer"}},
	{"plomberie", []string{"plomberie", "sanitaire", "eau", "évacuation", "evacuation"}},
	{"electricite", []string{"électricité", "electricite", "éclairage", "eclairage", "courant"}},
	{"peinture", []string{"peinture", "revêtement", "revetement", "finition"}},
	{"isolation", []string{"isolation", "thermique", "phonique"}},
	{"carrelage", []string{"carrelage", "faïence", "faience", "sol"}},
	{"cloisons", []string{"cloison", "doublage", "plâtre", "platre"}},
	{"vrd", []string{"vrd", "voirie", "réseau", "reseau", "assainissement"}},
	{"espaces verts", []string{"espaces", "verts", "paysager", "jardinage", "plantation"}},
}

// FromFilename identifies a lot from a file name or path. It tries the
// pattern catalog against the stem, then trade keyword inference, then lot
// folders in the path.
func FromFilename(path string) (model.Lot, bool) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return model.Lot{}, false
	}

	for _, p := range filenameCatalog {
		sub := p.re.FindStringSubmatch(stem)
		if sub == nil {
			continue
		}
		numero := strings.TrimSpace(sub[1])
		if !validNumero(numero) {
			continue
		}
		name := ""
		if len(sub) > 2 {
			name = CleanName(sub[2])
		}
		if len([]rune(name)) < 3 {
			name = FallbackName(numero, stem)
		}
		return model.Lot{Numero: numero, Name: name}, true
	}

	if l, ok := inferFromKeywords(stem); ok {
		return l, true
	}

	if sub := pathPattern.FindStringSubmatch(filepath.ToSlash(path)); sub != nil && validNumero(sub[1]) {
		name := CleanName(sub[2])
		if name == "" {
			name = "Lot " + sub[1]
		}
		return model.Lot{Numero: sub[1], Name: name}, true
	}
	return model.Lot{}, false
}

func validNumero(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= 1 && n <= 99
}

// CleanName turns a raw file-name fragment into a lot name: separators become
// spaces, extensions and document noise words are dropped and the result is
// title-cased.
func CleanName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = extension.ReplaceAllString(s, "")
	s = separators.ReplaceAllString(s, " ")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !noiseWords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return title(strings.Join(kept, " "))
}

// FallbackName builds "Lot n - <up to three significant words>" from the
// stem, or "Lot n - Travaux" when it has none.
func FallbackName(numero, stem string) string {
	var words []string
	for _, w := range longWord.FindAllString(stem, -1) {
		if fallbackIgnore[strings.ToLower(w)] {
			continue
		}
		words = append(words, title(w))
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return "Lot " + numero + " - Travaux"
	}
	return "Lot " + numero + " - " + strings.Join(words, " ")
}

// inferFromKeywords names a lot after the trade its file name mentions when
// the name looks like a bid document carrying a lot number.
func inferFromKeywords(stem string) (model.Lot, bool) {
	lower := strings.ToLower(stem)
	isDocument := false
	for _, k := range documentKeywords {
		if strings.Contains(lower, k) {
			isDocument = true
			break
		}
	}
	if !isDocument {
		return model.Lot{}, false
	}
	for _, numero := range lotNumber.FindAllString(stem, -1) {
		if !validNumero(numero) {
			continue
		}
		trade := "Travaux"
		for _, sp := range specialties {
			if containsAny(lower, sp.keywords) {
				trade = title(sp.trade)
				break
			}
		}
		return model.Lot{Numero: numero, Name: trade + " - Lot " + numero}, true
	}
	return model.Lot{}, false
}

// title upper-cases the first letter of each word. Casers are stateful, so
// each call gets its own.
func title(s string) string {
	return cases.Title(language.French).String(s)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
