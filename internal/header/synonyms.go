package header

import (
	"regexp"
	"strings"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/textutil"
)

// maxHeaderCell is the longest cell text considered a column title.
const maxHeaderCell = 40

// synonym is a curated pattern for one role. Patterns match the whole
// cleaned cell and are written without accents; cells are tried both as
// typed and accent-folded.
type synonym struct {
	role model.Role
	re   *regexp.Regexp
}

// catalog lists the role synonyms in assignment order. A cell already
// claimed by an earlier role is not offered to later ones, so "montant
// unitaire" resolves to unit_price before the total patterns see it.
var catalog = []synonym{
	{model.RoleDesignation, regexp.MustCompile(`^(?:designations?|libelles?|descriptions?|prestations?|details?|ouvrages?|intitules?|nature|objet|travaux)(?:\s.*)?$`)},
	{model.RoleUnit, regexp.MustCompile(`^(?:u|un|unites?|unit|u\.m|unite de mesure|mesures?)\.?$`)},
	{model.RoleQuantity, regexp.MustCompile(`^(?:quantites?|qtes?|qt|quant|nombre|nbre?s?|nb|q)\.?(?:\s+(?:estimees?|prevues?|totales?|entreprise))?$`)},
	{model.RoleUnitPrice, regexp.MustCompile(`^(?:prix\s*unit(?:aire|\.)?(?:\s+(?:net|brut))?|p\.?\s*u\.?|prix|cout\s*unit(?:aire|\.)?|tarif(?:\s*unit(?:aire|\.)?)?|montant\s*unit(?:aire|\.)?)$`)},
	{model.RoleTotalPrice, regexp.MustCompile(`^(?:prix\s*tot(?:al|\.)?|montants?(?:\s*(?:total|global))?|p\.?\s*t\.?|pt|total|cout\s*total|somme|sous[\s-]*total)$`)},
}

var (
	parenthesized = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	// qualifiers are trailing tokens stripped before matching ("Prix HT (€)").
	qualifiers = map[string]bool{
		"ht": true, "h.t.": true, "h.t": true, "ht.": true, "ttc": true,
		"euros": true, "euro": true, "eur": true, "en": true, "hors": true,
		"taxes": true, "taxe": true, "-": true, ":": true, "/": true,
	}
)

// clean normalizes a header cell and strips currency and tax qualifiers.
// It returns "" for cells too long to be a column title.
func clean(s string) string {
	n := textutil.Normalize(s)
	if n == "" || len([]rune(n)) > maxHeaderCell {
		return ""
	}
	n = parenthesized.ReplaceAllString(n, " ")
	n = strings.NewReplacer("€", " ", "*", " ").Replace(n)
	fields := strings.Fields(n)
	for len(fields) > 0 {
		last := strings.TrimRight(fields[len(fields)-1], ":")
		if last == "" || qualifiers[last] {
			fields = fields[:len(fields)-1]
			continue
		}
		fields[len(fields)-1] = last
		break
	}
	return strings.Join(fields, " ")
}

// matchRole reports whether the cleaned cell text matches a synonym of role.
func matchRole(role model.Role, cleaned string) bool {
	if cleaned == "" {
		return false
	}
	folded := textutil.Fold(cleaned)
	for _, s := range catalog {
		if s.role != role {
			continue
		}
		if s.re.MatchString(cleaned) || s.re.MatchString(folded) {
			return true
		}
	}
	return false
}

// matchRow assigns each role the first matching cell of cells. Columns are
// claimed at most once.
func matchRow(cells []string) model.RoleMap {
	cleaned := make([]string, len(cells))
	for i, c := range cells {
		cleaned[i] = clean(c)
	}
	found := model.RoleMap{}
	for _, role := range model.AllRoles() {
		for col, text := range cleaned {
			if found.ColumnTaken(col) {
				continue
			}
			if matchRole(role, text) {
				found[role] = col
				break
			}
		}
	}
	return found
}
