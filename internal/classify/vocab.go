package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// vocabulary is a list of lower-case terms matched at word starts. Terms of
// three runes or fewer must also end on a word boundary so "ft" does not
// match "soft".
type vocabulary []string

func (v vocabulary) matches(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range v {
		if containsWord(lower, term) {
			return true
		}
	}
	return false
}

func containsWord(s, term string) bool {
	short := len([]rune(term)) <= 3
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if boundaryBefore(s, start) && (!short || boundaryAfter(s, end)) {
			return true
		}
		from = start + 1
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := lastRune(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	for _, r := range s[i:] {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}
	return true
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}

var technicalTerms = vocabulary{
	// supply and installation
	"fourniture", "pose", "f et p", "f&p", "fp", "fourni et posé", "fourni posé",
	"installation", "montage", "mise en place", "mise en œuvre", "mise en oeuvre",
	// site operations
	"démolition", "demolition", "dépose", "depose", "découpe", "decoupe", "perçage", "percage",
	"calfeutrement", "étanchéité", "etancheite", "isolation", "raccordement",
	"scellement", "fixation", "assemblage", "soudure", "vissage", "clouage",
	// works
	"maçonnerie", "maconnerie", "béton", "beton", "ferraillage", "coffrage", "banche",
	"charpente", "couverture", "zinguerie", "bardage", "façade", "facade",
	"cloison", "doublage", "plafond", "sol", "carrelage", "faïence", "faience",
	"peinture", "enduit", "crépi", "crepi", "papier peint", "tapisserie",
	"menuiserie", "serrurerie", "métallerie", "metallerie", "aluminium", "pvc",
	"plomberie", "sanitaire", "chauffage", "ventilation", "climatisation", "vmc",
	"électricité", "electricite", "éclairage", "eclairage", "tableau électrique",
	"réseau", "reseau", "câblage", "cablage", "gaine", "conduit",
	// materials
	"acier", "inox", "galvanisé", "galvanise", "laiton", "cuivre", "plomb",
	"pierre", "marbre", "granit", "calcaire", "grès", "gres", "ardoise",
	"tuile", "zinc", "membrane", "bitume", "epdm",
	"laine de verre", "laine de roche", "polystyrène", "polystyrene",
	"plaque de plâtre", "ba13", "fermacell", "osb", "contreplaqué", "contreplaque",
	// equipment
	"robinetterie", "appareil", "équipement", "equipement", "accessoire",
	"poignée", "poignee", "serrure", "cylindre", "gâche", "gache",
	"charnière", "charniere", "paumelle", "pivot", "rail", "guide",
	// finishes
	"finition", "parement", "habillage", "protection", "traitement",
	"lasure", "vernis", "teinture", "imprégnation", "impregnation",
}

var forfaitTerms = vocabulary{
	"forfait", "ft", "global", "ensemble", "prestation",
	"intervention", "déplacement", "deplacement", "minimum",
	"heure", "jour", "semaine", "mois", "période", "periode",
}

var variableTerms = vocabulary{
	"variable", "provisoire", "éventuel", "eventuel", "optionnel",
	"selon", "suivant", "conformément", "conformement",
	"à définir", "a definir", "à préciser", "a preciser",
}

var contextTerms = vocabulary{
	"selon dtu", "selon nf", "selon caue", "conforme à", "conforme a",
	"règles de l'art", "regles de l'art", "prescriptions", "cahier des charges",
	"en façade", "en facade", "en toiture", "en combles", "en sous-sol",
	"à l'étage", "a l'etage", "au rez-de-chaussée", "au rdc",
	"en extérieur", "en exterieur", "en intérieur", "en interieur",
	"sur chantier", "en atelier", "en usine", "à pied d'œuvre", "a pied d'oeuvre",
	"transport compris", "livraison comprise", "évacuation comprise",
	"nettoyage compris", "protection comprise", "étiquetage compris",
	"garantie comprise", "maintenance comprise", "entretien compris",
}

var falsePositiveTerms = vocabulary{
	"chapitre", "partie", "section", "sous-total", "total général", "total general",
	"montant total", "récapitulatif", "recapitulatif", "sommaire",
	"désignation", "designation", "quantité", "quantite", "prix unitaire",
	"prix total", "montant", "référence", "reference",
	"page", "feuille", "annexe", "note", "remarque", "observation",
	"conditions générales", "conditions generales", "modalités", "modalites",
}

// strictArticle patterns recognize an article number as the first token.
// The first five are also used to split the article off the designation.
var strictArticle = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^[A-Z]\d+(?:\.\d+)*$`),
	regexp.MustCompile(`^\d+(?:\.\d+){1,4}$`),
	regexp.MustCompile(`(?i)^[A-Z]{1,3}\.\d+(?:\.\d+)*$`),
	regexp.MustCompile(`(?i)^\d{2,4}[A-Z]?$`),
	regexp.MustCompile(`(?i)^[A-Z]\d{2,4}$`),
	regexp.MustCompile(`(?i)^\d+[A-Z]\d+$`),
	regexp.MustCompile(`(?i)^Art\.\s*\d+`),
	regexp.MustCompile(`^\d+\s*-`),
	regexp.MustCompile(`^\d+\)`),
	regexp.MustCompile(`^[\p{L}\p{N}_]+\.[\p{L}\p{N}_]+\.[\p{L}\p{N}_]+`),
}

const splittableArticles = 5

var continuation = []*regexp.Regexp{
	regexp.MustCompile(`^-`),
	regexp.MustCompile(`^\.`),
	regexp.MustCompile(`^\p{Ll}`),
	regexp.MustCompile(`(?i)^et\s`),
	regexp.MustCompile(`(?i)^ou\s`),
	regexp.MustCompile(`^\(`),
	regexp.MustCompile(`(?i)^avec\s`),
	regexp.MustCompile(`(?i)^comprenant\s`),
	regexp.MustCompile(`(?i)^y\s*compris\s`),
}

// isContinuation reports whether text reads as the tail of the previous
// designation.
func isContinuation(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range continuation {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
