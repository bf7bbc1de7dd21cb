package classify

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
)

// extractRule says how numero and title come out of a section match.
type extractRule int

const (
	// group 1 is the numero, group 2 the title.
	extractNumbered extractRule = iota
	// group 1 and 2 form the numero ("CHAPITRE 3"), group 3 the title.
	extractPrefixed
	// the whole match is a title; the numero is a hash tag.
	extractHashed
	// group 1 is the marker and doubles as title when group 2 is empty.
	extractTotal
)

// levelRule computes a section level from its numero and the last level.
type levelRule func(numero string, last int) int

// sectionPattern is one tagged variant of the section catalog.
type sectionPattern struct {
	name    string
	re      *regexp.Regexp
	extract extractRule
	// titleGroup is the group holding the title for extractHashed patterns.
	titleGroup int
	// hashPrefix and hashMod build synthetic numeros for hashed titles.
	hashPrefix string
	hashMod    uint32
	hashWidth  int
	level      levelRule
}

func fixed(n int) levelRule {
	return func(string, int) int { return n }
}

func dotDepth(numero string, _ int) int {
	return strings.Count(numero, ".") + strings.Count(numero, ",") + 1
}

var letterDigits = regexp.MustCompile(`^[A-Z]\d+$`)

func hierarchicalDepth(numero string, _ int) int {
	if letterDigits.MatchString(numero) {
		return 1
	}
	return strings.Count(numero, ".") + 1
}

var subNumber = regexp.MustCompile(`\d+\.\d+`)

func lotSubsectionLevel(numero string, _ int) int {
	if subNumber.MatchString(numero) {
		return 3
	}
	return 2
}

func bracketLevel(numero string, _ int) int {
	if n, err := strconv.Atoi(numero); err == nil {
		if n >= 1 && n <= 5 {
			return n
		}
		return 2
	}
	return 2
}

func commaDepth(numero string, _ int) int {
	return strings.Count(numero, ",") + 1
}

func fractionLevel(numero string, _ int) int {
	first, _, _ := strings.Cut(numero, "/")
	n, err := strconv.Atoi(first)
	if err != nil {
		return 2
	}
	return max(1, min(n, 5))
}

func dashDepth(numero string, _ int) int {
	return strings.Count(numero, "-") + 1
}

const totalPattern = "total_section"

func totalLevel(_ string, last int) int {
	return max(2, last)
}

// sectionCatalog is tried in order against the designation cell.
var sectionCatalog = []sectionPattern{
	{name: "numbered_standard", re: regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+(.+)`), level: dotDepth},
	{name: "numbered_punctuated", re: regexp.MustCompile(`^(\d+(?:\.\d+)*)[.-]\s*(\D.*)`), level: dotDepth},
	{name: "hierarchical_complex", re: regexp.MustCompile(`^([A-Z]?\d{1,2}(?:\.\d{1,2}){1,4})\s+(.+)`), level: hierarchicalDepth},
	{name: "letter_number", re: regexp.MustCompile(`^([A-Z]\d{1,3})\s+(.+)`), level: fixed(2)},
	{name: "lot_subsection", re: regexp.MustCompile(`(?i)^(LOT\s+\d{1,2}(?:\.\d+)*)\s+(.+)`), level: lotSubsectionLevel},
	{name: "article_numbered", re: regexp.MustCompile(`(?i)^(ART\.?\s*\d+)\s+(.+)`), level: lotSubsectionLevel},
	{name: "uppercase_title", re: regexp.MustCompile(`^(\p{Lu}[\p{Lu}\s\d.\-_&']{4,})$`), extract: extractHashed, titleGroup: 1, hashPrefix: "S", hashMod: 10000, hashWidth: 4, level: fixed(1)},
	{name: "underlined_title", re: regexp.MustCompile(`^([=\-_]{3,})\s*(\p{Lu}.{3,}?)\s*[=\-_]{3,}$`), extract: extractHashed, titleGroup: 2, hashPrefix: "TITLE_", hashMod: 1000, hashWidth: 3, level: fixed(1)},
	{name: "roman_numeral", re: regexp.MustCompile(`^([IVX]{1,5})[.\-\s]\s*(.+)`), level: fixed(1)},
	{name: "letter_numeral", re: regexp.MustCompile(`^([A-H])[.\-\s]\s*(.+)`), level: fixed(2)},
	{name: "prefixed_section", re: regexp.MustCompile(`^(CHAPITRE|LOT|PARTIE|SECTION|SOUS-SECTION|TITRE)\s+([A-Z0-9]+)[\s:]*(.*)`), extract: extractPrefixed, level: fixed(1)},
	{name: "technical_prefix", re: regexp.MustCompile(`^(POSTE|OUVRAGE|PRESTATION|TRAVAUX|FOURNITURE)\s+([A-Z0-9.]+)[\s:]*(.*)`), extract: extractPrefixed, level: fixed(1)},
	{name: totalPattern, re: regexp.MustCompile(`^(SOUS[\-\s]*TOTAL|TOTAL|MONTANT\s+TOTAL|RÉCAPITULATIF|RECAPITULATIF)[\s:]*(.*)`), extract: extractTotal, level: totalLevel},
	{name: "sharepoint_numbered", re: regexp.MustCompile(`^(\d+\.\d+(?:\.\d+)*)\s*(.*)`), level: dotDepth},
	{name: "sharepoint_dashed", re: regexp.MustCompile(`^(\d+-\d+(?:-\d+)*)\s+(.+)`), level: dashDepth},
	{name: "parentheses_numbered", re: regexp.MustCompile(`^\(([A-Z0-9]+)\)\s+(.+)`), level: bracketLevel},
	{name: "brackets_numbered", re: regexp.MustCompile(`^\[([A-Z0-9]+)\]\s+(.+)`), level: bracketLevel},
	{name: "dash_section", re: regexp.MustCompile(`^\s*[-•]\s+(\p{Lu}.{5,})$`), extract: extractHashed, titleGroup: 1, hashPrefix: "SEC_", hashMod: 1000, hashWidth: 3, level: fixed(2)},
	{name: "bullet_section", re: regexp.MustCompile(`^\s*[•◦▪▫]\s+(\p{Lu}.{5,})$`), extract: extractHashed, titleGroup: 1, hashPrefix: "SEC_", hashMod: 1000, hashWidth: 3, level: fixed(2)},
	{name: "decimal_french", re: regexp.MustCompile(`^(\d+(?:,\d+)*)\s+(.+)`), level: commaDepth},
	{name: "ordinal_french", re: regexp.MustCompile(`^(\d+(?:er|ème|nd|rd|th))\s+(.+)`), level: commaDepth},
	{name: "phase_step", re: regexp.MustCompile(`^(PHASE|ÉTAPE|ETAPE|STADE)\s+([A-Z0-9]+)\s*[:\-]?\s*(.*)`), extract: extractPrefixed, level: fixed(1)},
	{name: "zone_sector", re: regexp.MustCompile(`^(ZONE|SECTEUR|PÉRIMÈTRE|PERIMETRE)\s+([A-Z0-9]+)\s*[:\-]?\s*(.*)`), extract: extractPrefixed, level: fixed(1)},
	{name: "mixed_alphanumeric", re: regexp.MustCompile(`^([A-Z]\d+(?:\.\d+)*)\s+(.+)`), level: dotDepth},
	{name: "complex_codes", re: regexp.MustCompile(`^([A-Z]{2,4}\d{2,4})\s+(.+)`), level: fixed(2)},
	{name: "fraction_numbered", re: regexp.MustCompile(`^(\d+/\d+)\s+(.+)`), level: fractionLevel},
	{name: "version_numbered", re: regexp.MustCompile(`^(V\d+(?:\.\d+)*|REV\.?\d+)\s+(.+)`), level: fixed(1)},
}

// depthPatterns take their level from the numbering depth and are subject
// to the lot-prefix rebase.
var depthPatterns = map[string]bool{
	"numbered_standard":   true,
	"numbered_punctuated": true,
	"sharepoint_numbered": true,
	"decimal_french":      true,
	"sharepoint_dashed":   true,
}

// SectionMatch is a designation recognized by the section catalog.
type SectionMatch struct {
	Pattern string
	Numero  string
	Title   string
	level   levelRule
}

// Level returns the catalog level of the match given the previous level.
func (s SectionMatch) Level(last int) int {
	if s.level == nil {
		return max(1, last)
	}
	return max(1, s.level(s.Numero, last))
}

// MatchSection runs the section catalog against text and returns the first
// hit.
func MatchSection(text string) (SectionMatch, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SectionMatch{}, false
	}
	for i := range sectionCatalog {
		p := &sectionCatalog[i]
		sub := p.re.FindStringSubmatch(text)
		if sub == nil {
			continue
		}
		m := SectionMatch{Pattern: p.name, level: p.level}
		switch p.extract {
		case extractNumbered:
			m.Numero = strings.TrimSpace(sub[1])
			m.Title = strings.TrimSpace(sub[2])
		case extractPrefixed:
			m.Numero = strings.TrimSpace(sub[1]) + " " + strings.TrimSpace(sub[2])
			m.Title = strings.TrimSpace(sub[3])
		case extractTotal:
			m.Numero = strings.TrimSpace(sub[1])
			m.Title = strings.TrimSpace(sub[2])
			if m.Title == "" {
				m.Title = m.Numero
			}
		case extractHashed:
			m.Title = strings.TrimSpace(sub[p.titleGroup])
			m.Numero = hashedNumero(p.hashPrefix, m.Title, p.hashMod, p.hashWidth)
		}
		if m.Title == "" {
			m.Title = "Section " + m.Numero
			if p.extract == extractPrefixed {
				m.Title = m.Numero
			}
		}
		return m, true
	}
	return SectionMatch{}, false
}

// hashedNumero derives a stable synthetic numero from a title.
func hashedNumero(prefix, title string, mod uint32, width int) string {
	h := fnv.New32a()
	h.Write([]byte(title)) //nolint:errcheck
	return fmt.Sprintf("%s%0*d", prefix, width, h.Sum32()%mod)
}
