// Package numeric converts locale-formatted spreadsheet values into floats.
package numeric

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Parse converts v into a float64. Numeric inputs pass through unchanged.
// Text is stripped of currency symbols and whitespace; when both ',' and '.'
// are present the earlier one is the thousands separator, otherwise a lone
// ',' is the decimal point. The second return is false when v could not be
// converted, in which case the value is 0.
func Parse(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		return ParseText(n)
	case []byte:
		return ParseText(string(n))
	default:
		return 0, false
	}
}

// ParseText converts a text cell. Empty text is 0 and counts as converted.
func ParseText(s string) (float64, bool) {
	s = strip(s)
	if s == "" || s == "-" {
		return 0, true
	}
	s = strings.TrimSuffix(s, "%")

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if strings.Index(s, ",") < strings.Index(s, ".") {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		} else {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0 && strings.Count(s, ".") > 1:
		// 1.234.567
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsNumber reports whether s holds a value ParseText can convert and that
// contains at least one digit. Empty text is not a number.
func IsNumber(s string) bool {
	if !strings.ContainsFunc(s, unicode.IsDigit) {
		return false
	}
	_, ok := ParseText(s)
	return ok
}

// strip removes currency symbols and every kind of space, including the
// non-breaking and narrow spaces spreadsheets use as thousands separators.
func strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '€' || r == '$' || r == '£':
			continue
		case unicode.IsSpace(r):
			continue
		case r == '\'':
			// Swiss thousands separator.
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	out = strings.TrimSuffix(out, "HT")
	out = strings.TrimSuffix(out, "TTC")
	return out
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
