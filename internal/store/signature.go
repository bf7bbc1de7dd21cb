package store

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var digitRun = regexp.MustCompile(`\d+`)

// Signature fingerprints a header row: the first 8 hex characters of the
// md5 of the lower-cased, trimmed cells joined by "|". A non-empty tag is
// appended as "_tag".
func Signature(headers []string, tag string) string {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}
	sum := md5.Sum([]byte(strings.Join(norm, "|"))) //nolint:gosec
	sig := hex.EncodeToString(sum[:])[:8]
	if tag != "" {
		sig += "_" + tag
	}
	return sig
}

// FilenameTag derives a signature tag from a file name: the lower-cased base
// name without extension, with every digit run replaced by X so numbered
// variants of one template share a tag.
func FilenameTag(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return digitRun.ReplaceAllString(strings.ToLower(base), "X")
}

// LabelKey is the cache key of a batch of row texts: the md5 of the rows,
// each lower-cased with all whitespace removed, joined by "|".
func LabelKey(rows []string) string {
	norm := make([]string, len(rows))
	for i, r := range rows {
		norm[i] = strings.Map(func(c rune) rune {
			if unicode.IsSpace(c) {
				return -1
			}
			return unicode.ToLower(c)
		}, r)
	}
	sum := md5.Sum([]byte(strings.Join(norm, "|"))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
