// Package slug builds the URL slugs the browse provider uses to address
// content pages, e.g. "Além da Tempestade" + 4 -> "alem-da-tempestade-4".
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	disallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
	hyphens    = regexp.MustCompile(`-+`)
)

// Normalize reduces a title to its slug form without the id suffix.
// Non-Latin titles that normalise to nothing are transliterated first.
func Normalize(title string) string {
	s := normalize(title)
	if s == "" && strings.TrimSpace(title) != "" {
		s = normalize(unidecode.Unidecode(title))
	}
	return s
}

// Build returns the canonical slug for a title and id.
func Build(title string, id int64) string {
	s := Normalize(title)
	suffix := strconv.FormatInt(id, 10)
	if s == "" {
		return suffix
	}
	return s + "-" + suffix
}

// Candidates returns the slugs to try for a title, canonical first, then the
// alternate title when it differs. Titles that normalise to nothing are dropped.
func Candidates(title, alternate string, id int64) []string {
	var out []string
	seen := make(map[string]bool, 2)
	for _, t := range []string{title, alternate} {
		if Normalize(t) == "" {
			continue
		}
		s := Build(t, id)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func normalize(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, title)
	if err != nil {
		s = title
	}

	s = strings.ToLower(s)
	s = disallowed.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return s
}
