package provider

import (
	"encoding/json"
	"regexp"
	"strings"
)

// sourceEntry is one element of a player's `sources: [{file, type}]` list.
type sourceEntry struct {
	File string `json:"file"`
	Type string `json:"type"`
}

var (
	sourcesArrayPattern = regexp.MustCompile(`(?s)sources\s*[:=]\s*(\[.*?\])`)
	sourceObjectPattern = regexp.MustCompile(`(?s)\{[^{}]*?\bfile\s*:\s*["']([^"']+)["'][^{}]*\}`)
	sourceTypePattern   = regexp.MustCompile(`\btype\s*:\s*["']([^"']+)["']`)
)

// Embed pages, master/playlist manifests first.
var embedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(https?://[^"'\s<>\\]*(?:master|playlist)[^"'\s<>\\]*\.m3u8[^"'\s<>\\]*)`),
	regexp.MustCompile(`(https?://[^"'\s<>\\]+\.m3u8[^"'\s<>\\]*)`),
	regexp.MustCompile(`(https?://[^"'\s<>\\]+\.mp4[^"'\s<>\\]*)`),
}

// Player pages behind the stream-link API.
var playerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)file\s*:\s*["']([^"']+\.m3u8[^"']*)`),
	regexp.MustCompile(`(?i)src\s*:\s*["']([^"']+\.m3u8[^"']*)`),
	regexp.MustCompile(`(?i)source\s*:\s*["']([^"']+\.m3u8[^"']*)`),
	regexp.MustCompile(`(?i)["'](https?://[^"'\s]+\.m3u8[^"'\s]*)`),
	regexp.MustCompile(`(?i)["'](https?://[^"'\s]+\.mp4[^"'\s]*)`),
	regexp.MustCompile(`(?i)file\s*:\s*["']([^"']+\.mp4[^"']*)`),
}

// parseSources extracts the first `sources` array from a page. Strict JSON is
// tried first; single-quoted JS object literals fall back to a lenient scan.
func parseSources(body string) []sourceEntry {
	m := sourcesArrayPattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	var entries []sourceEntry
	if err := json.Unmarshal([]byte(m[1]), &entries); err == nil {
		return entries
	}

	for _, obj := range sourceObjectPattern.FindAllStringSubmatch(m[1], -1) {
		e := sourceEntry{File: unescapeJS(obj[1])}
		if t := sourceTypePattern.FindStringSubmatch(obj[0]); t != nil {
			e.Type = t[1]
		}
		entries = append(entries, e)
	}
	return entries
}

// extractor applies the structured-sources parse and the ordered regex
// fallback, skipping URLs on blocked hosts.
type extractor struct {
	keywords []string
	blocked  []string
}

func (x extractor) isBlocked(u string) bool {
	return containsAny(u, x.blocked)
}

func (x extractor) fromSources(body string) string {
	for _, e := range parseSources(body) {
		if strings.EqualFold(strings.TrimSpace(e.Type), "iframe") {
			continue
		}
		if e.File == "" || x.isBlocked(e.File) {
			continue
		}
		if containsAny(e.File, x.keywords) {
			return e.File
		}
	}
	return ""
}

func (x extractor) scan(body string, patterns []*regexp.Regexp) string {
	body = unescapeJS(body)
	for _, p := range patterns {
		for _, m := range p.FindAllStringSubmatch(body, -1) {
			u := m[1]
			if x.isBlocked(u) {
				continue
			}
			return u
		}
	}
	return ""
}

// extract runs the full pass: structured sources, then the ordered patterns.
func (x extractor) extract(body string, patterns []*regexp.Regexp) string {
	if u := x.fromSources(body); u != "" {
		return u
	}
	return x.scan(body, patterns)
}

func unescapeJS(s string) string {
	return strings.ReplaceAll(s, `\/`, `/`)
}
