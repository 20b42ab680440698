package provider

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"vidsource/internal/httputil"
	"vidsource/internal/media"
)

var (
	seasonKeys  = []string{"season", "temporada", "s"}
	episodeKeys = []string{"episode", "episodio", "e"}
)

// episodeMatcher recognises references that already name one episode.
type episodeMatcher struct {
	season, episode int
	paths           []*regexp.Regexp
}

// newEpisodeMatcher matches query keys plus the /S/E, temporada-S/episodio-E
// and sSeE path forms.
func newEpisodeMatcher(s, e int) *episodeMatcher {
	return &episodeMatcher{
		season:  s,
		episode: e,
		paths: []*regexp.Regexp{
			regexp.MustCompile(fmt.Sprintf(`/0*%d/0*%d(?:[/.?#]|$)`, s, e)),
			regexp.MustCompile(fmt.Sprintf(`(?i)temporada-0*%d[/-]episodio-0*%d(?:\D|$)`, s, e)),
			regexp.MustCompile(fmt.Sprintf(`(?i)(?:^|[^a-z0-9])s0*%d[-_]?e0*%d(?:\D|$)`, s, e)),
		},
	}
}

func (m *episodeMatcher) matches(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}

	q := u.Query()
	if queryHas(q, seasonKeys, m.season) && queryHas(q, episodeKeys, m.episode) {
		return true
	}

	for _, p := range m.paths {
		if p.MatchString(u.Path) {
			return true
		}
	}
	return false
}

// encodesEpisode reports whether ref already names season s, episode e.
func encodesEpisode(ref string, s, e int) bool {
	return newEpisodeMatcher(s, e).matches(ref)
}

func queryHas(q url.Values, keys []string, want int) bool {
	for _, k := range keys {
		if n, err := strconv.Atoi(q.Get(k)); err == nil && n == want {
			return true
		}
	}
	return false
}

// findEpisodeAnchor returns the href of the first link tagged with the
// episode, by data attributes or by its URL.
func findEpisodeAnchor(doc *goquery.Document, s, e int) string {
	m := newEpisodeMatcher(s, e)
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h := strings.TrimSpace(a.AttrOr("href", ""))
		if h == "" || strings.HasPrefix(h, "#") || strings.HasPrefix(strings.ToLower(h), "javascript:") {
			return true
		}
		if attrInt(a, "data-season") == s && attrInt(a, "data-episode") == e {
			href = h
			return false
		}
		if m.matches(h) {
			href = h
			return false
		}
		return true
	})
	return href
}

func attrInt(s *goquery.Selection, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.AttrOr(name, "")))
	if err != nil {
		return -1
	}
	return n
}

// episodeSource follows the episode's own link when the content page has one,
// otherwise probes every iframe with the episode coordinates appended.
func (b *Browse) episodeSource(ctx context.Context, req media.Request, pageURL string, doc *goquery.Document) *media.Source {
	s, e := *req.Season, *req.Episode

	if href := findEpisodeAnchor(doc, s, e); href != "" {
		epURL, err := httputil.Resolve(pageURL, href)
		if err != nil {
			return nil
		}
		page, err := b.fetcher.Get(ctx, epURL, referer(pageURL))
		if err != nil || !page.OK() {
			b.log.Debug("episode page failed", "url", epURL, "err", err)
			return nil
		}
		epDoc, err := page.Document()
		if err != nil {
			return nil
		}
		if ref := findPlayerRef(epDoc, page.Text()); ref != "" {
			return b.fromPlayer(ctx, req, epURL, ref)
		}
		if u := b.findCDN(page.Text()); u != "" {
			return media.NewSource(u)
		}
		return nil
	}

	return b.probeIframes(ctx, pageURL, doc, s, e)
}

func (b *Browse) probeIframes(ctx context.Context, pageURL string, doc *goquery.Document, s, e int) *media.Source {
	m := newEpisodeMatcher(s, e)
	var refs []string
	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		if v := strings.TrimSpace(sel.AttrOr("src", sel.AttrOr("data-src", ""))); v != "" {
			refs = append(refs, v)
		}
	})

	for _, ref := range refs {
		probe, err := httputil.Resolve(pageURL, ref)
		if err != nil {
			continue
		}
		if !m.matches(probe) {
			probe, err = httputil.SetQuery(probe, map[string]string{
				"season":  strconv.Itoa(s),
				"episode": strconv.Itoa(e),
			})
			if err != nil {
				continue
			}
		}
		page, err := b.fetcher.Get(ctx, probe, referer(pageURL))
		if err != nil || !page.OK() {
			continue
		}
		if u := b.findCDN(page.Text()); u != "" {
			return media.NewSource(u)
		}
	}
	return nil
}
