package provider

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"vidsource/internal/config"
	"vidsource/internal/httputil"
	"vidsource/internal/logging"
	"vidsource/internal/media"
	"vidsource/internal/metadata"
	"vidsource/internal/slug"
)

// SlugDiscoverer finds a provider slug for an id by walking the catalog.
type SlugDiscoverer interface {
	Discover(ctx context.Context, targetID int64, kind media.Kind) (string, bool)
}

var (
	playerRefPattern = regexp.MustCompile(`["']([^"'\s<>]*(?:player|embed)[^"'\s<>]*)["']`)
	anyMP4Pattern    = regexp.MustCompile(`https?://[^"'\s<>\\]+\.mp4[^"'\s<>\\]*`)
)

// Browse is provider A: content pages addressed by a title slug, each
// embedding a player page that references the provider's CDN.
type Browse struct {
	fetcher  Fetcher
	lookup   metadata.Lookup
	discover SlugDiscoverer
	cfg      config.BrowseConfig
	base     string
	cdnMP4   []*regexp.Regexp
	log      *log.Logger
}

// NewBrowse builds provider A. discover may be nil to disable the catalog
// fallback.
func NewBrowse(fetcher Fetcher, lookup metadata.Lookup, discover SlugDiscoverer, cfg config.BrowseConfig, logger *log.Logger) *Browse {
	b := &Browse{
		fetcher:  fetcher,
		lookup:   lookup,
		discover: discover,
		cfg:      cfg,
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		log:      logging.Component(logger, "provider").With("provider", string(media.ProviderBrowse)),
	}
	for _, host := range cfg.CDNHosts {
		b.cdnMP4 = append(b.cdnMP4, regexp.MustCompile(
			`https?://(?:[\w-]+\.)*`+regexp.QuoteMeta(host)+`/[^"'\s<>\\]*?\.mp4[^"'\s<>\\]*`,
		))
	}
	return b
}

func (b *Browse) ID() media.ProviderID { return media.ProviderBrowse }

// Resolve tries each slug candidate, then a discovered slug.
func (b *Browse) Resolve(ctx context.Context, req media.Request) (*media.Source, error) {
	md, err := b.lookup.GetTitle(ctx, req.ContentID, req.Kind)
	if err != nil {
		return nil, notFound("metadata for %d: %v", req.ContentID, err)
	}
	if md == nil || strings.TrimSpace(md.Title) == "" {
		return nil, notFound("no title for %d", req.ContentID)
	}

	tried := make(map[string]bool)
	for _, s := range slug.Candidates(md.Title, md.AlternateTitle, req.ContentID) {
		tried[s] = true
		if src := b.tryCandidate(ctx, req, s); src != nil {
			return src, nil
		}
	}

	if b.discover != nil {
		if s, ok := b.discover.Discover(ctx, req.ContentID, req.Kind); ok && !tried[s] {
			b.log.Debug("trying discovered slug", "slug", s)
			if src := b.tryCandidate(ctx, req, s); src != nil {
				return src, nil
			}
		}
	}

	return nil, notFound("no content page matched %q", md.Title)
}

func (b *Browse) contentURL(kind media.Kind, s string) string {
	p := b.cfg.MoviePath
	if kind == media.Series {
		p = b.cfg.SeriesPath
	}
	return httputil.BuildURL(b.base, p, s+".html")
}

func (b *Browse) tryCandidate(ctx context.Context, req media.Request, s string) *media.Source {
	pageURL := b.contentURL(req.Kind, s)
	page, err := b.fetcher.Get(ctx, pageURL, referer(b.base+"/"))
	if err != nil {
		b.log.Debug("content page failed", "url", pageURL, "err", err)
		return nil
	}
	if !page.OK() {
		b.log.Debug("content page status", "url", pageURL, "status", page.Status)
		return nil
	}
	if containsAny(page.Text(), b.cfg.SoftNotFound) {
		b.log.Debug("content page is a soft 404", "url", pageURL)
		return nil
	}

	doc, err := page.Document()
	if err != nil {
		return nil
	}

	if req.Kind == media.Series && req.HasEpisode() {
		if src := b.episodeSource(ctx, req, pageURL, doc); src != nil {
			return src
		}
	}

	ref := findPlayerRef(doc, page.Text())
	if ref == "" {
		if u := b.findCDN(page.Text()); u != "" {
			return media.NewSource(u)
		}
		return nil
	}
	return b.fromPlayer(ctx, req, pageURL, ref)
}

// fromPlayer fetches a player page and pulls a media URL out of it.
func (b *Browse) fromPlayer(ctx context.Context, req media.Request, pageURL, ref string) *media.Source {
	playerURL, err := httputil.Resolve(pageURL, ref)
	if err != nil {
		return nil
	}
	if req.Kind == media.Series && req.HasEpisode() && !encodesEpisode(playerURL, *req.Season, *req.Episode) {
		playerURL, err = httputil.SetQuery(playerURL, map[string]string{
			"season":  strconv.Itoa(*req.Season),
			"episode": strconv.Itoa(*req.Episode),
		})
		if err != nil {
			return nil
		}
	}

	page, err := b.fetcher.Get(ctx, playerURL, referer(pageURL))
	if err != nil || !page.OK() {
		b.log.Debug("player page failed", "url", playerURL, "err", err)
		return nil
	}
	body := page.Text()

	if u := b.findCDN(body); u != "" {
		return media.NewSource(u)
	}
	if u := b.directLinkParam(ctx, playerURL); u != "" {
		return media.NewSource(u)
	}
	if u := anyMP4Pattern.FindString(body); u != "" {
		return media.NewSource(u)
	}
	return nil
}

// directLinkParam looks for a query parameter on the player URL that is
// itself a media URL, and accepts it only if it answers a HEAD request.
// Parameters are checked in the order they appear in the URL.
func (b *Browse) directLinkParam(ctx context.Context, playerURL string) string {
	u, err := url.Parse(playerURL)
	if err != nil {
		return ""
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		_, raw, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		v, err := url.QueryUnescape(raw)
		if err != nil || !isMediaURL(v) {
			continue
		}
		ok, err = b.fetcher.Head(ctx, v, referer(playerURL))
		if err == nil && ok {
			return v
		}
	}
	return ""
}

func isMediaURL(s string) bool {
	if httputil.ValidateURL(s) != nil {
		return false
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, ".mp4") || strings.Contains(lower, ".m3u8")
}

func (b *Browse) findCDN(body string) string {
	for _, p := range b.cdnMP4 {
		if u := p.FindString(body); u != "" {
			return u
		}
	}
	return ""
}

// findPlayerRef returns the first iframe source, or failing that the first
// quoted URL or path mentioning a player or embed. Bare tokens such as
// id="player" or class="embed-responsive" are not references.
func findPlayerRef(doc *goquery.Document, body string) string {
	var ref string
	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src"} {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" && v != "about:blank" {
				ref = v
				return false
			}
		}
		return true
	})
	if ref != "" {
		return ref
	}
	for _, m := range playerRefPattern.FindAllStringSubmatch(body, -1) {
		if isPathRef(m[1]) && !isAsset(m[1]) {
			return m[1]
		}
	}
	return ""
}

// isPathRef reports whether a quoted value is shaped like a URL or path.
func isPathRef(ref string) bool {
	for _, prefix := range []string{"http://", "https://", "//", "/", "./", "../"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return strings.Contains(ref, "/")
}

// isAsset filters script and style references that mention "player".
func isAsset(ref string) bool {
	p := strings.ToLower(ref)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, ext := range []string{".js", ".css", ".png", ".jpg", ".svg", ".woff2"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
