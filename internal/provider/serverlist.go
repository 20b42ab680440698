package provider

import (
	"context"
	"encoding/json"
	"fmt"
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
)

var iframeSrcPattern = regexp.MustCompile(`(?i)src=["'](https?://[^"']+)["']`)

var nestedPlayerKeywords = []string{"embed", "player", "stream", "video"}

// ServerList is provider C: an embed page lists servers, a JSON endpoint
// turns each server into a player link, and the player page holds the URL.
type ServerList struct {
	fetcher Fetcher
	base    string
	x       extractor
	log     *log.Logger
}

// NewServerList builds provider C. Keyword and blocklist settings are shared
// with provider B since both parse the same kind of player pages.
func NewServerList(fetcher Fetcher, cfg config.ServerListConfig, embed config.EmbedConfig, logger *log.Logger) *ServerList {
	return &ServerList{
		fetcher: fetcher,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		x:       extractor{keywords: embed.MediaKeywords, blocked: embed.BlockedHosts},
		log:     logging.Component(logger, "provider").With("provider", string(media.ProviderServerList)),
	}
}

func (p *ServerList) ID() media.ProviderID { return media.ProviderServerList }

type streamLinkResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (p *ServerList) embedURL(req media.Request) string {
	if req.Kind == media.Series && req.HasEpisode() {
		return httputil.BuildURL(p.base, "embed", req.EmbedID(),
			strconv.Itoa(*req.Season), strconv.Itoa(*req.Episode))
	}
	return httputil.BuildURL(p.base, "embed", req.EmbedID())
}

// Resolve walks the servers in page order until one yields a media URL.
func (p *ServerList) Resolve(ctx context.Context, req media.Request) (*media.Source, error) {
	embedURL := p.embedURL(req)
	page, err := p.fetcher.Get(ctx, embedURL, referer(p.base+"/"))
	if err != nil {
		return nil, notFound("fetching %s: %v", embedURL, err)
	}
	if !page.OK() {
		return nil, notFound("embed page %s returned %d", embedURL, page.Status)
	}
	doc, err := page.Document()
	if err != nil {
		return nil, notFound("parsing %s: %v", embedURL, err)
	}

	movieID, servers := parseServerList(doc)
	if movieID == "" {
		return nil, notFound("no internal id on %s", embedURL)
	}
	if len(servers) == 0 {
		return nil, notFound("no servers on %s", embedURL)
	}
	p.log.Debug("embed page parsed", "movie", movieID, "servers", len(servers))

	for _, server := range servers {
		u, err := p.tryServer(ctx, embedURL, movieID, server)
		if err != nil {
			p.log.Debug("server failed", "server", server, "err", err)
			continue
		}
		if u != "" {
			return media.NewSource(u), nil
		}
	}
	return nil, notFound("no server on %s produced a media URL", embedURL)
}

// parseServerList returns the internal content id and the server ids, in
// page order, of elements whose class starts with "server".
func parseServerList(doc *goquery.Document) (string, []string) {
	movieID := strings.TrimSpace(doc.Find("[data-movie-id]").First().AttrOr("data-movie-id", ""))

	var servers []string
	doc.Find("[data-id]").Each(func(_ int, s *goquery.Selection) {
		if !strings.HasPrefix(strings.TrimSpace(s.AttrOr("class", "")), "server") {
			return
		}
		if id := strings.TrimSpace(s.AttrOr("data-id", "")); id != "" {
			servers = append(servers, id)
		}
	})
	return movieID, servers
}

func (p *ServerList) tryServer(ctx context.Context, embedURL, movieID, server string) (string, error) {
	apiURL := fmt.Sprintf("%s/ajax/get_stream_link?id=%s&movie=%s&is_init=false&captcha=&ref=",
		p.base, url.QueryEscape(server), url.QueryEscape(movieID))

	resp, err := p.fetcher.Get(ctx, apiURL, httputil.Headers{
		"Referer":          embedURL,
		"X-Requested-With": "XMLHttpRequest",
		"Accept":           "application/json, text/javascript, */*; q=0.01",
	})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("stream link returned %d", resp.Status)
	}
	if !resp.IsJSON() {
		return "", fmt.Errorf("stream link returned %q", resp.ContentType)
	}

	var link streamLinkResponse
	if err := json.Unmarshal(resp.Body, &link); err != nil {
		return "", fmt.Errorf("decoding stream link: %w", err)
	}
	if !link.Success || link.Data.Link == "" {
		return "", fmt.Errorf("stream link unsuccessful")
	}

	playerURL, err := httputil.Resolve(p.base+"/", link.Data.Link)
	if err != nil {
		return "", err
	}
	player, err := p.fetcher.Get(ctx, playerURL, referer(p.base+"/"))
	if err != nil {
		return "", fmt.Errorf("fetching player: %w", err)
	}
	if !player.OK() {
		return "", fmt.Errorf("player returned %d", player.Status)
	}
	if u := p.x.extract(player.Text(), playerPatterns); u != "" {
		return u, nil
	}

	return p.followIframe(ctx, playerURL, player.Text())
}

// followIframe fetches the first nested player iframe and runs one more
// extraction pass on it. It never recurses further.
func (p *ServerList) followIframe(ctx context.Context, playerURL, body string) (string, error) {
	for _, m := range iframeSrcPattern.FindAllStringSubmatch(body, -1) {
		if !containsAny(m[1], nestedPlayerKeywords) {
			continue
		}
		inner, err := p.fetcher.Get(ctx, m[1], referer(playerURL))
		if err != nil {
			return "", fmt.Errorf("fetching nested iframe: %w", err)
		}
		if !inner.OK() {
			return "", fmt.Errorf("nested iframe %s: status %d", m[1], inner.Status)
		}
		return p.x.extract(inner.Text(), playerPatterns), nil
	}
	return "", nil
}
