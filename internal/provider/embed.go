package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"vidsource/internal/config"
	"vidsource/internal/httputil"
	"vidsource/internal/logging"
	"vidsource/internal/media"
)

// Embed is provider B: one embed page per id carrying a player sources list.
type Embed struct {
	fetcher Fetcher
	cfg     config.EmbedConfig
	base    string
	x       extractor
	log     *log.Logger
}

// NewEmbed builds provider B.
func NewEmbed(fetcher Fetcher, cfg config.EmbedConfig, logger *log.Logger) *Embed {
	return &Embed{
		fetcher: fetcher,
		cfg:     cfg,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		x:       extractor{keywords: cfg.MediaKeywords, blocked: cfg.BlockedHosts},
		log:     logging.Component(logger, "provider").With("provider", string(media.ProviderEmbed)),
	}
}

func (p *Embed) ID() media.ProviderID { return media.ProviderEmbed }

func (p *Embed) embedURL(req media.Request) string {
	if req.Kind == media.Series && req.HasEpisode() {
		return httputil.BuildURL(p.base, p.cfg.SeriesPath, req.EmbedID(),
			strconv.Itoa(*req.Season), strconv.Itoa(*req.Episode))
	}
	return httputil.BuildURL(p.base, p.cfg.MoviePath, req.EmbedID())
}

// Resolve fetches the embed page once and extracts the first media URL.
func (p *Embed) Resolve(ctx context.Context, req media.Request) (*media.Source, error) {
	u := p.embedURL(req)
	page, err := p.fetcher.Get(ctx, u, referer(p.base+"/"))
	if err != nil {
		return nil, notFound("fetching %s: %v", u, err)
	}
	if !page.OK() {
		return nil, notFound("embed page %s returned %d", u, page.Status)
	}

	if src := p.x.extract(page.Text(), embedPatterns); src != "" {
		p.log.Debug("found source", "url", src)
		return media.NewSource(src), nil
	}
	return nil, notFound("no media URL on %s", u)
}
