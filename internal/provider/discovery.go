package provider

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/iter"

	"vidsource/internal/logging"
	"vidsource/internal/media"
)

// PageSource returns one page of catalog entries. An empty page with a nil
// error signals the end of the catalog.
type PageSource interface {
	Page(ctx context.Context, kind media.Kind, page int) ([]media.CatalogEntry, error)
}

// Discoverer pages through a provider catalog looking for a content id.
type Discoverer struct {
	pages   PageSource
	batch   int
	ceiling int
	log     *log.Logger
}

// NewDiscoverer builds a Discoverer that fetches batch pages at a time and
// never reads past page ceiling.
func NewDiscoverer(pages PageSource, batch, ceiling int, logger *log.Logger) *Discoverer {
	if batch < 1 {
		batch = 1
	}
	if ceiling < 1 {
		ceiling = 1
	}
	return &Discoverer{
		pages:   pages,
		batch:   batch,
		ceiling: ceiling,
		log:     logging.Component(logger, "discovery"),
	}
}

type pageResult struct {
	entries []media.CatalogEntry
	failed  bool
}

// Discover returns the slug of targetID, or false when the catalog ran out,
// the ceiling was reached or the context ended.
func (d *Discoverer) Discover(ctx context.Context, targetID int64, kind media.Kind) (string, bool) {
	mapper := iter.Mapper[int, pageResult]{MaxGoroutines: d.batch}

	for start := 1; start <= d.ceiling; start += d.batch {
		if ctx.Err() != nil {
			return "", false
		}

		end := min(start+d.batch-1, d.ceiling)
		pages := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}

		results := mapper.Map(pages, func(p *int) pageResult {
			entries, err := d.pages.Page(ctx, kind, *p)
			if err != nil {
				d.log.Debug("listing page failed", "page", *p, "err", err)
				return pageResult{failed: true}
			}
			return pageResult{entries: entries}
		})

		for i, r := range results {
			for _, e := range r.entries {
				if e.ExternalID == targetID && e.Slug != "" {
					d.log.Debug("discovered slug", "id", targetID, "slug", e.Slug, "page", pages[i])
					return e.Slug, true
				}
			}
		}

		for i, r := range results {
			if !r.failed && len(r.entries) == 0 {
				d.log.Debug("catalog exhausted", "id", targetID, "page", pages[i])
				return "", false
			}
		}
	}

	d.log.Debug("discovery hit page ceiling", "id", targetID, "ceiling", d.ceiling)
	return "", false
}
