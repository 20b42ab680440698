// Package catalog fills the content catalog from the browse provider's
// listing pages or from a JSON export.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"

	"vidsource/internal/logging"
	"vidsource/internal/media"
	"vidsource/internal/metadata"
	"vidsource/internal/store"
)

const (
	defaultMaxPages = 10
	maxFailures     = 10
)

// Listing is the paginated provider catalog. *provider.Listing satisfies it.
type Listing interface {
	TotalPages(ctx context.Context, kind media.Kind) (int, error)
	Page(ctx context.Context, kind media.Kind, page int) ([]media.CatalogEntry, error)
}

// Details fetches full metadata for one id. *metadata.TMDB satisfies it.
type Details interface {
	Details(ctx context.Context, id int64, kind media.Kind) (*media.Content, error)
}

// Options selects what to import.
type Options struct {
	Kind      media.Kind
	StartPage int
	MaxPages  int
	Enrich    bool
}

// Report counts what an import did.
type Report struct {
	TotalPages   int
	PagesScraped int
	Scraped      int
	Imported     int
	Skipped      int
	Errors       int
	// Failures holds the first few error messages.
	Failures []string
}

func (r *Report) fail(format string, args ...any) {
	r.Errors++
	if len(r.Failures) < maxFailures {
		r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
	}
}

// Importer scrapes listing pages and inserts new catalog rows.
type Importer struct {
	listing Listing
	details Details
	catalog store.Catalog
	workers int
	log     *log.Logger
}

// NewImporter builds an Importer. details may be nil, which disables
// enrichment.
func NewImporter(listing Listing, details Details, catalog store.Catalog, workers int, logger *log.Logger) *Importer {
	if workers < 1 {
		workers = 1
	}
	return &Importer{
		listing: listing,
		details: details,
		catalog: catalog,
		workers: workers,
		log:     logging.Component(logger, "import"),
	}
}

// Import scrapes pages StartPage..StartPage+MaxPages-1 (capped at the
// catalog's last page) and inserts every id not already in the catalog.
// Existing rows are never modified.
func (im *Importer) Import(ctx context.Context, opts Options) (*Report, error) {
	if opts.StartPage < 1 {
		opts.StartPage = 1
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = defaultMaxPages
	}

	total, err := im.listing.TotalPages(ctx, opts.Kind)
	if err != nil {
		return nil, fmt.Errorf("reading page count: %w", err)
	}
	total = max(total, 1)

	report := &Report{TotalPages: total}
	end := min(opts.StartPage+opts.MaxPages-1, total)
	im.log.Info("scraping listing", "kind", opts.Kind, "from", opts.StartPage, "to", end, "available", total)

	entries := im.scrape(ctx, opts.Kind, opts.StartPage, end, report)
	report.Scraped = len(entries)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	im.insert(ctx, im.rows(ctx, opts, entries), report)

	im.log.Info("import finished",
		"scraped", report.Scraped, "imported", report.Imported,
		"skipped", report.Skipped, "errors", report.Errors)
	return report, nil
}

// scrape reads pages in order and deduplicates ids across them.
func (im *Importer) scrape(ctx context.Context, kind media.Kind, start, end int, report *Report) []media.CatalogEntry {
	var all []media.CatalogEntry
	seen := make(map[int64]bool)

	for p := start; p <= end; p++ {
		if ctx.Err() != nil {
			break
		}
		entries, err := im.listing.Page(ctx, kind, p)
		report.PagesScraped++
		if err != nil {
			report.fail("page %d: %v", p, err)
			continue
		}
		im.log.Debug("page scraped", "page", p, "items", len(entries))
		for _, e := range entries {
			if seen[e.ExternalID] {
				continue
			}
			seen[e.ExternalID] = true
			all = append(all, e)
		}
	}
	return all
}

// rows turns entries into catalog rows, enriching them when asked.
func (im *Importer) rows(ctx context.Context, opts Options, entries []media.CatalogEntry) []media.Content {
	rows := make([]media.Content, len(entries))
	for i, e := range entries {
		rows[i] = media.Content{ContentID: e.ExternalID, Kind: opts.Kind, Title: e.Title}
	}
	if opts.Enrich {
		im.enrich(ctx, rows)
	}
	return rows
}

// enrich replaces rows with TMDB details concurrently. A failed enrichment
// keeps the row as it was; empty titles in the details fall back to the row's.
func (im *Importer) enrich(ctx context.Context, rows []media.Content) {
	if im.details == nil {
		return
	}
	p := pool.New().WithMaxGoroutines(im.workers)
	for i := range rows {
		p.Go(func() {
			c, err := im.details.Details(ctx, rows[i].ContentID, rows[i].Kind)
			if err != nil {
				if !errors.Is(err, metadata.ErrNotFound) {
					im.log.Debug("enrichment failed", "id", rows[i].ContentID, "err", err)
				}
				return
			}
			if c.Title == "" {
				c.Title = rows[i].Title
			}
			if c.OriginalTitle == "" {
				c.OriginalTitle = rows[i].OriginalTitle
			}
			c.ContentID = rows[i].ContentID
			c.Kind = rows[i].Kind
			rows[i] = *c
		})
	}
	p.Wait()
}

// insert adds rows that are not yet in the catalog and counts the outcome.
func (im *Importer) insert(ctx context.Context, rows []media.Content, report *Report) {
	for _, row := range rows {
		inserted, err := im.catalog.InsertContent(ctx, row)
		switch {
		case err != nil:
			report.fail("inserting %d: %v", row.ContentID, err)
		case inserted:
			report.Imported++
		default:
			report.Skipped++
		}
	}
}
