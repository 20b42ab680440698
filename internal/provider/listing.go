package provider

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"vidsource/internal/media"
	"vidsource/internal/slug"
)

// Listing reads the browse provider's paginated catalog.
type Listing struct {
	fetcher Fetcher
	baseURL string
	path    string
}

// NewListing builds a Listing for {baseURL}/{listingPath}?type=..&page=..
func NewListing(fetcher Fetcher, baseURL, listingPath string) *Listing {
	return &Listing{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    strings.Trim(listingPath, "/"),
	}
}

func (l *Listing) pageURL(kind media.Kind, page int) string {
	u := l.baseURL + "/" + l.path + "?type=" + kind.ListingType()
	if page > 0 {
		u += "&page=" + strconv.Itoa(page)
	}
	return u
}

func (l *Listing) fetch(ctx context.Context, kind media.Kind, page int) (*goquery.Document, bool, error) {
	p, err := l.fetcher.Get(ctx, l.pageURL(kind, page), referer(l.baseURL+"/"))
	if err != nil {
		return nil, false, fmt.Errorf("fetching listing page %d: %w", page, err)
	}
	if p.Status == http.StatusNotFound {
		return nil, false, nil
	}
	if !p.OK() {
		return nil, false, fmt.Errorf("listing page %d: unexpected status %d", page, p.Status)
	}
	doc, err := p.Document()
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Page returns the entries on one listing page. An empty result with a nil
// error means the catalog has no such page.
func (l *Listing) Page(ctx context.Context, kind media.Kind, page int) ([]media.CatalogEntry, error) {
	doc, ok, err := l.fetch(ctx, kind, page)
	if err != nil || !ok {
		return nil, err
	}
	return parseListing(doc), nil
}

// TotalPages reads the highest page number from the pagination controls.
func (l *Listing) TotalPages(ctx context.Context, kind media.Kind) (int, error) {
	doc, ok, err := l.fetch(ctx, kind, 0)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return parseTotalPages(doc), nil
}

// parseListing extracts catalog entries from a listing page. Each entry is an
// element carrying data-tmdb; the slug comes from the nearest .html link and
// the title from the card's poster alt text.
func parseListing(doc *goquery.Document) []media.CatalogEntry {
	var entries []media.CatalogEntry
	seen := make(map[int64]bool)

	doc.Find("[data-tmdb]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("data-tmdb")
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 || seen[id] {
			return
		}
		seen[id] = true

		card := s.Closest(".media-card-item")
		if card.Length() == 0 {
			card = s.Parent()
		}

		e := media.CatalogEntry{ExternalID: id}
		e.Title = strings.TrimSpace(card.Find("img[alt]").First().AttrOr("alt", ""))
		if e.Title == "" {
			e.Title = strings.TrimSpace(card.Find(".title, h2, h3").First().Text())
		}

		href := s.Closest("a[href]").AttrOr("href", "")
		if !strings.HasSuffix(href, ".html") {
			href = card.Find(`a[href$=".html"]`).First().AttrOr("href", "")
		}
		if href != "" {
			e.Slug = strings.TrimSuffix(path.Base(href), ".html")
		} else if e.Title != "" {
			e.Slug = slug.Build(e.Title, id)
		}

		entries = append(entries, e)
	})

	return entries
}

func parseTotalPages(doc *goquery.Document) int {
	highest := 1
	doc.Find(".pagination-btn, .pagination a, .pagination button").Each(func(_ int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil && n > highest {
			highest = n
		}
	})
	return highest
}
