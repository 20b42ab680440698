package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsource/internal/media"
)

func TestParseListing(t *testing.T) {
	doc := loadTestDoc(t, "listing_page.html")
	entries := parseListing(doc)

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}

	want := []media.CatalogEntry{
		{ExternalID: 42, Slug: "horizonte-negro-42", Title: "Horizonte Negro"},
		{ExternalID: 4, Slug: "alem-da-tempestade-4", Title: "Além da Tempestade"},
		{ExternalID: 77, Slug: "sem-link-77", Title: "Sem Link"},
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], w)
		}
	}
}

func TestParseTotalPages(t *testing.T) {
	doc := loadTestDoc(t, "listing_page.html")
	if got := parseTotalPages(doc); got != 534 {
		t.Errorf("parseTotalPages() = %d, want 534", got)
	}
}

func TestListingPage(t *testing.T) {
	f := newFakeFetcher()
	f.html("https://browse.example/category.php?type=tv&page=3", loadFixture(t, "listing_page.html"))
	f.status("https://browse.example/category.php?type=tv&page=4", http.StatusInternalServerError)

	l := NewListing(f, "https://browse.example/", "/category.php")
	ctx := context.Background()

	entries, err := l.Page(ctx, media.Series, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, "https://browse.example/", f.referers["https://browse.example/category.php?type=tv&page=3"])

	_, err = l.Page(ctx, media.Series, 4)
	assert.Error(t, err, "5xx is a failed page, not the end of the catalog")

	entries, err = l.Page(ctx, media.Series, 5)
	require.NoError(t, err, "404 marks the end of the catalog")
	assert.Empty(t, entries)
}

func TestListingTotalPages(t *testing.T) {
	f := newFakeFetcher()
	f.html("https://browse.example/category.php?type=movie", loadFixture(t, "listing_page.html"))

	n, err := NewListing(f, "https://browse.example", "category.php").TotalPages(context.Background(), media.Movie)
	require.NoError(t, err)
	assert.Equal(t, 534, n)
}
