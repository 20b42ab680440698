package provider

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"vidsource/internal/httputil"
	"vidsource/internal/media"
)

// fakeFetcher serves canned pages by exact URL and records every request.
// Unknown URLs answer 404.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]*httputil.Page
	heads    map[string]bool
	calls    []string
	referers map[string]string
	headers  map[string]httputil.Headers
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:    make(map[string]*httputil.Page),
		heads:    make(map[string]bool),
		referers: make(map[string]string),
		headers:  make(map[string]httputil.Headers),
	}
}

func (f *fakeFetcher) html(url, body string) {
	f.pages[url] = &httputil.Page{Status: http.StatusOK, URL: url, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func (f *fakeFetcher) json(url, body string) {
	f.pages[url] = &httputil.Page{Status: http.StatusOK, URL: url, ContentType: "application/json", Body: []byte(body)}
}

func (f *fakeFetcher) status(url string, code int) {
	f.pages[url] = &httputil.Page{Status: code, URL: url, ContentType: "text/html"}
}

func (f *fakeFetcher) Get(_ context.Context, url string, headers httputil.Headers) (*httputil.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GET "+url)
	f.referers[url] = headers["Referer"]
	f.headers[url] = headers
	if p, ok := f.pages[url]; ok {
		return p, nil
	}
	return &httputil.Page{Status: http.StatusNotFound, URL: url}, nil
}

func (f *fakeFetcher) Head(_ context.Context, url string, _ httputil.Headers) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "HEAD "+url)
	return f.heads[url], nil
}

func (f *fakeFetcher) called(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasSuffix(c, " "+url) {
			return true
		}
	}
	return false
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func loadTestDoc(t *testing.T, filename string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(loadFixture(t, filename)))
	if err != nil {
		t.Fatalf("parsing test fixture %s: %v", filename, err)
	}
	return doc
}

func loadDocString(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parsing document: %v", err)
	}
	return doc
}

func loadFixture(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + filename)
	if err != nil {
		t.Fatalf("reading test fixture %s: %v", filename, err)
	}
	return string(data)
}

func intp(v int) *int { return &v }

func movieRequest(id int64) media.Request {
	return media.Request{ContentID: id, Kind: media.Movie, Variant: "subtitled"}
}

func episodeRequest(id int64, season, episode int) media.Request {
	return media.Request{ContentID: id, Kind: media.Series, Variant: "subtitled", Season: intp(season), Episode: intp(episode)}
}
