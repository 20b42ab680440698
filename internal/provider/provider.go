// Package provider implements the adapters that turn a content request into
// a playable stream URL by scraping third-party embed and player sites.
//
// Adapters never return transient failures to the caller as hard errors: a
// bad page, candidate or server is skipped and the adapter moves on. When
// nothing is found the adapter returns an error wrapping ErrNotFound.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vidsource/internal/httputil"
	"vidsource/internal/media"
)

// ErrNotFound means the adapter could not produce a source for the request.
var ErrNotFound = errors.New("source not found")

// Provider resolves a request to a stream source.
type Provider interface {
	ID() media.ProviderID
	Resolve(ctx context.Context, req media.Request) (*media.Source, error)
}

// Fetcher is the HTTP capability adapters depend on. *httputil.Client
// satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string, headers httputil.Headers) (*httputil.Page, error)
	Head(ctx context.Context, url string, headers httputil.Headers) (bool, error)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func referer(url string) httputil.Headers {
	return httputil.Headers{"Referer": url}
}

// containsAny reports whether s contains any of subs, ignoring case.
func containsAny(s string, subs []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
