// Package store persists resolved stream URLs and the content catalog.
//
// Cache entries are never deleted. A read ignores rows whose expiry has
// passed and the next successful resolution overwrites them in place.
package store

import (
	"context"
	"time"

	"vidsource/internal/media"
)

// Cache is the resolution cache gateway.
type Cache interface {
	// Get returns the live entry for key, or nil if none exists or it expired.
	Get(ctx context.Context, key media.CacheKey) (*media.CacheEntry, error)
	// Upsert inserts or replaces the entry for entry.Key.
	Upsert(ctx context.Context, entry media.CacheEntry) error
}

// Catalog is the content catalog. The pipeline only reads it.
type Catalog interface {
	// GetContent returns the row for id and kind, or nil if absent.
	GetContent(ctx context.Context, id int64, kind media.Kind) (*media.Content, error)
	// InsertContent adds a row unless one exists. Reports whether it inserted.
	InsertContent(ctx context.Context, c media.Content) (bool, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
