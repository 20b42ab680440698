// Package metadata resolves content ids to titles and external ids.
package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"vidsource/internal/logging"
	"vidsource/internal/media"
	"vidsource/internal/store"
)

var (
	// ErrNotFound means the id is unknown to the lookup service.
	ErrNotFound = errors.New("metadata not found")
	// ErrNotConfigured means no credentials are set for the lookup service.
	ErrNotConfigured = errors.New("metadata lookup not configured")
)

// Lookup returns the title metadata for a content id.
type Lookup interface {
	GetTitle(ctx context.Context, id int64, kind media.Kind) (*media.Metadata, error)
}

// CatalogFirst answers from the catalog and falls back to another lookup
// when the row is missing or has no title.
type CatalogFirst struct {
	catalog  store.Catalog
	fallback Lookup
	log      *log.Logger
}

// NewCatalogFirst builds a CatalogFirst. fallback may be nil.
func NewCatalogFirst(catalog store.Catalog, fallback Lookup, logger *log.Logger) *CatalogFirst {
	return &CatalogFirst{
		catalog:  catalog,
		fallback: fallback,
		log:      logging.Component(logger, "metadata"),
	}
}

func (c *CatalogFirst) GetTitle(ctx context.Context, id int64, kind media.Kind) (*media.Metadata, error) {
	row, err := c.catalog.GetContent(ctx, id, kind)
	if err != nil {
		c.log.Warn("catalog read failed", "id", id, "kind", kind, "err", err)
	}
	if row != nil && row.Title != "" {
		return row.Metadata(), nil
	}

	if c.fallback == nil {
		return nil, fmt.Errorf("content %d (%s): %w", id, kind, ErrNotFound)
	}
	return c.fallback.GetTitle(ctx, id, kind)
}
