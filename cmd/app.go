package cmd

import (
	"fmt"

	"vidsource/internal/httputil"
	"vidsource/internal/media"
	"vidsource/internal/metadata"
	"vidsource/internal/provider"
	"vidsource/internal/resolver"
	"vidsource/internal/store"
)

// backend is a cache that is also the catalog. Both store implementations
// satisfy it.
type backend interface {
	store.Cache
	store.Catalog
}

// app wires the pipeline from cfg.
type app struct {
	client  *httputil.Client
	store   backend
	tmdb    *metadata.TMDB
	listing *provider.Listing
	close   func() error
}

func newApp() (*app, error) {
	a := &app{
		client: httputil.NewClient(httputil.Options{
			Timeout:      cfg.HTTP.Timeout,
			UserAgent:    cfg.HTTP.UserAgent,
			MaxRedirects: cfg.HTTP.MaxRedirects,
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
			Fingerprint:  cfg.HTTP.Fingerprint,
		}),
		close: func() error { return nil },
	}

	switch cfg.Cache.Driver {
	case "memory":
		a.store = store.NewMemory()
	default:
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, err
		}
		db, err := store.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		logger.Debug("cache opened", "path", path)
		a.store = db
		a.close = db.Close
	}

	a.tmdb = metadata.NewTMDB(a.client, cfg.TMDB, logger.Logger)
	if !a.tmdb.Configured() {
		logger.Warn("no TMDB credentials; titles come from the catalog only")
	}
	a.listing = provider.NewListing(a.client, cfg.Browse.BaseURL, cfg.Browse.ListingPath)
	return a, nil
}

func (a *app) lookup() metadata.Lookup {
	var fallback metadata.Lookup
	if a.tmdb.Configured() {
		fallback = a.tmdb
	}
	return metadata.NewCatalogFirst(a.store, fallback, logger.Logger)
}

func (a *app) resolver() *resolver.Resolver {
	discover := provider.NewDiscoverer(a.listing, cfg.Browse.DiscoveryBatch, cfg.Browse.DiscoveryCeiling, logger.Logger)
	providers := []provider.Provider{
		provider.NewBrowse(a.client, a.lookup(), discover, cfg.Browse, logger.Logger),
		provider.NewEmbed(a.client, cfg.Embed, logger.Logger),
		provider.NewServerList(a.client, cfg.ServerList, cfg.Embed, logger.Logger),
	}
	return resolver.New(a.store, providers,
		resolver.WithDefaultVariant(cfg.DefaultVariant),
		resolver.WithTTL(media.ProviderBrowse, cfg.Browse.TTL),
		resolver.WithTTL(media.ProviderEmbed, cfg.Embed.TTL),
		resolver.WithTTL(media.ProviderServerList, cfg.ServerList.TTL),
		resolver.WithLogger(logger.Logger),
	)
}
