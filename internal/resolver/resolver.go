// Package resolver is the entry point of the pipeline: it validates a request,
// answers from the cache when it can and otherwise walks the providers in
// priority order.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"vidsource/internal/httputil"
	"vidsource/internal/logging"
	"vidsource/internal/media"
	"vidsource/internal/provider"
	"vidsource/internal/store"
)

// ErrInvalidRequest is the only error Resolve returns. Everything else is a
// soft failure carried in the Result.
var ErrInvalidRequest = errors.New("invalid request")

const (
	defaultVariant = "subtitled"
	defaultTTL     = 6 * time.Hour
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Resolver runs the cache check and the provider fallback chain.
type Resolver struct {
	cache     store.Cache
	providers []provider.Provider
	variant   string
	ttl       map[media.ProviderID]time.Duration
	now       func() time.Time
	log       *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultVariant sets the variant used when a request leaves it empty.
func WithDefaultVariant(v string) Option {
	return func(r *Resolver) {
		if v = strings.TrimSpace(v); v != "" {
			r.variant = v
		}
	}
}

// WithTTL sets how long a source found by id stays cached.
func WithTTL(id media.ProviderID, d time.Duration) Option {
	return func(r *Resolver) { r.ttl[id] = d }
}

// WithClock overrides the time source for expiry stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.log = logging.Component(l, "resolver") }
}

// New builds a Resolver. Providers are tried in the order given.
func New(cache store.Cache, providers []provider.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		cache:     cache,
		providers: providers,
		variant:   defaultVariant,
		ttl:       make(map[media.ProviderID]time.Duration),
		now:       time.Now,
		log:       logging.Component(nil, "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds a stream for req. A nil error with an unfound Result means
// no provider had the content; a non-nil error always wraps
// ErrInvalidRequest and means nothing was fetched.
func (r *Resolver) Resolve(ctx context.Context, req media.Request) (*media.Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Variant) == "" {
		req.Variant = r.variant
	}

	key := req.Key()
	logger := r.log.With("key", key.String())

	candidates := r.providers
	attempted := media.ProviderAll
	if req.ForcedProvider != nil {
		attempted = *req.ForcedProvider
		candidates = r.only(attempted)
		logger.Debug("forced provider, skipping cache", "provider", attempted)
	} else if res := r.fromCache(ctx, key, logger); res != nil {
		return res, nil
	}

	for _, p := range candidates {
		if ctx.Err() != nil {
			logger.Debug("context done, stopping", "err", ctx.Err())
			break
		}
		src, err := p.Resolve(ctx, req)
		if err != nil {
			logger.Debug("provider missed", "provider", p.ID(), "err", err)
			continue
		}
		if src == nil || src.URL == "" {
			continue
		}

		logger.Info("resolved", "provider", p.ID(), "url", src.URL)
		r.save(ctx, key, p.ID(), src, logger)
		return &media.Result{
			URL:        src.URL,
			MediaType:  src.MediaType,
			ProviderID: p.ID(),
		}, nil
	}

	logger.Info("no provider resolved", "attempted", attempted)
	return media.NotFound(attempted), nil
}

func (r *Resolver) only(id media.ProviderID) []provider.Provider {
	for _, p := range r.providers {
		if p.ID() == id {
			return []provider.Provider{p}
		}
	}
	return nil
}

func (r *Resolver) fromCache(ctx context.Context, key media.CacheKey, logger *log.Logger) *media.Result {
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "err", err)
		return nil
	}
	if entry == nil {
		return nil
	}
	logger.Debug("cache hit", "provider", entry.ProviderID)
	return &media.Result{
		URL:        entry.VideoURL,
		MediaType:  entry.MediaType,
		ProviderID: entry.ProviderID,
		FromCache:  true,
	}
}

func (r *Resolver) save(ctx context.Context, key media.CacheKey, id media.ProviderID, src *media.Source, logger *log.Logger) {
	ttl, ok := r.ttl[id]
	if !ok || ttl <= 0 {
		ttl = defaultTTL
	}
	err := r.cache.Upsert(ctx, media.CacheEntry{
		Key:        key,
		VideoURL:   src.URL,
		MediaType:  src.MediaType,
		ProviderID: id,
		ExpiresAt:  r.now().Add(ttl),
	})
	if err != nil {
		logger.Warn("cache write failed", "err", err)
	}
}

// Validate checks a request without resolving it.
func Validate(req media.Request) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q check", ErrInvalidRequest, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if (req.Season == nil) != (req.Episode == nil) {
		return fmt.Errorf("%w: season and episode must be given together", ErrInvalidRequest)
	}
	switch req.Kind {
	case media.Series:
		if !req.HasEpisode() {
			return fmt.Errorf("%w: series requests need season and episode", ErrInvalidRequest)
		}
	case media.Movie:
		if req.HasEpisode() {
			return fmt.Errorf("%w: movie requests take no season or episode", ErrInvalidRequest)
		}
	}

	if req.ExternalID != "" {
		if err := httputil.ValidateID(req.ExternalID); err != nil {
			return fmt.Errorf("%w: externalId: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}
