// Package media defines shared types for the vidsource pipeline.
package media

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind represents whether content is a movie or a series.
type Kind string

const (
	Movie  Kind = "movie"
	Series Kind = "series"
)

func (k Kind) String() string {
	return string(k)
}

// ListingType is the value the provider listings use for this kind.
func (k Kind) ListingType() string {
	if k == Series {
		return "tv"
	}
	return "movie"
}

// TMDBType is the path segment TMDB uses for this kind.
func (k Kind) TMDBType() string {
	if k == Series {
		return "tv"
	}
	return "movie"
}

// ParseKind accepts "movie" and "series" (plus the "tv" alias).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies", "filme":
		return Movie, nil
	case "series", "tv", "serie":
		return Series, nil
	default:
		return "", fmt.Errorf("unknown content kind %q (valid: movie, series)", s)
	}
}

// ProviderID identifies a provider adapter.
type ProviderID string

const (
	ProviderBrowse     ProviderID = "A" // slug-addressed content pages
	ProviderEmbed      ProviderID = "B" // id-addressed embed pages
	ProviderServerList ProviderID = "C" // server list + stream-link API

	ProviderNone ProviderID = "none"
	ProviderAll  ProviderID = "all"
)

// ParseProviderID accepts the adapter ids case-insensitively.
func ParseProviderID(s string) (ProviderID, error) {
	switch ProviderID(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderBrowse:
		return ProviderBrowse, nil
	case ProviderEmbed:
		return ProviderEmbed, nil
	case ProviderServerList:
		return ProviderServerList, nil
	default:
		return "", fmt.Errorf("unknown provider %q (valid: A, B, C)", s)
	}
}

// MediaType is the container of a resolved stream.
type MediaType string

const (
	MP4  MediaType = "mp4"
	M3U8 MediaType = "m3u8"
)

// DetectMediaType classifies a stream URL.
func DetectMediaType(url string) MediaType {
	if strings.Contains(strings.ToLower(url), ".mp4") {
		return MP4
	}
	return M3U8
}

// Request is the input to the resolver.
type Request struct {
	ContentID      int64       `json:"contentId" validate:"gt=0"`
	ExternalID     string      `json:"externalId,omitempty" validate:"omitempty,max=64"`
	Kind           Kind        `json:"contentKind" validate:"required,oneof=movie series"`
	Variant        string      `json:"variant,omitempty" validate:"omitempty,max=32"`
	Season         *int        `json:"season,omitempty" validate:"omitempty,gte=0"`
	Episode        *int        `json:"episode,omitempty" validate:"omitempty,gte=0"`
	ForcedProvider *ProviderID `json:"forcedProvider,omitempty" validate:"omitempty,oneof=A B C"`
}

// HasEpisode reports whether both episode coordinates are set.
func (r Request) HasEpisode() bool {
	return r.Season != nil && r.Episode != nil
}

// EmbedID returns the identifier id-addressed providers should use.
func (r Request) EmbedID() string {
	if id := strings.TrimSpace(r.ExternalID); id != "" {
		return id
	}
	return fmt.Sprintf("%d", r.ContentID)
}

// Key returns the composite cache key for the request.
func (r Request) Key() CacheKey {
	return CacheKey{
		ContentID: r.ContentID,
		Kind:      r.Kind,
		Variant:   r.Variant,
		Season:    r.Season,
		Episode:   r.Episode,
	}
}

// CacheKey identifies one cacheable resolution. A nil season/episode pair is
// its own partition and never matches a non-nil pair.
type CacheKey struct {
	ContentID int64
	Kind      Kind
	Variant   string
	Season    *int
	Episode   *int
}

// String renders the key for logs and map lookups.
func (k CacheKey) String() string {
	return fmt.Sprintf("%d/%s/%s/%s/%s", k.ContentID, k.Kind, k.Variant, optInt(k.Season), optInt(k.Episode))
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// CacheEntry is a persisted resolution.
type CacheEntry struct {
	Key        CacheKey
	VideoURL   string
	MediaType  MediaType
	ProviderID ProviderID
	ExpiresAt  time.Time
}

// Source is what a provider hands back on success.
type Source struct {
	URL       string
	MediaType MediaType
}

// NewSource builds a Source, deriving the media type from the URL.
func NewSource(url string) *Source {
	return &Source{URL: url, MediaType: DetectMediaType(url)}
}

// Result is the output of a resolution. A zero URL means no provider found
// anything, which is a normal outcome rather than an error.
type Result struct {
	URL               string
	MediaType         MediaType
	ProviderID        ProviderID
	FromCache         bool
	AttemptedProvider ProviderID
}

// Found reports whether the result carries a playable URL.
func (r *Result) Found() bool {
	return r != nil && r.URL != ""
}

// NotFound builds the soft-failure result for the attempted scope.
func NotFound(attempted ProviderID) *Result {
	return &Result{ProviderID: ProviderNone, AttemptedProvider: attempted}
}

type foundJSON struct {
	URL        string     `json:"url"`
	MediaType  MediaType  `json:"mediaType"`
	ProviderID ProviderID `json:"providerId"`
	FromCache  bool       `json:"fromCache"`
}

type notFoundJSON struct {
	URL               *string    `json:"url"`
	ProviderID        ProviderID `json:"providerId"`
	AttemptedProvider ProviderID `json:"attemptedProvider"`
}

// MarshalJSON emits the success or soft-failure shape.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.URL != "" {
		return json.Marshal(foundJSON{
			URL:        r.URL,
			MediaType:  r.MediaType,
			ProviderID: r.ProviderID,
			FromCache:  r.FromCache,
		})
	}
	return json.Marshal(notFoundJSON{
		ProviderID:        ProviderNone,
		AttemptedProvider: r.AttemptedProvider,
	})
}

// UnmarshalJSON accepts either shape.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL               *string    `json:"url"`
		MediaType         MediaType  `json:"mediaType"`
		ProviderID        ProviderID `json:"providerId"`
		FromCache         bool       `json:"fromCache"`
		AttemptedProvider ProviderID `json:"attemptedProvider"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result{
		MediaType:         raw.MediaType,
		ProviderID:        raw.ProviderID,
		FromCache:         raw.FromCache,
		AttemptedProvider: raw.AttemptedProvider,
	}
	if raw.URL != nil {
		r.URL = *raw.URL
	}
	return nil
}

// Metadata is what the lookup service knows about a title.
type Metadata struct {
	Title          string
	AlternateTitle string
	ExternalID     string
}

// Content is a catalog row.
type Content struct {
	ContentID     int64
	Kind          Kind
	ExternalID    string
	Title         string
	OriginalTitle string
	Overview      string
	PosterPath    string
	ReleaseDate   string
}

// Metadata projects the catalog row onto the lookup shape.
func (c Content) Metadata() *Metadata {
	return &Metadata{
		Title:          c.Title,
		AlternateTitle: c.OriginalTitle,
		ExternalID:     c.ExternalID,
	}
}

// CatalogEntry is one item scraped from a provider listing page.
type CatalogEntry struct {
	ExternalID int64
	Slug       string
	Title      string
}
