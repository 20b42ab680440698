package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"

	"vidsource/internal/config"
	"vidsource/internal/httputil"
	"vidsource/internal/logging"
	"vidsource/internal/media"
)

// Fetcher is the subset of httputil.Client the TMDB client needs.
type Fetcher interface {
	Get(ctx context.Context, url string, headers httputil.Headers) (*httputil.Page, error)
}

// TMDB queries The Movie Database details endpoint.
type TMDB struct {
	client     Fetcher
	baseURL    string
	token      string
	apiKey     string
	language   string
	retryDelay time.Duration
	log        *log.Logger
}

// NewTMDB builds a TMDB client from config.
func NewTMDB(client Fetcher, cfg config.TMDBConfig, logger *log.Logger) *TMDB {
	return &TMDB{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		language:   cfg.Language,
		retryDelay: 300 * time.Millisecond,
		log:        logging.Component(logger, "tmdb"),
	}
}

// Configured reports whether credentials are present.
func (t *TMDB) Configured() bool {
	return t.token != "" || t.apiKey != ""
}

type tmdbDetails struct {
	Title         string `json:"title"`
	Name          string `json:"name"`
	OriginalTitle string `json:"original_title"`
	OriginalName  string `json:"original_name"`
	Overview      string `json:"overview"`
	PosterPath    string `json:"poster_path"`
	ReleaseDate   string `json:"release_date"`
	FirstAirDate  string `json:"first_air_date"`
	IMDBID        string `json:"imdb_id"`
	ExternalIDs   struct {
		IMDBID string `json:"imdb_id"`
	} `json:"external_ids"`
}

// retryableError marks responses worth another attempt (429, 5xx).
type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("tmdb returned status %d", e.status)
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Details fetches the full record for id.
func (t *TMDB) Details(ctx context.Context, id int64, kind media.Kind) (*media.Content, error) {
	if !t.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint, err := httputil.SetQuery(
		httputil.BuildURL(t.baseURL, kind.TMDBType(), strconv.FormatInt(id, 10)),
		t.query(),
	)
	if err != nil {
		return nil, fmt.Errorf("building tmdb url: %w", err)
	}

	headers := httputil.Headers{"Accept": "application/json"}
	if t.token != "" {
		headers["Authorization"] = "Bearer " + t.token
	}

	var page *httputil.Page
	err = retry.Do(
		func() error {
			p, err := t.client.Get(ctx, endpoint, headers)
			if err != nil {
				return err
			}
			if p.Status == http.StatusTooManyRequests || p.Status >= 500 {
				return &retryableError{status: p.Status}
			}
			page = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(t.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.log.Debug("retrying", "id", id, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching tmdb %s/%d: %w", kind.TMDBType(), id, err)
	}

	switch {
	case page.Status == http.StatusNotFound:
		return nil, fmt.Errorf("tmdb %s/%d: %w", kind.TMDBType(), id, ErrNotFound)
	case !page.OK():
		return nil, fmt.Errorf("tmdb %s/%d: unexpected status %d", kind.TMDBType(), id, page.Status)
	}

	var d tmdbDetails
	if err := json.Unmarshal(page.Body, &d); err != nil {
		return nil, fmt.Errorf("decoding tmdb response: %w", err)
	}

	return d.content(id, kind), nil
}

func (t *TMDB) query() map[string]string {
	q := map[string]string{
		"language":           t.language,
		"append_to_response": "external_ids",
	}
	if t.token == "" {
		q["api_key"] = t.apiKey
	}
	return q
}

func (d tmdbDetails) content(id int64, kind media.Kind) *media.Content {
	c := &media.Content{
		ContentID:     id,
		Kind:          kind,
		Title:         firstNonEmpty(d.Title, d.Name),
		OriginalTitle: firstNonEmpty(d.OriginalTitle, d.OriginalName),
		Overview:      d.Overview,
		PosterPath:    d.PosterPath,
		ReleaseDate:   firstNonEmpty(d.ReleaseDate, d.FirstAirDate),
		ExternalID:    firstNonEmpty(d.IMDBID, d.ExternalIDs.IMDBID),
	}
	return c
}

// GetTitle implements Lookup.
func (t *TMDB) GetTitle(ctx context.Context, id int64, kind media.Kind) (*media.Metadata, error) {
	c, err := t.Details(ctx, id, kind)
	if err != nil {
		return nil, err
	}
	return c.Metadata(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
