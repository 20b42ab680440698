package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsource/internal/config"
	"vidsource/internal/httputil"
	"vidsource/internal/media"
	"vidsource/internal/provider"
	"vidsource/internal/store"
)

type titleLookup map[int64]string

func (l titleLookup) GetTitle(_ context.Context, id int64, _ media.Kind) (*media.Metadata, error) {
	return &media.Metadata{Title: l[id]}, nil
}

func TestEndToEndMovieThenCache(t *testing.T) {
	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/filme/horizonte-negro-42.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Horizonte Negro</h1><iframe src="/player/filme/42"></iframe></body></html>`))
	})
	mux.HandleFunc("/player/filme/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script>player.setup({file: "https://cdn.example/hn42.mp4"})</script>`))
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := httputil.NewClient(httputil.Options{Timeout: 5 * time.Second})
	cfg := config.Default()
	cfg.Browse.BaseURL = srv.URL
	cfg.Browse.CDNHosts = []string{"cdn.example"}
	cfg.Embed.BaseURL = srv.URL
	cfg.ServerList.BaseURL = srv.URL

	providers := []provider.Provider{
		provider.NewBrowse(client, titleLookup{42: "Horizonte Negro"}, nil, cfg.Browse, nil),
		provider.NewEmbed(client, cfg.Embed, nil),
		provider.NewServerList(client, cfg.ServerList, cfg.Embed, nil),
	}
	r := New(store.NewMemory(), providers, WithTTL(media.ProviderBrowse, cfg.Browse.TTL))

	req := media.Request{ContentID: 42, Kind: media.Movie, Variant: "subtitled"}

	res, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	got, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://cdn.example/hn42.mp4","mediaType":"mp4","providerId":"A","fromCache":false}`, string(got))

	before := fetches.Load()
	assert.Equal(t, int32(2), before)

	res, err = r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "https://cdn.example/hn42.mp4", res.URL)
	assert.Equal(t, before, fetches.Load(), "cache hit makes no fetches")
}

func TestEndToEndValidationMakesNoFetches(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
	}))
	defer srv.Close()

	client := httputil.NewClient(httputil.Options{Timeout: 5 * time.Second})
	cfg := config.Default()
	cfg.Embed.BaseURL = srv.URL
	r := New(store.NewMemory(), []provider.Provider{provider.NewEmbed(client, cfg.Embed, nil)})

	season := 1
	_, err := r.Resolve(context.Background(), media.Request{ContentID: 9, Kind: media.Series, Season: &season})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, fetches.Load())
}
