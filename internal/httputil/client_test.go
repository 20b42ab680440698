package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetSendsHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(Options{UserAgent: "test-agent"})
	page, err := c.Get(context.Background(), srv.URL+"/x", Headers{"Referer": "https://ref.example/"})
	require.NoError(t, err)

	assert.True(t, page.OK())
	assert.True(t, page.IsJSON())
	assert.Equal(t, `{"ok":true}`, page.Text())
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "https://ref.example/", gotReferer)
}

func TestClientGetNon2xxIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	page, err := NewClient(Options{}).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.Status)
	assert.False(t, page.OK())
}

func TestClientBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	page, err := NewClient(Options{MaxBodyBytes: 10}).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Len(t, page.Body, 10)
}

func TestClientFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("done"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := NewClient(Options{}).Get(context.Background(), srv.URL+"/start", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", page.Text())
	assert.Equal(t, srv.URL+"/end", page.URL)
}

func TestClientRedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer srv.Close()

	_, err := NewClient(Options{MaxRedirects: 3}).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
}

func TestClientHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/missing.mp4" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(Options{})
	ok, err := c.Head(context.Background(), srv.URL+"/video.mp4", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Head(context.Background(), srv.URL+"/missing.mp4", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientRejectsInvalidURL(t *testing.T) {
	_, err := NewClient(Options{}).Get(context.Background(), "javascript:alert(1)", nil)
	require.Error(t, err)
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(Options{}).Get(ctx, srv.URL, nil)
	require.Error(t, err)
}
