package httputil

import (
	"context"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFingerprintServer starts an HTTP/2 TLS server that records the remote
// address of every request.
func newFingerprintServer(t *testing.T) (*httptest.Server, *x509.CertPool, func() map[string]int) {
	t.Helper()
	var mu sync.Mutex
	remotes := make(map[string]int)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		remotes[r.RemoteAddr]++
		mu.Unlock()
		w.Write([]byte(r.Proto))
	}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return srv, pool, func() map[string]int {
		mu.Lock()
		defer mu.Unlock()
		out := make(map[string]int, len(remotes))
		for k, v := range remotes {
			out[k] = v
		}
		return out
	}
}

func TestFingerprintTransportReusesHTTP2Connection(t *testing.T) {
	srv, pool, remotes := newFingerprintServer(t)

	tr := newFingerprintTransport(http.DefaultTransport)
	tr.roots = pool
	client := &http.Client{Transport: tr}
	defer client.CloseIdleConnections()

	for range 5 {
		resp, err := client.Get(srv.URL + "/page")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "HTTP/2.0", string(body))
	}

	seen := remotes()
	require.Len(t, seen, 1, "all requests share one connection")
	for _, n := range seen {
		assert.Equal(t, 5, n)
	}

	client.CloseIdleConnections()
	tr.mu.Lock()
	assert.Empty(t, tr.conns)
	tr.mu.Unlock()
}

func TestFingerprintTransportHonoursContext(t *testing.T) {
	srv, pool, remotes := newFingerprintServer(t)

	tr := newFingerprintTransport(http.DefaultTransport)
	tr.roots = pool

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.Error(t, err)
	assert.Empty(t, remotes())
}

func TestFingerprintTransportPlainHTTPUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain"))
	}))
	defer srv.Close()

	tr := newFingerprintTransport(http.DefaultTransport)
	resp, err := (&http.Client{Transport: tr}).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "plain", string(body))
	assert.Empty(t, tr.conns)
}
