// Package httputil provides a security-hardened HTTP client and input sanitization utilities.
package httputil

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultUserAgent is sent when no override is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

const (
	defaultMaxBody      = 5 * 1024 * 1024
	defaultMaxRedirects = 10
)

// Headers are extra request headers, typically Referer and Accept.
type Headers map[string]string

// Options configures NewClient. Zero values fall back to defaults.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	MaxBodyBytes int64
	Fingerprint  bool
}

// Client is the fetch capability shared by every provider.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
}

// Page is a fully read response.
type Page struct {
	Status      int
	URL         string // final URL after redirects
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (p *Page) OK() bool {
	return p.Status >= 200 && p.Status < 300
}

// Text returns the body as a string.
func (p *Page) Text() string {
	return string(p.Body)
}

// IsJSON reports whether the response declared a JSON content type.
func (p *Page) IsJSON() bool {
	return strings.Contains(strings.ToLower(p.ContentType), "json")
}

// Document parses the body as HTML.
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.Text()))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// NewClient creates a hardened HTTP client with secure defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = defaultMaxRedirects
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}

	var transport http.RoundTripper = &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 5,
	}
	if opts.Fingerprint {
		transport = newFingerprintTransport(transport)
	}

	maxRedirects := opts.MaxRedirects
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
	}
}

// Get performs a GET request with standard browser-like headers. Non-2xx
// responses are returned as pages, not errors; callers decide.
func (c *Client) Get(ctx context.Context, rawURL string, headers Headers) (*Page, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &Page{
		Status:      resp.StatusCode,
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Head reports whether the resource answers a HEAD request with 2xx.
func (c *Client) Head(ctx context.Context, rawURL string, headers Headers) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL, headers)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers Headers) (*http.Response, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
