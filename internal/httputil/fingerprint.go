package httputil

import (
	"bufio"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// fingerprintTransport presents a Chrome TLS ClientHello on HTTPS requests.
// Some embed hosts sit behind bot protection that rejects Go's default
// handshake. Plain HTTP goes through the fallback transport.
//
// HTTP/2 connections are kept per host and reused while they accept new
// streams. HTTP/1.1 connections serve one request and close with the body.
type fingerprintTransport struct {
	dialer   *net.Dialer
	h2       *http2.Transport
	fallback http.RoundTripper
	roots    *x509.CertPool // nil uses the system pool

	mu    sync.Mutex
	conns map[string]*http2.ClientConn
}

func newFingerprintTransport(fallback http.RoundTripper) *fingerprintTransport {
	return &fingerprintTransport{
		dialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 60 * time.Second,
		},
		h2:       &http2.Transport{IdleConnTimeout: 90 * time.Second},
		fallback: fallback,
		conns:    make(map[string]*http2.ClientConn),
	}
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.fallback.RoundTrip(req)
	}

	addr := req.URL.Host
	if !strings.Contains(addr, ":") {
		addr += ":443"
	}

	if cc := t.cached(addr); cc != nil {
		resp, err := cc.RoundTrip(req)
		if err == nil || req.Body != nil {
			return resp, err
		}
		// The connection died between the check and the request; redial.
		t.forget(addr, cc)
	}

	conn, err := t.dialer.DialContext(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	uconn := utls.UClient(conn, &utls.Config{
		ServerName: req.URL.Hostname(),
		RootCAs:    t.roots,
	}, utls.HelloChrome_120)
	if err := uconn.HandshakeContext(req.Context()); err != nil {
		conn.Close()
		return nil, err
	}

	if uconn.ConnectionState().NegotiatedProtocol == "h2" {
		cc, err := t.h2.NewClientConn(uconn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		t.store(addr, cc)
		return cc.RoundTrip(req)
	}

	if err := req.Write(uconn); err != nil {
		conn.Close()
		return nil, err
	}
	resp, err := http.ReadResponse(bufio.NewReader(uconn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp.Body = &connCloser{ReadCloser: resp.Body, conn: conn}
	return resp, nil
}

func (t *fingerprintTransport) cached(addr string) *http2.ClientConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	cc := t.conns[addr]
	if cc == nil {
		return nil
	}
	if !cc.CanTakeNewRequest() {
		delete(t.conns, addr)
		return nil
	}
	return cc
}

func (t *fingerprintTransport) store(addr string, cc *http2.ClientConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A replaced connection closes itself once idle.
	t.conns[addr] = cc
}

func (t *fingerprintTransport) forget(addr string, cc *http2.ClientConn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[addr] == cc {
		delete(t.conns, addr)
	}
	cc.Close()
}

// CloseIdleConnections closes every cached HTTP/2 connection. http.Client
// forwards its own CloseIdleConnections here.
func (t *fingerprintTransport) CloseIdleConnections() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for addr, cc := range t.conns {
		cc.Close()
		delete(t.conns, addr)
	}
	if c, ok := t.fallback.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	c.ReadCloser.Close()
	return c.conn.Close()
}
