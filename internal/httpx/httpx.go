package httpx

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
const DefaultTorProxyURL = "socks5://127.0.0.1:9050"
const DefaultTimeout = 30 * time.Second

// Doer lets us accept *http.Client or a test double.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig is the transport side of the [relay] and [scan] settings.
type ClientConfig struct {
	Timeout   time.Duration
	UserAgent string

	Tor         bool
	TorProxyURL string

	// RPS caps requests per second across catalog fetches and probes.
	RPS float64
}

// NewClient builds the Doer shared by the catalog loader and the prober.
// Requests without a User-Agent get cfg.UserAgent. With Tor enabled every
// connection is dialed through the SOCKS5 proxy and environment proxies are
// ignored.
func NewClient(cfg ClientConfig) (Doer, error) {
	hc, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewLimitedClient(hc, cfg.RPS, 1), nil
}

func newHTTPClient(cfg ClientConfig) (*http.Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if cfg.Tor {
		dial, err := torDialer(cfg.TorProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dial
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: userAgentTransport{next: transport, userAgent: cfg.UserAgent},
	}, nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func torDialer(proxyURL string) (dialFunc, error) {
	if proxyURL == "" {
		proxyURL = DefaultTorProxyURL
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse tor proxy url")
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, errors.Wrapf(err, "tor proxy %s", u.Redacted())
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.next.RoundTrip(req)
}

func NewRequest(ctx context.Context, method, rawURL string, body io.Reader, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return req, nil
}
