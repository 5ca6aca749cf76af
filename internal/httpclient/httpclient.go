package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 4
)

const UserAgent = "m3u2tvh/1.0"

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
}

// Default returns the shared client used when a caller passes nil.
func Default() *http.Client {
	return defaultClient
}

// Options tune a client built by New.
type Options struct {
	Timeout time.Duration // 0 = DefaultTimeout
	// ProxyURL routes every request through a proxy: socks5://[user:pass@]host:port
	// (also socks5h) or http(s)://host:port. Empty = HTTP_PROXY/HTTPS_PROXY env.
	ProxyURL string
}

// New returns a client with its own transport. One client is shared by the
// Tvheadend API calls and remote playlist downloads of a run.
func New(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := newTransport()
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("proxy url: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			t.Proxy = http.ProxyURL(u)
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("proxy dialer: %w", err)
			}
			dc, ok := d.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("proxy dialer missing context")
			}
			t.Proxy = nil
			t.DialContext = dc.DialContext
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}
	return &http.Client{Timeout: timeout, Transport: t}, nil
}

// StatusError is returned for a response outside 2xx.
type StatusError struct {
	Code int
	Op   string // endpoint path or redacted URL
}

func (e *StatusError) Error() string {
	if e.Unauthorized() {
		return fmt.Sprintf("%s: HTTP %d (check user/password)", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status: HTTP %d", e.Op, e.Code)
}

// Unauthorized reports an authentication or permission failure.
func (e *StatusError) Unauthorized() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}
