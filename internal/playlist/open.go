package playlist

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/ulikunitz/xz"

	"github.com/snapetech/m3u2tvh/internal/httpclient"
	"github.com/snapetech/m3u2tvh/internal/safeurl"
)

// Open returns the playlist text behind src: "-" for stdin, an http(s) URL,
// or a local path. Compressed files (.br, .gz, .xz) and compressed HTTP
// bodies (Content-Encoding br or gzip) are decoded. If client is nil,
// httpclient.Default() is used.
func Open(ctx context.Context, src string, client *http.Client) (io.ReadCloser, error) {
	if src == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	if strings.Contains(src, "://") {
		if !safeurl.IsHTTPOrHTTPS(src) {
			return nil, fmt.Errorf("playlist %s: only http and https URLs are supported", safeurl.Redact(src))
		}
		return fetch(ctx, src, client)
	}
	f, err := os.Open(filepath.Clean(src))
	if err != nil {
		return nil, err
	}
	rc, err := decode(strings.ToLower(filepath.Ext(src)), f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("playlist %s: %w", src, err)
	}
	return rc, nil
}

func fetch(ctx context.Context, src string, client *http.Client) (io.ReadCloser, error) {
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	// Setting Accept-Encoding turns off net/http's transparent gzip, so both
	// encodings are handled in decode.
	req.Header.Set("Accept-Encoding", "br, gzip")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &httpclient.StatusError{Code: resp.StatusCode, Op: safeurl.Redact(src)}
	}
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var ext string
	switch enc {
	case "", "identity":
	case "br":
		ext = ".br"
	case "gzip", "x-gzip":
		ext = ".gz"
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("playlist %s: unsupported Content-Encoding %q", safeurl.Redact(src), enc)
	}
	rc, err := decode(ext, resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("playlist %s: %w", safeurl.Redact(src), err)
	}
	return rc, nil
}

// decode wraps rc according to a compression extension. The returned Close
// closes rc.
func decode(ext string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch ext {
	case ".br":
		return &decoded{Reader: brotli.NewReader(rc), closers: []io.Closer{rc}}, nil
	case ".gz":
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &decoded{Reader: gz, closers: []io.Closer{gz, rc}}, nil
	case ".xz":
		xr, err := xz.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return &decoded{Reader: xr, closers: []io.Closer{rc}}, nil
	}
	return rc, nil
}

type decoded struct {
	io.Reader
	closers []io.Closer
}

func (d *decoded) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
