package safeurl

import (
	"fmt"
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp:// and other schemes for remote playlists and
// the Tvheadend base URL.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return (s == "http" || s == "https") && parsed.Host != ""
}

// BaseURL validates a server root such as http://192.168.1.2:9981 and
// returns it without trailing slash, query or fragment. A path prefix
// (reverse proxy mount) is kept.
func BaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !IsHTTPOrHTTPS(raw) {
		return "", fmt.Errorf("invalid server URL %q: need http:// or https://", Redact(raw))
	}
	u, _ := url.Parse(raw)
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return strings.TrimSuffix(u.String(), "/"), nil
}

// Redact hides userinfo and credential-looking query parameters so a URL can
// be logged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	if u.RawQuery != "" {
		q := u.Query()
		for _, k := range []string{"password", "pass", "token", "key"} {
			if q.Has(k) {
				q.Set(k, "***")
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
