package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/snapetech/m3u2tvh/internal/httpclient"
)

// ServerInfo is the subset of /api/serverinfo we report.
type ServerInfo struct {
	Name       string `json:"name"`
	SWVersion  string `json:"sw_version"`
	APIVersion int    `json:"api_version"`
}

// CheckServer fetches /api/serverinfo from the Tvheadend at baseURL (already
// normalized, no trailing slash). Returns an error if the server is unreachable,
// rejects the credentials or does not answer with JSON.
func CheckServer(ctx context.Context, client *http.Client, baseURL, user, pass string) (ServerInfo, error) {
	var info ServerInfo
	if baseURL == "" {
		return info, fmt.Errorf("no Tvheadend URL configured")
	}
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/serverinfo", nil)
	if err != nil {
		return info, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpclient.UserAgent)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := client.Do(req)
	if err != nil {
		return info, fmt.Errorf("tvheadend unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return info, &httpclient.StatusError{Code: resp.StatusCode, Op: "/api/serverinfo"}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return info, fmt.Errorf("/api/serverinfo: decode response: %w", err)
	}
	return info, nil
}
