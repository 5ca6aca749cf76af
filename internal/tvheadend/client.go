// Package tvheadend is a small client for the Tvheadend JSON API: it lists
// mpegts networks and IPTV muxes and creates muxes from playlist channels.
package tvheadend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/snapetech/m3u2tvh/internal/httpclient"
	"github.com/snapetech/m3u2tvh/internal/metrics"
	"github.com/snapetech/m3u2tvh/internal/playlist"
	"github.com/snapetech/m3u2tvh/internal/safeurl"
)

const (
	pathIdnodeLoad = "/api/idnode/load"
	pathMuxCreate  = "/api/mpegts/network/mux_create"
	pathMuxGrid    = "/api/mpegts/mux/grid"
)

const (
	DefaultInterface = "eth0"
	networkClass     = "mpegts_network"
	// gridLimit asks the grid endpoint for every row in one page.
	gridLimit = 999999999
	maxBody   = 64 << 20
)

// ErrNoNetwork means Tvheadend returned no mpegts network, so a mux has
// nowhere to go. CreateMux returns it without calling mux_create.
var ErrNoNetwork = errors.New("tvheadend: no mpegts network configured")

// NoNetworkHint is the operator-facing explanation for ErrNoNetwork.
const NoNetworkHint = `Make sure that there exists a network in tvheadend. It should be of IPTV type and the number of maximum input streams should be low. Tvheadend will try to subscribe to all the channels that get added; if this number is too high, it could cause your tvheadend instance to stop responding.`

// Config is everything a Client needs. Only BaseURL is required.
type Config struct {
	BaseURL   string // e.g. http://192.168.1.2:9981
	User      string // empty = no authentication
	Password  string
	Interface string // iptv_interface of created muxes; default eth0

	HTTPClient *http.Client // nil = httpclient.Default()
	// RateLimit caps API requests per second; 0 = unlimited.
	RateLimit float64
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Client talks to one Tvheadend instance. It keeps no state between calls:
// CreateMux resolves the network on every call.
type Client struct {
	base    string
	user    string
	pass    string
	iface   string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(cfg Config) (*Client, error) {
	base, err := safeurl.BaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:    base,
		user:    cfg.User,
		pass:    cfg.Password,
		iface:   cfg.Interface,
		http:    cfg.HTTPClient,
		log:     cfg.Logger.With().Str("component", "tvheadend").Logger(),
		metrics: cfg.Metrics,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if c.iface == "" {
		c.iface = DefaultInterface
	}
	if c.http == nil {
		c.http = httpclient.Default()
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c, nil
}

// BaseURL returns the normalized server root.
func (c *Client) BaseURL() string {
	return c.base
}

// Network is one entry of the idnode/load enumeration.
type Network struct {
	Key string `json:"key"` // network UUID
	Val string `json:"val"` // display name
}

type entries[T any] struct {
	Entries []T `json:"entries"`
	Total   int `json:"total,omitempty"`
}

// ListNetworks enumerates the configured mpegts networks.
func (c *Client) ListNetworks(ctx context.Context) ([]Network, error) {
	form := url.Values{
		"class": {networkClass},
		"enum":  {"1"},
		"query": {""},
	}
	var res entries[Network]
	if err := c.post(ctx, pathIdnodeLoad, form, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// MuxConf is the conf payload of mux_create.
type MuxConf struct {
	Enabled      int    `json:"enabled"`
	SkipInitScan int    `json:"skipinitscan"`
	MuxName      string `json:"iptv_muxname"`
	ServiceName  string `json:"iptv_sname"`
	URL          string `json:"iptv_url"`
	Interface    string `json:"iptv_interface"`
	Icon         string `json:"iptv_icon"`
	Charset      string `json:"charset"`
}

// MuxConfig builds the mux_create payload for ch.
func (c *Client) MuxConfig(ch playlist.Channel) MuxConf {
	return MuxConf{
		Enabled:      1,
		SkipInitScan: 1,
		MuxName:      ch.Name,
		ServiceName:  ch.Name,
		URL:          ch.URL,
		Interface:    c.iface,
		Icon:         ch.Logo,
		Charset:      "AUTO",
	}
}

// CreateMux registers ch as an IPTV mux on the first network Tvheadend
// reports. It returns the new mux UUID when the server sends one. With no
// network it returns ErrNoNetwork and creates nothing. There is no retry.
func (c *Client) CreateMux(ctx context.Context, ch playlist.Channel) (string, error) {
	networks, err := c.ListNetworks(ctx)
	if err != nil {
		return "", err
	}
	if len(networks) == 0 {
		return "", ErrNoNetwork
	}
	network := networks[0].Key
	if _, err := uuid.Parse(network); err != nil {
		c.log.Warn().Str("network", network).Msg("first network key is not a UUID; using it anyway")
	}
	conf, err := json.Marshal(c.MuxConfig(ch))
	if err != nil {
		return "", err
	}
	form := url.Values{
		"uuid": {network},
		"conf": {string(conf)},
	}
	var res struct {
		UUID string `json:"uuid"`
	}
	if err := c.post(ctx, pathMuxCreate, form, &res); err != nil {
		return "", err
	}
	c.log.Debug().Str("network", network).Str("mux", res.UUID).Str("name", ch.Name).Msg("mux created")
	return res.UUID, nil
}

// ListMuxes returns every mux sorted by name, ascending.
func (c *Client) ListMuxes(ctx context.Context) ([]Mux, error) {
	form := url.Values{
		"start": {"0"},
		"limit": {fmt.Sprint(gridLimit)},
		"sort":  {"name"},
		"dir":   {"ASC"},
	}
	var res entries[map[string]any]
	if err := c.post(ctx, pathMuxGrid, form, &res); err != nil {
		return nil, err
	}
	out := make([]Mux, 0, len(res.Entries))
	for _, raw := range res.Entries {
		out = append(out, newMux(raw))
	}
	return out, nil
}

// post sends a form-encoded POST and decodes the JSON reply into out.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpclient.UserAgent)
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveRequest(path, start)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &httpclient.StatusError{Code: resp.StatusCode, Op: path}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}
	c.log.Trace().Str("path", path).Int("status", resp.StatusCode).Int("body_len", len(body)).Msg("api response")
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
