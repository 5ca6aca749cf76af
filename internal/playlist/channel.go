// Package playlist parses EXTM3U playlists into Channel records.
package playlist

import (
	"encoding/json"
	"maps"
)

// Well-known extras keys filled from an #EXTINF line.
const (
	ExtraTvgID      = "tvg-ID"
	ExtraTvgName    = "tvg-name"
	ExtraGroupTitle = "group-title"
)

// Channel is one playlist entry. It is a read-only value: the extras map is
// private and only handed out as a copy.
type Channel struct {
	Name string // display name after the comma of #EXTINF
	URL  string // address line; dedup key for imports
	Logo string // tvg-logo, may be empty

	extras map[string]string
}

// NewChannel builds a Channel. extras is copied.
func NewChannel(name, url, logo string, extras map[string]string) Channel {
	return Channel{Name: name, URL: url, Logo: logo, extras: maps.Clone(extras)}
}

// Extras returns a copy of the auxiliary attributes (tvg-ID, tvg-name,
// group-title and any #EXTVLCOPT options). Never nil.
func (c Channel) Extras() map[string]string {
	out := make(map[string]string, len(c.extras))
	maps.Copy(out, c.extras)
	return out
}

// Extra returns one auxiliary attribute.
func (c Channel) Extra(key string) (string, bool) {
	v, ok := c.extras[key]
	return v, ok
}

// Equal reports whether c and o carry the same fields and extras.
func (c Channel) Equal(o Channel) bool {
	return c.Name == o.Name && c.URL == o.URL && c.Logo == o.Logo && maps.Equal(c.extras, o.extras)
}

type channelJSON struct {
	Name   string            `json:"name"`
	URL    string            `json:"url"`
	Logo   string            `json:"logo,omitempty"`
	Extras map[string]string `json:"extras,omitempty"`
}

func (c Channel) MarshalJSON() ([]byte, error) {
	return json.Marshal(channelJSON{Name: c.Name, URL: c.URL, Logo: c.Logo, Extras: c.extras})
}
