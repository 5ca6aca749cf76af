package tvheadend

import (
	"encoding/json"
	"strconv"

	"github.com/snapetech/m3u2tvh/internal/playlist"
)

// Mux is one row of the mux grid. Raw keeps the full record as decoded.
type Mux struct {
	UUID string
	Name string
	URL  string // iptv_url
	Raw  map[string]any
}

func newMux(raw map[string]any) Mux {
	return Mux{
		UUID: str(raw["uuid"]),
		Name: str(raw["name"]),
		URL:  str(raw["iptv_url"]),
		Raw:  raw,
	}
}

// Channel normalizes the mux into a playlist.Channel. Every raw field goes
// into extras, rendered as a string; iptv_icon becomes the logo.
func (m Mux) Channel() playlist.Channel {
	extras := make(map[string]string, len(m.Raw))
	for k, v := range m.Raw {
		if v == nil {
			continue
		}
		extras[k] = str(v)
	}
	return playlist.NewChannel(m.Name, m.URL, str(m.Raw["iptv_icon"]), extras)
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
