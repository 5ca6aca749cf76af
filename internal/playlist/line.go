package playlist

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind is the classification of a line that follows the #EXTM3U header.
type Kind int

const (
	// KindAddress is anything that is not a recognised metadata line. It ends
	// the current entry and becomes the channel URL.
	KindAddress Kind = iota
	// KindInfo is an #EXT<tag>:<int> line carrying tvg-ID, tvg-name, tvg-logo
	// and group-title (in that order) followed by ",<display name>".
	KindInfo
	// KindOption is an #EXTVLCOPT:<int> line carrying one key=value pair.
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindOption:
		return "option"
	default:
		return "address"
	}
}

const (
	tagInfo   = "INF"
	tagOption = "VLCOPT"
)

// Line is a classified playlist line.
type Line struct {
	Kind  Kind
	Text  string // trimmed source text
	Tag   string // "INF", "VLCOPT", ... ; empty for address lines
	Value string // integer after the colon, as written

	// KindInfo
	TvgID      string
	TvgName    string
	TvgLogo    string
	GroupTitle string
	Title      string

	// KindOption
	Key    string
	Option string
}

// Classify tokenizes one trimmed line. Attribute names are matched exactly
// and must appear in the fixed order; a line that deviates (tvg-id in lower
// case, a missing attribute, tabs as separators) is not metadata and is
// returned as KindAddress. Callers rely on that: such a line ends the entry.
func Classify(text string) Line {
	addr := Line{Kind: KindAddress, Text: text}
	c := cursor{s: text}
	if !c.literal("#EXT") {
		return addr
	}
	tag := c.word()
	if tag == "" || !c.literal(":") {
		return addr
	}
	value := c.integer()
	if value == "" || c.spaces() == 0 {
		return addr
	}
	body := c
	if tag == tagOption {
		if l, ok := parseOption(body); ok {
			l.Text, l.Tag, l.Value = text, tag, value
			return l
		}
		return addr
	}
	if l, ok := parseInfo(body); ok {
		l.Text, l.Tag, l.Value = text, tag, value
		return l
	}
	return addr
}

func parseInfo(c cursor) (Line, bool) {
	l := Line{Kind: KindInfo}
	var ok bool
	if l.TvgID, ok = c.attr("tvg-ID"); !ok || c.spaces() == 0 {
		return Line{}, false
	}
	if l.TvgName, ok = c.attr("tvg-name"); !ok || c.spaces() == 0 {
		return Line{}, false
	}
	if l.TvgLogo, ok = c.attr("tvg-logo"); !ok || c.spaces() == 0 {
		return Line{}, false
	}
	if l.GroupTitle, ok = c.attr("group-title"); !ok {
		return Line{}, false
	}
	c.spaces()
	if !c.literal(",") {
		return Line{}, false
	}
	c.spaces()
	// The display name stops at the next comma; anything after it is ignored.
	rest := c.rest()
	if i := strings.IndexByte(rest, ','); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return Line{}, false
	}
	l.Title = rest
	return l, true
}

func parseOption(c cursor) (Line, bool) {
	key, value, found := strings.Cut(c.rest(), "=")
	if !found || key == "" || strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return Line{}, false
	}
	return Line{Kind: KindOption, Key: key, Option: value}, true
}

// cursor walks a line left to right. Methods that fail leave the position
// unchanged.
type cursor struct {
	s string
	i int
}

func (c *cursor) literal(p string) bool {
	if !strings.HasPrefix(c.s[c.i:], p) {
		return false
	}
	c.i += len(p)
	return true
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// word consumes one or more letters, digits or underscores.
func (c *cursor) word() string {
	start := c.i
	for c.i < len(c.s) {
		r, n := utf8.DecodeRuneInString(c.s[c.i:])
		if !isWord(r) {
			break
		}
		c.i += n
	}
	return c.s[start:c.i]
}

// integer consumes an optional minus sign and one or more digits.
func (c *cursor) integer() string {
	start := c.i
	if c.i < len(c.s) && c.s[c.i] == '-' {
		c.i++
	}
	digits := c.i
	for c.i < len(c.s) {
		r, n := utf8.DecodeRuneInString(c.s[c.i:])
		if !unicode.IsDigit(r) {
			break
		}
		c.i += n
	}
	if c.i == digits {
		c.i = start
		return ""
	}
	return c.s[start:c.i]
}

// spaces consumes ASCII spaces and returns how many.
func (c *cursor) spaces() int {
	start := c.i
	for c.i < len(c.s) && c.s[c.i] == ' ' {
		c.i++
	}
	return c.i - start
}

// attr consumes name="value" and returns value. Quotes are not escaped.
func (c *cursor) attr(name string) (string, bool) {
	start := c.i
	if !c.literal(name + `="`) {
		return "", false
	}
	end := strings.IndexByte(c.s[c.i:], '"')
	if end < 0 {
		c.i = start
		return "", false
	}
	v := c.s[c.i : c.i+end]
	c.i += end + 1
	return v, true
}

func (c *cursor) rest() string {
	return c.s[c.i:]
}
