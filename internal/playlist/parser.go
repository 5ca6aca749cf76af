package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

const maxLineSize = 1 << 20 // 1 MiB per line

const headerMarker = "EXTM3U"

var (
	// ErrNoHeader means the input ended without a line containing EXTM3U.
	ErrNoHeader = errors.New("playlist: no EXTM3U header found")
	// ErrIncompleteEntry means the input ended after metadata lines that were
	// never followed by an address line. Those lines are dropped.
	ErrIncompleteEntry = errors.New("playlist: trailing entry without address line")
)

// Parser reads an EXTM3U playlist and yields one Channel per entry in file
// order. It is single-pass; build a new Parser over the source to re-read it.
type Parser struct {
	sc     *bufio.Scanner
	header bool
	buf    []Line
	done   bool
	err    error

	incomplete []string
}

func NewParser(r io.Reader) *Parser {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	return &Parser{sc: sc}
}

// Next returns the next Channel. It returns false once the input is
// exhausted or a read error occurred; check Err and Warning afterwards.
func (p *Parser) Next() (Channel, bool) {
	if p.done {
		return Channel{}, false
	}
	for p.sc.Scan() {
		text := strings.TrimSpace(p.sc.Text())
		if text == "" {
			continue
		}
		// Everything up to and including the header is discarded.
		if !p.header {
			p.header = strings.Contains(text, headerMarker)
			continue
		}
		l := Classify(text)
		p.buf = append(p.buf, l)
		if l.Kind != KindAddress {
			continue
		}
		ch := reduce(p.buf)
		p.buf = p.buf[:0]
		return ch, true
	}
	p.done = true
	p.err = p.sc.Err()
	for _, l := range p.buf {
		p.incomplete = append(p.incomplete, l.Text)
	}
	p.buf = nil
	return Channel{}, false
}

// All adapts Next to a range-over-func sequence. The sequence shares the
// parser's position: iterating it twice does not restart the playlist.
func (p *Parser) All() iter.Seq[Channel] {
	return func(yield func(Channel) bool) {
		for {
			ch, ok := p.Next()
			if !ok || !yield(ch) {
				return
			}
		}
	}
}

// Err returns the first read error, if any. Malformed playlist content is
// never an error.
func (p *Parser) Err() error {
	return p.err
}

// HeaderSeen reports whether the EXTM3U marker has been read.
func (p *Parser) HeaderSeen() bool {
	return p.header
}

// Incomplete returns the lines of a trailing entry that had no address line.
// Only meaningful after Next returned false.
func (p *Parser) Incomplete() []string {
	return p.incomplete
}

// Warning reports ErrNoHeader or ErrIncompleteEntry once the input has been
// exhausted, nil otherwise.
func (p *Parser) Warning() error {
	if !p.done {
		return nil
	}
	if !p.header {
		return ErrNoHeader
	}
	if len(p.incomplete) > 0 {
		return fmt.Errorf("%w: %d line(s) dropped, first %q", ErrIncompleteEntry, len(p.incomplete), p.incomplete[0])
	}
	return nil
}

// reduce folds one buffered entry into a Channel. Later options overwrite
// earlier ones with the same key.
func reduce(lines []Line) Channel {
	var name, url, logo string
	extras := make(map[string]string)
	for _, l := range lines {
		switch l.Kind {
		case KindInfo:
			if l.Tag != tagInfo {
				continue
			}
			logo = l.TvgLogo
			name = l.Title
			extras[ExtraTvgID] = l.TvgID
			extras[ExtraTvgName] = l.TvgName
			extras[ExtraGroupTitle] = l.GroupTitle
		case KindOption:
			extras[l.Key] = l.Option
		case KindAddress:
			url = l.Text
		}
	}
	return Channel{Name: name, URL: url, Logo: logo, extras: extras}
}
