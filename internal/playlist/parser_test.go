package playlist

import (
	"errors"
	"maps"
	"strings"
	"testing"
)

func parseAll(t *testing.T, m3u string) ([]Channel, *Parser) {
	t.Helper()
	p := NewParser(strings.NewReader(m3u))
	var out []Channel
	for ch := range p.All() {
		out = append(out, ch)
	}
	if err := p.Err(); err != nil {
		t.Fatal(err)
	}
	return out, p
}

func TestParser_example(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1 tvg-ID="1" tvg-name="News" tvg-logo="http://x/l.png" group-title="News",Channel One
http://stream/one.ts
`
	got, p := parseAll(t, m3u)
	if len(got) != 1 {
		t.Fatalf("got %d channels, want 1", len(got))
	}
	want := NewChannel("Channel One", "http://stream/one.ts", "http://x/l.png", map[string]string{
		"tvg-ID": "1", "tvg-name": "News", "group-title": "News",
	})
	if !got[0].Equal(want) {
		t.Errorf("channel = %+v extras=%v, want %+v extras=%v", got[0], got[0].Extras(), want, want.Extras())
	}
	if err := p.Warning(); err != nil {
		t.Errorf("Warning() = %v, want nil", err)
	}
}

func TestParser_emptyInput(t *testing.T) {
	got, p := parseAll(t, "")
	if len(got) != 0 {
		t.Errorf("expected no channels; got %d", len(got))
	}
	if !errors.Is(p.Warning(), ErrNoHeader) {
		t.Errorf("Warning() = %v, want ErrNoHeader", p.Warning())
	}
}

func TestParser_countEqualsAddressLines(t *testing.T) {
	m3u := `#EXTM3U

#EXTINF:-1 tvg-ID="a" tvg-name="A" tvg-logo="" group-title="G",Channel A
http://example.com/a
#EXTINF:-1 tvg-ID="b" tvg-name="B" tvg-logo="" group-title="G",Channel B
#EXTVLCOPT:0 http-user-agent=Kodi
http://example.com/b

http://example.com/bare
   #EXTINF:-1 tvg-ID="c" tvg-name="C" tvg-logo="" group-title="G",Channel C
	http://example.com/c
`
	got, _ := parseAll(t, m3u)
	wantURLs := []string{"http://example.com/a", "http://example.com/b", "http://example.com/bare", "http://example.com/c"}
	if len(got) != len(wantURLs) {
		t.Fatalf("got %d channels, want %d", len(got), len(wantURLs))
	}
	wantNames := []string{"Channel A", "Channel B", "", "Channel C"}
	for i := range wantURLs {
		if got[i].URL != wantURLs[i] || got[i].Name != wantNames[i] {
			t.Errorf("channel[%d] = Name=%q URL=%q; want %q / %q", i, got[i].Name, got[i].URL, wantNames[i], wantURLs[i])
		}
	}
	if len(got[2].Extras()) != 0 {
		t.Errorf("bare URL entry extras = %v, want empty", got[2].Extras())
	}
}

func TestParser_roundTripsInfoValues(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1 tvg-ID="bbc.one&amp;uk" tvg-name="BBC One é" tvg-logo="https://cdn.example/logo%20x.png?a=1" group-title="UK | Main",BBC One HD
udp://@239.0.0.1:1234
`
	got, _ := parseAll(t, m3u)
	if len(got) != 1 {
		t.Fatalf("got %d channels", len(got))
	}
	ch := got[0]
	if ch.Name != "BBC One HD" || ch.Logo != "https://cdn.example/logo%20x.png?a=1" {
		t.Errorf("Name/Logo = %q / %q", ch.Name, ch.Logo)
	}
	for k, want := range map[string]string{
		ExtraTvgID:      "bbc.one&amp;uk",
		ExtraTvgName:    `BBC One é`,
		ExtraGroupTitle: "UK | Main",
	} {
		if v, _ := ch.Extra(k); v != want {
			t.Errorf("extras[%s] = %q, want %q", k, v, want)
		}
	}
	if ch.URL != "udp://@239.0.0.1:1234" {
		t.Errorf("URL = %q", ch.URL)
	}
}

func TestParser_idempotent(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1 tvg-ID="1" tvg-name="One" tvg-logo="l1" group-title="G",One
#EXTVLCOPT:0 foo=bar
http://s/1
#EXTINF:-1 tvg-ID="2" tvg-name="Two" tvg-logo="l2" group-title="G",Two
http://s/2
`
	first, _ := parseAll(t, m3u)
	second, _ := parseAll(t, m3u)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("channel[%d] differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestParser_options(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1 tvg-ID="1" tvg-name="One" tvg-logo="" group-title="G",One
#EXTVLCOPT:0 foo=bar
#EXTVLCOPT:0 ua=first
#EXTVLCOPT:0 ua=second=with=equals
http://s/1
#EXTVLCOPT:0 foo=only
http://s/2
`
	got, _ := parseAll(t, m3u)
	if len(got) != 2 {
		t.Fatalf("got %d channels, want 2", len(got))
	}
	if v, _ := got[0].Extra("foo"); v != "bar" {
		t.Errorf("extras[foo] = %q, want bar", v)
	}
	if v, _ := got[0].Extra("ua"); v != "second=with=equals" {
		t.Errorf("extras[ua] = %q, want later value", v)
	}
	// Options without #EXTINF still attach to the following address line.
	if v, _ := got[1].Extra("foo"); v != "only" || got[1].Name != "" {
		t.Errorf("second channel = %+v extras=%v", got[1], got[1].Extras())
	}
	if _, ok := got[1].Extra(ExtraTvgID); ok {
		t.Error("second channel should have no tvg-ID")
	}
}

func TestParser_preambleIgnored(t *testing.T) {
	m3u := `#EXTINF:-1 tvg-ID="x" tvg-name="X" tvg-logo="" group-title="G",Preamble
http://preamble/one
# generated by some tool
#EXTM3U url-tvg="http://epg.example/guide.xml"
#EXTINF:-1 tvg-ID="1" tvg-name="One" tvg-logo="" group-title="G",One
http://s/1
`
	got, _ := parseAll(t, m3u)
	if len(got) != 1 {
		t.Fatalf("got %d channels, want 1", len(got))
	}
	if got[0].Name != "One" || got[0].URL != "http://s/1" {
		t.Errorf("channel = %+v", got[0])
	}
	for _, ch := range got {
		if v, _ := ch.Extra(ExtraTvgID); v == "x" || strings.Contains(ch.URL, "preamble") {
			t.Errorf("preamble leaked into %+v", ch)
		}
	}
}

func TestParser_noHeader(t *testing.T) {
	m3u := `#EXTINF:-1 tvg-ID="1" tvg-name="One" tvg-logo="" group-title="G",One
http://s/1
`
	got, p := parseAll(t, m3u)
	if len(got) != 0 {
		t.Errorf("got %d channels without header, want 0", len(got))
	}
	if p.HeaderSeen() {
		t.Error("HeaderSeen() = true")
	}
	if !errors.Is(p.Warning(), ErrNoHeader) {
		t.Errorf("Warning() = %v, want ErrNoHeader", p.Warning())
	}
}

func TestParser_trailingEntryDropped(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1 tvg-ID="1" tvg-name="One" tvg-logo="" group-title="G",One
http://s/1
#EXTINF:-1 tvg-ID="2" tvg-name="Two" tvg-logo="" group-title="G",Two
#EXTVLCOPT:0 foo=bar`
	got, p := parseAll(t, m3u)
	if len(got) != 1 {
		t.Fatalf("got %d channels, want 1", len(got))
	}
	if n := len(p.Incomplete()); n != 2 {
		t.Errorf("Incomplete() has %d lines, want 2", n)
	}
	if !errors.Is(p.Warning(), ErrIncompleteEntry) {
		t.Errorf("Warning() = %v, want ErrIncompleteEntry", p.Warning())
	}
}

// A broken #EXTINF is taken as the address line: it closes the entry on its
// own and the real URL becomes a separate entry.
func TestParser_malformedInfoBecomesAddress(t *testing.T) {
	m3u := `#EXTM3U
#EXTINF:-1 tvg-id="1" tvg-name="One" tvg-logo="" group-title="G",One
http://s/1
`
	got, _ := parseAll(t, m3u)
	if len(got) != 2 {
		t.Fatalf("got %d channels, want 2", len(got))
	}
	if !strings.HasPrefix(got[0].URL, "#EXTINF") || got[0].Name != "" {
		t.Errorf("first = %+v, want malformed line as URL", got[0])
	}
	if got[1].URL != "http://s/1" || got[1].Name != "" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestParser_nextAfterEnd(t *testing.T) {
	p := NewParser(strings.NewReader("#EXTM3U\nhttp://s/1\n"))
	if _, ok := p.Next(); !ok {
		t.Fatal("expected one channel")
	}
	for i := 0; i < 2; i++ {
		if _, ok := p.Next(); ok {
			t.Fatal("Next after end returned a channel")
		}
	}
	if p.Warning() != nil {
		t.Errorf("Warning() = %v", p.Warning())
	}
}

func TestParser_lineTooLong(t *testing.T) {
	long := strings.Repeat("x", maxLineSize+10)
	p := NewParser(strings.NewReader("#EXTM3U\n" + long + "\n"))
	if _, ok := p.Next(); ok {
		t.Fatal("expected no channel")
	}
	if p.Err() == nil {
		t.Error("expected read error for oversized line")
	}
}

func TestChannel_extrasAreCopies(t *testing.T) {
	src := map[string]string{"a": "1"}
	ch := NewChannel("n", "u", "", src)
	src["a"] = "changed"
	ex := ch.Extras()
	ex["b"] = "2"
	if !maps.Equal(ch.Extras(), map[string]string{"a": "1"}) {
		t.Errorf("extras mutated: %v", ch.Extras())
	}
}

func TestChannel_MarshalJSON(t *testing.T) {
	ch := NewChannel("One", "http://s/1", "", map[string]string{"foo": "bar"})
	b, err := ch.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"One","url":"http://s/1","extras":{"foo":"bar"}}`
	if string(b) != want {
		t.Errorf("MarshalJSON = %s, want %s", b, want)
	}
}
