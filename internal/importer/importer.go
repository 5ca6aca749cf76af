// Package importer drives an import run: it pulls channels from a playlist
// parser one at a time, drops duplicate URLs and registers the rest as muxes.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/snapetech/m3u2tvh/internal/metrics"
	"github.com/snapetech/m3u2tvh/internal/playlist"
	"github.com/snapetech/m3u2tvh/internal/tvheadend"
)

// Registrar creates one mux per channel. *tvheadend.Client and DryRun
// implement it.
type Registrar interface {
	CreateMux(ctx context.Context, ch playlist.Channel) (string, error)
}

// MuxLister returns the muxes that already exist on the server.
type MuxLister interface {
	ListMuxes(ctx context.Context) ([]tvheadend.Mux, error)
}

// Importer is configured by its fields; Registrar is required.
type Importer struct {
	Registrar Registrar
	// Muxes seeds the duplicate set when DedupRemote is true.
	Muxes       MuxLister
	DedupRemote bool

	// Out receives one progress line per channel. nil = io.Discard.
	Out     io.Writer
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// Result counts what a run did.
type Result struct {
	Parsed  int
	Added   int
	Skipped int
	Failed  int
}

// Run registers every channel p yields, in order. A missing network is
// reported for the channel and the run continues; any other registration
// error stops the run and is returned together with the counts so far.
func (im *Importer) Run(ctx context.Context, p *playlist.Parser) (Result, error) {
	var res Result
	out := im.Out
	if out == nil {
		out = io.Discard
	}
	log := im.Log.With().Str("component", "importer").Logger()

	known := make(map[string]struct{})
	if im.DedupRemote && im.Muxes != nil {
		muxes, err := im.Muxes.ListMuxes(ctx)
		if err != nil {
			return res, fmt.Errorf("list existing muxes: %w", err)
		}
		for _, m := range muxes {
			if m.URL != "" {
				known[m.URL] = struct{}{}
			}
		}
		log.Info().Int("muxes", len(muxes)).Int("urls", len(known)).Msg("seeded duplicate set from server")
	}

	for ch := range p.All() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Parsed++
		im.Metrics.Parsed()

		if _, dup := known[ch.URL]; dup {
			res.Skipped++
			im.Metrics.Skipped(metrics.ReasonDuplicate)
			fmt.Fprintf(out, "skipped: %s at %s\n", ch.Name, ch.URL)
			continue
		}
		known[ch.URL] = struct{}{}

		uuid, err := im.Registrar.CreateMux(ctx, ch)
		switch {
		case errors.Is(err, tvheadend.ErrNoNetwork):
			res.Failed++
			im.Metrics.Failed(metrics.ReasonNoNetwork)
			log.Warn().Err(err).Str("name", ch.Name).Str("url", ch.URL).Msg(tvheadend.NoNetworkHint)
			fmt.Fprintf(out, "failed: %s at %s (no network)\n", ch.Name, ch.URL)
			continue
		case err != nil:
			res.Failed++
			im.Metrics.Failed(metrics.ReasonError)
			return res, fmt.Errorf("create mux for %q: %w", ch.URL, err)
		}
		res.Added++
		im.Metrics.Added()
		log.Debug().Str("mux", uuid).Str("url", ch.URL).Msg("added")
		fmt.Fprintf(out, "added: %s at %s\n", ch.Name, ch.URL)
	}
	if err := p.Err(); err != nil {
		return res, fmt.Errorf("read playlist: %w", err)
	}
	if err := p.Warning(); err != nil {
		ev := log.Warn().Err(err)
		if lines := p.Incomplete(); len(lines) > 0 {
			ev = ev.Strs("lines", lines)
		}
		ev.Msg("playlist")
	}
	log.Info().Int("parsed", res.Parsed).Int("added", res.Added).Int("skipped", res.Skipped).Int("failed", res.Failed).Msg("import finished")
	return res, nil
}
