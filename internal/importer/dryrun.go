package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/snapetech/m3u2tvh/internal/playlist"
	"github.com/snapetech/m3u2tvh/internal/tvheadend"
)

// DryRunNetwork stands in for the network UUID when nothing is sent.
const DryRunNetwork = "unknown in test mode"

// DryRun is a Registrar that prints the mux_create request it would send,
// followed by the channel's extras, and contacts nothing.
type DryRun struct {
	Out    io.Writer
	Config func(playlist.Channel) tvheadend.MuxConf
}

type dryRunRequest struct {
	UUID string            `json:"uuid"`
	Conf tvheadend.MuxConf `json:"conf"`
}

func (d DryRun) CreateMux(ctx context.Context, ch playlist.Channel) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req, err := json.MarshalIndent(dryRunRequest{UUID: DryRunNetwork, Conf: d.Config(ch)}, "", "    ")
	if err != nil {
		return "", err
	}
	extras, err := json.MarshalIndent(ch.Extras(), "", "    ")
	if err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(d.Out, "%s\nextras:\n%s\n", req, extras); err != nil {
		return "", err
	}
	return "", nil
}
