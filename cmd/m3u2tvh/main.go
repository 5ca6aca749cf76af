// Command m3u2tvh: bulk-import IPTV channels from an M3U playlist into Tvheadend.
//
//	import  Parse the playlist and create one IPTV mux per channel (default)
//	parse   Print the parsed channels as JSON lines, contact nothing
//	muxes   List the muxes that already exist on the server
//
// Settings come from the environment (M3U2TVH_*, optionally a .env file);
// flags override them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/m3u2tvh/internal/config"
	"github.com/snapetech/m3u2tvh/internal/health"
	"github.com/snapetech/m3u2tvh/internal/httpclient"
	"github.com/snapetech/m3u2tvh/internal/importer"
	"github.com/snapetech/m3u2tvh/internal/metrics"
	"github.com/snapetech/m3u2tvh/internal/playlist"
	"github.com/snapetech/m3u2tvh/internal/safeurl"
	"github.com/snapetech/m3u2tvh/internal/tvheadend"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	_ = config.LoadEnvFile(".env")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: m3u2tvh [import] [flags] <m3u_file> <tvheadend_url>\n")
	fmt.Fprintf(w, "       m3u2tvh parse <m3u_file>\n")
	fmt.Fprintf(w, "       m3u2tvh muxes [flags] <tvheadend_url>\n")
	fmt.Fprintf(w, "  import  Create one IPTV mux per playlist channel (m3u_file may be a path, http(s) URL or -)\n")
	fmt.Fprintf(w, "  parse   Print parsed channels as JSON lines\n")
	fmt.Fprintf(w, "  muxes   List existing muxes (name<TAB>url)\n")
	fmt.Fprintf(w, "Run 'm3u2tvh <command> -h' for flags.\n")
}

// run dispatches to a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	cfg := config.Load()
	switch args[0] {
	case "import":
		return runImport(ctx, cfg, args[1:], stdout, stderr)
	case "parse":
		return runParse(ctx, cfg, args[1:], stdout, stderr)
	case "muxes":
		return runMuxes(ctx, cfg, args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitOK
	default:
		// Bare form: m3u2tvh <m3u_file> <tvheadend_url> [flags]
		return runImport(ctx, cfg, args, stdout, stderr)
	}
}

// serverFlags are shared by import and muxes.
type serverFlags struct {
	user, password string
	proxy          string
	timeout        time.Duration
	rate           float64
	logLevel       string
}

func (s *serverFlags) register(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&s.user, "user", cfg.User, "Tvheadend username (default: M3U2TVH_USER)")
	fs.StringVar(&s.password, "password", cfg.Password, "Tvheadend password (default: M3U2TVH_PASS)")
	fs.StringVar(&s.proxy, "proxy", cfg.ProxyURL, "Proxy for all requests: socks5://host:port or http://host:port (default: M3U2TVH_PROXY)")
	fs.DurationVar(&s.timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.Float64Var(&s.rate, "rate", cfg.RateLimit, "Max Tvheadend API requests per second; 0 = unlimited")
	fs.StringVar(&s.logLevel, "log-level", cfg.LogLevel, "trace|debug|info|warn|error")
}

func runImport(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf serverFlags
	sf.register(fs, cfg)
	iface := fs.String("interface", cfg.Interface, "Interface Tvheadend tunes on (e.g. eth0)")
	dryRun := fs.Bool("dry-run", false, "Print the requests instead of sending them")
	dedupRemote := fs.Bool("dedup-remote", cfg.DedupRemote, "Skip channels whose URL already exists as a mux on the server")
	skipHealth := fs.Bool("skip-health", false, "Skip the /api/serverinfo check before importing")
	metricsFile := fs.String("metrics-file", cfg.MetricsFile, "Write run metrics to this file (Prometheus text format)")

	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return flagExit(err)
	}
	serverURL := cfg.ServerURL
	switch len(pos) {
	case 1:
	case 2:
		serverURL = pos[1]
	default:
		usage(stderr)
		return exitUsage
	}
	if serverURL == "" {
		fmt.Fprintln(stderr, "m3u2tvh: need <tvheadend_url> or M3U2TVH_URL")
		return exitUsage
	}
	log, err := newLogger(stderr, sf.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "m3u2tvh: %v\n", err)
		return exitUsage
	}

	client, err := httpclient.New(httpclient.Options{Timeout: sf.timeout, ProxyURL: sf.proxy})
	if err != nil {
		log.Error().Err(err).Msg("http client")
		return exitError
	}
	m := metrics.New()
	tvh, err := tvheadend.New(tvheadend.Config{
		BaseURL:    serverURL,
		User:       sf.user,
		Password:   sf.password,
		Interface:  *iface,
		HTTPClient: client,
		RateLimit:  sf.rate,
		Logger:     log,
		Metrics:    m,
	})
	if err != nil {
		log.Error().Err(err).Msg("tvheadend url")
		return exitUsage
	}

	if !*dryRun && !*skipHealth {
		info, err := health.CheckServer(ctx, client, tvh.BaseURL(), sf.user, sf.password)
		if err != nil {
			log.Error().Err(err).Str("server", tvh.BaseURL()).Msg("tvheadend health check failed")
			return exitError
		}
		log.Info().Str("server", tvh.BaseURL()).Str("version", info.SWVersion).Int("api", info.APIVersion).Msg("tvheadend reachable")
	}

	src := pos[0]
	rc, err := playlist.Open(ctx, src, client)
	if err != nil {
		log.Error().Err(err).Str("playlist", safeurl.Redact(src)).Msg("open playlist")
		return exitError
	}
	defer rc.Close()

	im := &importer.Importer{
		Registrar:   tvh,
		Muxes:       tvh,
		DedupRemote: *dedupRemote && !*dryRun,
		Out:         stdout,
		Log:         log,
		Metrics:     m,
	}
	if *dryRun {
		im.Registrar = importer.DryRun{Out: stdout, Config: tvh.MuxConfig}
	}
	fmt.Fprintln(stdout, "Adding muxes to Tvheadend...")
	_, runErr := im.Run(ctx, playlist.NewParser(rc))
	if *metricsFile != "" {
		if err := m.WriteFile(*metricsFile); err != nil {
			log.Warn().Err(err).Str("path", *metricsFile).Msg("write metrics")
		}
	}
	if runErr != nil {
		var se *httpclient.StatusError
		if errors.As(runErr, &se) && se.Unauthorized() {
			log.Error().Err(runErr).Msg("import failed: Tvheadend rejected the credentials")
		} else {
			log.Error().Err(runErr).Msg("import failed")
		}
		return exitError
	}
	return exitOK
}

func runParse(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("log-level", cfg.LogLevel, "trace|debug|info|warn|error")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return flagExit(err)
	}
	if len(pos) != 1 {
		usage(stderr)
		return exitUsage
	}
	log, err := newLogger(stderr, *logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "m3u2tvh: %v\n", err)
		return exitUsage
	}
	rc, err := playlist.Open(ctx, pos[0], nil)
	if err != nil {
		log.Error().Err(err).Str("playlist", safeurl.Redact(pos[0])).Msg("open playlist")
		return exitError
	}
	defer rc.Close()
	p := playlist.NewParser(rc)
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	n := 0
	for ch := range p.All() {
		if err := enc.Encode(ch); err != nil {
			log.Error().Err(err).Msg("write")
			return exitError
		}
		n++
	}
	if err := p.Err(); err != nil {
		log.Error().Err(err).Msg("read playlist")
		return exitError
	}
	if err := p.Warning(); err != nil {
		log.Warn().Err(err).Msg("playlist")
	}
	log.Debug().Int("channels", n).Msg("parsed")
	return exitOK
}

func runMuxes(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("muxes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var sf serverFlags
	sf.register(fs, cfg)
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return flagExit(err)
	}
	serverURL := cfg.ServerURL
	switch len(pos) {
	case 0:
	case 1:
		serverURL = pos[0]
	default:
		usage(stderr)
		return exitUsage
	}
	if serverURL == "" {
		fmt.Fprintln(stderr, "m3u2tvh: need <tvheadend_url> or M3U2TVH_URL")
		return exitUsage
	}
	log, err := newLogger(stderr, sf.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "m3u2tvh: %v\n", err)
		return exitUsage
	}
	client, err := httpclient.New(httpclient.Options{Timeout: sf.timeout, ProxyURL: sf.proxy})
	if err != nil {
		log.Error().Err(err).Msg("http client")
		return exitError
	}
	tvh, err := tvheadend.New(tvheadend.Config{
		BaseURL:    serverURL,
		User:       sf.user,
		Password:   sf.password,
		HTTPClient: client,
		RateLimit:  sf.rate,
		Logger:     log,
	})
	if err != nil {
		log.Error().Err(err).Msg("tvheadend url")
		return exitUsage
	}
	muxes, err := tvh.ListMuxes(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list muxes")
		return exitError
	}
	for _, mux := range muxes {
		fmt.Fprintf(stdout, "%s\t%s\n", mux.Name, mux.URL)
	}
	log.Debug().Int("muxes", len(muxes)).Msg("listed")
	return exitOK
}

// parseInterspersed parses flags that may appear before, between or after
// positional arguments, and returns the positionals in order. Everything
// after "--" is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(pos, rest...), nil
		}
		if len(rest) == 0 {
			return pos, nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

func flagExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	return exitUsage
}

// newLogger returns a human-readable logger on w at the named level.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !isTerminal(w)}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
