package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mcuadros/go-version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/findme/internal/catalog"
	"github.com/tdh8316/findme/internal/cli"
	"github.com/tdh8316/findme/internal/config"
	"github.com/tdh8316/findme/internal/export"
	"github.com/tdh8316/findme/internal/httpx"
	"github.com/tdh8316/findme/internal/output"
	"github.com/tdh8316/findme/internal/scan"
)

// Version is compared against the catalog's "$minVersion".
var Version = "1.2.0"

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// App holds everything a search needs. One App serves a single process.
type App struct {
	cfg  config.Config
	opts cli.Options
	mode scan.Mode

	log      *logrus.Logger
	closeLog func()

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	printer *output.Printer
	loader  *catalog.Loader
	scanner *scan.Scanner
	tracker *scan.Tracker
}

func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, os.Stdin, stdout, stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	inv, err := cli.Parse(args, stdout, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err.Error())
		return exitUsage
	}

	if inv.Command == cli.CmdVersion {
		fmt.Fprintf(stdout, "findme %s\n", Version)
		return exitOK
	}

	a, err := New(inv.Options, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitUsage
	}
	defer a.Close()

	switch inv.Command {
	case cli.CmdPlatforms:
		return a.listPlatforms(ctx)
	case cli.CmdConsole:
		return a.runConsole(ctx)
	default:
		return a.search(ctx, inv.Usernames)
	}
}

// New loads configuration, applies the command-line overrides and wires the
// scan pipeline.
func New(opts cli.Options, stdin io.Reader, stdout, stderr io.Writer) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	opts.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := scan.ParseMode(cfg.Scan.Mode)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		log.WithField("path", cfg.Path).Debug("config loaded")
	}

	if cfg.Output.NoColor {
		color.NoColor = true
	}

	client, err := httpx.NewClient(httpx.ClientConfig{
		Timeout:     cfg.Scan.Timeout,
		UserAgent:   cfg.Scan.UserAgent,
		Tor:         cfg.Relay.Tor,
		TorProxyURL: cfg.Relay.TorProxyURL,
		RPS:         cfg.Relay.RPS,
	})
	if err != nil {
		closeLog()
		return nil, errors.Wrap(err, "failed to initialize HTTP client")
	}

	printer := output.NewPrinter(stdout, cfg.Output.NoColor, cfg.Output.Verbose)
	if cfg.Output.Progress && isTerminal(stderr) {
		printer.WithProgress(stderr)
	}

	relay := httpx.Relay{Endpoint: cfg.Relay.Endpoint}
	prober := scan.NewHTTPProber(client, relay, scan.Config{
		UserAgent:  cfg.Scan.UserAgent,
		RegexCheck: cfg.Scan.RegexCheck,
	}, log)

	log.WithFields(logrus.Fields{
		"mode":    mode,
		"catalog": cfg.Catalog.Source,
		"relay":   relay.Enabled(),
		"tor":     cfg.Relay.Tor,
		"delay":   cfg.Scan.Delay,
	}).Debug("findme configured")

	return &App{
		cfg:      cfg,
		opts:     opts,
		mode:     mode,
		log:      log,
		closeLog: closeLog,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		printer:  printer,
		loader:   catalog.NewLoader(client, cfg.Catalog.Source, cfg.Scan.UserAgent, log),
		scanner:  scan.NewScanner(prober, cfg.Scan.Delay, log),
		tracker:  scan.NewTracker(),
	}, nil
}

func (a *App) Close() {
	if cur := a.tracker.Current(); cur != nil {
		cur.Cancel()
	}
	a.closeLog()
}

// search runs one scan per username in the configured mode.
func (a *App) search(ctx context.Context, usernames []string) int {
	usernames = cleanUsernames(usernames)
	if len(usernames) == 0 {
		usernames = promptUsernames(a.stdout, a.stdin, a.mode)
		if len(usernames) == 0 {
			fmt.Fprintln(a.stderr, scan.ErrEmptyUsername.Error())
			return exitUsage
		}
	}

	code := exitOK
	for _, username := range usernames {
		sess, err := a.tracker.Begin(ctx, username, a.mode)
		if err != nil {
			fmt.Fprintln(a.stderr, err.Error())
			return exitUsage
		}

		// Every scan works on a freshly fetched catalog.
		cat, err := a.loadCatalog(sess.Context())
		if sess.Canceled() {
			a.printer.Warn("Scan interrupted")
			return exitInterrupted
		}
		if err != nil {
			code = exitFailure
		}

		records, err := a.scanSession(sess, cat)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				a.printer.Warn("Scan interrupted")
				return exitInterrupted
			}
			a.log.WithError(err).WithField("username", sess.Username).Error("scan failed")
			code = exitFailure
			continue
		}

		if err := a.deliver(sess.Username, records, len(usernames) > 1); err != nil {
			a.printer.Warn("%v", err)
			code = exitFailure
		}
	}
	return code
}

func (a *App) scanSession(sess *scan.Session, cat *catalog.Catalog) ([]scan.Record, error) {
	a.printer.Header(sess.Username, sess.Mode)
	return a.scanner.Scan(sess, cat, a.tracker.Guard(a.printer))
}

// loadCatalog fetches the catalog and applies the --sites filter. When the
// catalog cannot be loaded the error is reported and an empty catalog is
// returned alongside it, so a scan still runs and completes with nothing.
func (a *App) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	cat, err := a.loader.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.log.WithError(err).Warn("catalog unavailable")
			a.printer.Warn("Failed to load platform list: %v", err)
		}
		return &catalog.Catalog{}, err
	}

	a.checkMinVersion(cat)

	if len(a.opts.Sites) > 0 {
		cat = a.filterSites(cat, a.opts.Sites)
	}
	return cat, nil
}

func (a *App) checkMinVersion(cat *catalog.Catalog) {
	want := strings.TrimSpace(cat.Meta[catalog.MetaPrefix+"minVersion"])
	if want == "" {
		return
	}
	if version.Compare(version.Normalize(Version), version.Normalize(want), "<") {
		a.log.WithFields(logrus.Fields{
			"version":    Version,
			"minVersion": want,
		}).Warn("catalog expects a newer findme; some platforms may be misclassified")
	}
}

func (a *App) filterSites(cat *catalog.Catalog, selected []string) *catalog.Catalog {
	filtered, unknown := cat.Filter(selected)
	if len(unknown) > 0 {
		a.printer.Warn("Unknown sites ignored: %s", strings.Join(unknown, ", "))
	}
	if filtered.Len() == 0 {
		a.printer.Warn("No matching sites found; using full platform list.")
		return cat
	}
	a.printer.Info("Using %d site(s)", filtered.Len())
	return filtered
}

// deliver writes the export file and the clipboard copy when requested. With
// only --output given, the format follows the file extension.
func (a *App) deliver(username string, records []scan.Record, multi bool) error {
	name := a.opts.Export
	if name == "" && a.opts.Output != "" {
		name = strings.TrimPrefix(filepath.Ext(a.opts.Output), ".")
	}
	if name != "" {
		format, err := export.ParseFormat(name)
		if err != nil {
			return err
		}
		path := exportPath(a.opts.Output, format, username, multi)
		if err := export.WriteFile(path, format, records); err != nil {
			return errors.Wrapf(err, "export %s", path)
		}
		a.printer.Info("Results exported to %s", path)
	}

	if a.opts.Copy {
		if len(records) == 0 {
			a.printer.Warn("No results to copy")
			return nil
		}
		if err := export.Copy(a.stderr, records); err != nil {
			return err
		}
		a.printer.Info("Copied %d result(s) to clipboard", len(records))
	}
	return nil
}

// exportPath picks the export file. With several usernames each gets its own
// file, named after the username.
func exportPath(base string, format export.Format, username string, multi bool) string {
	if base == "" {
		base = export.FileName(format)
	}
	if !multi {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + username + ext
}

func (a *App) listPlatforms(ctx context.Context) int {
	cat, err := a.loadCatalog(ctx)
	if err != nil {
		return exitFailure
	}
	for _, name := range cat.Names() {
		a.printer.Item(name)
	}
	a.printer.Info("%d platforms", cat.Len())
	return exitOK
}

func cleanUsernames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func promptUsernames(stdout io.Writer, stdin io.Reader, mode scan.Mode) []string {
	if mode == scan.Availability {
		fmt.Fprint(stdout, "Enter usernames to check availability for, separated by a space: ")
	} else {
		fmt.Fprint(stdout, "Enter usernames to search for, separated by a space: ")
	}
	r := bufio.NewReader(stdin)
	line, _ := r.ReadString('\n')
	return strings.Fields(line)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
