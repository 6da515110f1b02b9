package cli

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tdh8316/findme/internal/config"
	"github.com/tdh8316/findme/internal/export"
	"github.com/tdh8316/findme/internal/scan"
)

var ErrHelp = errors.New("help requested")

type Command int

const (
	CmdSearch Command = iota
	CmdPlatforms
	CmdConsole
	CmdVersion
)

type Options struct {
	ConfigPath string

	Mode       string
	Catalog    string
	Relay      string
	Tor        bool
	RPS        float64
	Delay      time.Duration
	Timeout    time.Duration
	UserAgent  string
	RegexCheck bool
	LogLevel   string
	LogFile    string

	NoColor    bool
	Verbose    bool
	NoProgress bool

	Sites  []string
	Export string
	Output string
	Copy   bool

	// flags set explicitly on the command line
	changed map[string]bool
}

// Invocation is the parsed command line.
type Invocation struct {
	Command   Command
	Options   Options
	Usernames []string
}

const longHelp = `FindMe checks a username against a catalog of platforms.

In discover mode it lists the platforms where an account with the name
exists. In availability mode it lists the platforms where the name is free.
Platforms are probed one at a time with a pause between probes.`

// Parse parses args into an Invocation. Help output goes to stdout and
// yields ErrHelp.
func Parse(args []string, stdout, stderr io.Writer) (Invocation, error) {
	var (
		opts Options
		inv  *Invocation
	)

	capture := func(command Command, mode string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, positional []string) error {
			opts.changed = changedFlags(cmd.Flags())
			if mode != "" {
				if opts.changed["mode"] && !strings.EqualFold(opts.Mode, mode) {
					return errors.Errorf("--mode %s conflicts with the %s command", opts.Mode, mode)
				}
				opts.Mode = mode
				opts.changed["mode"] = true
			}
			if opts.changed["mode"] {
				if _, err := scan.ParseMode(opts.Mode); err != nil {
					return err
				}
			}
			if opts.changed["export"] {
				if _, err := export.ParseFormat(opts.Export); err != nil {
					return err
				}
			}
			inv = &Invocation{Command: command, Options: opts, Usernames: positional}
			return nil
		}
	}

	root := &cobra.Command{
		Use:           "findme [flags] USERNAME [USERNAMES...]",
		Short:         "Find where a username exists, or where it is still available",
		Long:          longHelp,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          capture(CmdSearch, ""),
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "config file (default: ./"+config.FileName+" or ~/.findme/findme.ini)")
	pf.StringVarP(&opts.Mode, "mode", "m", "discover", "scan mode: discover or availability")
	pf.StringVar(&opts.Catalog, "catalog", "", "catalog URL or file path")
	pf.StringVar(&opts.Relay, "relay", "", "relay endpoint; the escaped target URL is appended or replaces {url}")
	pf.BoolVarP(&opts.Tor, "tor", "t", false, "dial through the Tor SOCKS5 proxy")
	pf.Float64Var(&opts.RPS, "rps", 0, "max requests per second (0 = no cap)")
	pf.DurationVar(&opts.Delay, "delay", scan.DefaultDelay, "pause between probes (minimum "+scan.DefaultDelay.String()+")")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-request timeout")
	pf.StringVar(&opts.UserAgent, "user-agent", "", "User-Agent header")
	pf.BoolVar(&opts.RegexCheck, "regex-check", false, "skip platforms whose username pattern rejects the name")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.LogFile, "log-file", "", "append logs to this file")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "also print misses and errors")
	pf.BoolVar(&opts.NoProgress, "no-progress", false, "disable the progress bar")
	pf.StringSliceVar(&opts.Sites, "sites", nil, "only probe these platforms (comma-separated)")
	pf.StringVarP(&opts.Export, "export", "e", "", "export results: json, csv, txt or yaml")
	pf.StringVarP(&opts.Output, "output", "o", "", "export file path (default: findme-results.<format>)")
	pf.BoolVar(&opts.Copy, "copy", false, "copy results to the terminal clipboard")

	root.AddCommand(
		&cobra.Command{
			Use:   "discover USERNAME [USERNAMES...]",
			Short: "List platforms where the username exists",
			Args:  cobra.ArbitraryArgs,
			RunE:  capture(CmdSearch, scan.Discover.String()),
		},
		&cobra.Command{
			Use:   "availability USERNAME [USERNAMES...]",
			Short: "List platforms where the username is available",
			Args:  cobra.ArbitraryArgs,
			RunE:  capture(CmdSearch, scan.Availability.String()),
		},
		&cobra.Command{
			Use:   "platforms",
			Short: "List the platforms in the catalog",
			Args:  cobra.NoArgs,
			RunE:  capture(CmdPlatforms, ""),
		},
		&cobra.Command{
			Use:   "console",
			Short: "Start an interactive console",
			Args:  cobra.NoArgs,
			RunE:  capture(CmdConsole, ""),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			RunE:  capture(CmdVersion, ""),
		},
	)

	if err := root.Execute(); err != nil {
		return Invocation{}, err
	}
	if inv == nil {
		return Invocation{}, ErrHelp
	}
	return *inv, nil
}

func changedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
	})
	return changed
}

// Changed reports whether flag was set on the command line.
func (o Options) Changed(flag string) bool {
	return o.changed[flag]
}

// Apply overrides cfg with the flags set on the command line.
func (o Options) Apply(cfg *config.Config) {
	if o.Changed("mode") {
		cfg.Scan.Mode = o.Mode
	}
	if o.Changed("catalog") {
		cfg.Catalog.Source = o.Catalog
	}
	if o.Changed("relay") {
		cfg.Relay.Endpoint = o.Relay
	}
	if o.Changed("tor") {
		cfg.Relay.Tor = o.Tor
	}
	if o.Changed("rps") {
		cfg.Relay.RPS = o.RPS
	}
	if o.Changed("delay") {
		cfg.Scan.Delay = o.Delay
	}
	if o.Changed("timeout") {
		cfg.Scan.Timeout = o.Timeout
	}
	if o.Changed("user-agent") {
		cfg.Scan.UserAgent = o.UserAgent
	}
	if o.Changed("regex-check") {
		cfg.Scan.RegexCheck = o.RegexCheck
	}
	if o.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if o.Changed("log-file") {
		cfg.Log.File = o.LogFile
	}
	if o.Changed("no-color") {
		cfg.Output.NoColor = o.NoColor
	}
	if o.Changed("verbose") {
		cfg.Output.Verbose = o.Verbose
	}
	if o.Changed("no-progress") {
		cfg.Output.Progress = !o.NoProgress
	}
}
