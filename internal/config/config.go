package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/tdh8316/findme/internal/catalog"
	"github.com/tdh8316/findme/internal/httpx"
	"github.com/tdh8316/findme/internal/scan"
)

// FileName is looked up in the working directory, then in $HOME/.findme.
const FileName = ".findme.ini"

type Config struct {
	// Path of the file the values came from; empty when only defaults apply.
	Path string

	Catalog CatalogConfig
	Relay   RelayConfig
	Scan    ScanConfig
	Log     LogConfig
	Output  OutputConfig
}

type CatalogConfig struct {
	// Source is an http(s) URL or a local file path.
	Source string
}

type RelayConfig struct {
	Endpoint    string
	Tor         bool
	TorProxyURL string
	// RPS caps outgoing requests per second; zero disables the cap.
	RPS float64
}

type ScanConfig struct {
	Mode       string
	// Delay is the pause between probes, never below scan.DefaultDelay.
	Delay      time.Duration
	Timeout    time.Duration
	UserAgent  string
	RegexCheck bool
}

type LogConfig struct {
	Level string
	File  string
}

type OutputConfig struct {
	NoColor  bool
	Verbose  bool
	Progress bool
}

func Default() Config {
	return Config{
		Catalog: CatalogConfig{Source: catalog.DefaultURL},
		Relay:   RelayConfig{TorProxyURL: httpx.DefaultTorProxyURL},
		Scan: ScanConfig{
			Mode:      scan.Discover.String(),
			Delay:     scan.DefaultDelay,
			Timeout:   httpx.DefaultTimeout,
			UserAgent: httpx.DefaultUserAgent,
		},
		Log:    LogConfig{Level: "warn"},
		Output: OutputConfig{Progress: true},
	}
}

// SearchPaths lists the config files tried when no path is given.
func SearchPaths() []string {
	paths := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".findme", "findme.ini"))
	}
	return paths
}

// Load reads path, or the first existing file of SearchPaths when path is
// empty. A missing default file is not an error; a missing explicit one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return cfg, nil
		}
	}

	file, err := ini.Load(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "load config %s", path)
	}
	cfg.Path = path

	sec := file.Section("catalog")
	cfg.Catalog.Source = sec.Key("source").MustString(cfg.Catalog.Source)

	sec = file.Section("relay")
	cfg.Relay.Endpoint = sec.Key("endpoint").MustString(cfg.Relay.Endpoint)
	cfg.Relay.Tor = sec.Key("tor").MustBool(cfg.Relay.Tor)
	cfg.Relay.TorProxyURL = sec.Key("tor_proxy_url").MustString(cfg.Relay.TorProxyURL)
	cfg.Relay.RPS = sec.Key("rps").MustFloat64(cfg.Relay.RPS)

	sec = file.Section("scan")
	cfg.Scan.Mode = sec.Key("mode").MustString(cfg.Scan.Mode)
	cfg.Scan.Delay = sec.Key("delay").MustDuration(cfg.Scan.Delay)
	cfg.Scan.Timeout = sec.Key("timeout").MustDuration(cfg.Scan.Timeout)
	cfg.Scan.UserAgent = sec.Key("user_agent").MustString(cfg.Scan.UserAgent)
	cfg.Scan.RegexCheck = sec.Key("regex_check").MustBool(cfg.Scan.RegexCheck)

	sec = file.Section("log")
	cfg.Log.Level = sec.Key("level").MustString(cfg.Log.Level)
	cfg.Log.File = sec.Key("file").MustString(cfg.Log.File)

	sec = file.Section("output")
	cfg.Output.NoColor = sec.Key("no_color").MustBool(cfg.Output.NoColor)
	cfg.Output.Verbose = sec.Key("verbose").MustBool(cfg.Output.Verbose)
	cfg.Output.Progress = sec.Key("progress").MustBool(cfg.Output.Progress)

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := scan.ParseMode(c.Scan.Mode); err != nil {
		return err
	}
	if c.Scan.Delay < scan.DefaultDelay {
		return errors.Errorf("scan delay must be at least %s, got %s", scan.DefaultDelay, c.Scan.Delay)
	}
	if c.Scan.Timeout <= 0 {
		return errors.Errorf("scan timeout must be positive, got %s", c.Scan.Timeout)
	}
	if c.Relay.RPS < 0 {
		return errors.Errorf("relay rps must not be negative, got %v", c.Relay.RPS)
	}
	return nil
}
