package app

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/findme/internal/config"
)

// newLogger builds the diagnostic logger. Entries go to stderr and, when a
// log file is configured, are appended to it as well. The returned func
// closes the file.
func newLogger(cfg config.LogConfig, stderr io.Writer) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})

	level := logrus.WarnLevel
	if cfg.Level != "" {
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, errors.Wrap(err, "log level")
		}
		level = lvl
	}
	log.SetLevel(level)

	if cfg.File == "" {
		log.SetOutput(stderr)
		return log, func() {}, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Wrap(err, "create log dir")
		}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open log file")
	}
	log.SetOutput(io.MultiWriter(stderr, f))
	return log, func() { _ = f.Close() }, nil
}
