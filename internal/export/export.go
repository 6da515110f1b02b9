// Package export writes scan results as JSON, CSV, plain text or YAML, and
// copies them to the terminal clipboard.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tdh8316/findme/internal/scan"
)

type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	TXT  Format = "txt"
	YAML Format = "yaml"
)

// Banner heads the plain-text export.
const Banner = "FindMe Search Results"

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, CSV, TXT, YAML:
		return f, nil
	case "text":
		return TXT, nil
	case "yml":
		return YAML, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
	}
}

// FileName is the default export file name for f.
func FileName(f Format) string {
	return "findme-results." + string(f)
}

func Write(w io.Writer, f Format, records []scan.Record) error {
	switch f {
	case JSON:
		return writeJSON(w, records)
	case CSV:
		return writeCSV(w, records)
	case TXT:
		return writeText(w, records)
	case YAML:
		return writeYAML(w, records)
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", f)
	}
}

// WriteFile exports records to path, creating parent directories.
func WriteFile(path string, f Format, records []scan.Record) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create export dir")
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create export file")
	}
	if err := Write(file, f, records); err != nil {
		file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "close export file")
}

func writeJSON(w io.Writer, records []scan.Record) error {
	if records == nil {
		records = []scan.Record{}
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}
	_, err = w.Write(b)
	return err
}

// CSV fields are always quoted, which encoding/csv does not do.
func writeCSV(w io.Writer, records []scan.Record) error {
	var b strings.Builder
	b.WriteString("Platform,URL\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%s,%s\n", quote(r.Name), quote(r.URL))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func writeText(w io.Writer, records []scan.Record) error {
	var b strings.Builder
	b.WriteString(Banner + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	b.WriteString(Lines(records))
	_, err := io.WriteString(w, b.String())
	return err
}

func writeYAML(w io.Writer, records []scan.Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if records == nil {
		records = []scan.Record{}
	}
	if err := enc.Encode(records); err != nil {
		return errors.Wrap(err, "marshal yaml")
	}
	return enc.Close()
}

// Lines renders one "Name: URL" line per record.
func Lines(records []scan.Record) string {
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%s: %s\n", r.Name, r.URL)
	}
	return b.String()
}

// Copy puts the "Name: URL" lines on the clipboard of the terminal behind w
// using an OSC 52 escape sequence.
func Copy(w io.Writer, records []scan.Record) error {
	_, err := osc52.New(Lines(records)).WriteTo(w)
	return errors.Wrap(err, "copy to clipboard")
}
