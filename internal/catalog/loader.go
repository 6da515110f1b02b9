package catalog

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxCatalogBytes bounds the catalog download.
const maxCatalogBytes = 16 << 20

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Loader fetches the catalog from an http(s) URL or a local file.
// Nothing is cached; every Load goes back to the source.
type Loader struct {
	client    Doer
	source    string
	userAgent string
	log       logrus.FieldLogger
}

func NewLoader(client Doer, source, userAgent string, log logrus.FieldLogger) *Loader {
	if source == "" {
		source = DefaultURL
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Loader{
		client:    client,
		source:    source,
		userAgent: userAgent,
		log:       log.WithField("source", source),
	}
}

func (l *Loader) Source() string { return l.source }

// Load reads and parses the catalog. Any failure wraps ErrUnavailable.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	raw, err := l.read(ctx)
	if err != nil {
		return nil, err
	}

	cat, skipped, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		l.log.WithField("entries", skipped).Debug("skipped non-platform catalog entries")
	}
	l.log.WithField("platforms", cat.Len()).Debug("catalog loaded")
	return cat, nil
}

func (l *Loader) read(ctx context.Context) ([]byte, error) {
	if !isRemote(l.source) {
		raw, err := os.ReadFile(l.source)
		if err != nil {
			return nil, errors.Wrapf(ErrUnavailable, "read %s: %v", l.source, err)
		}
		return raw, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "build request: %v", err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "fetch: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a small snippet for diagnostics.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Wrapf(ErrUnavailable, "fetch: %s (%s)", resp.Status, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "read body: %v", err)
	}
	return body, nil
}

func isRemote(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
