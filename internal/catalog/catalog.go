// Package catalog loads the platform catalog: an ordered set of platforms,
// each with a profile URL template containing a "{}" username placeholder.
package catalog

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	// DefaultURL is the upstream catalog document.
	DefaultURL = "https://raw.githubusercontent.com/0xSaikat/findme/main/data.json"

	// MetaPrefix marks top-level keys that carry metadata ("$schema", ...).
	MetaPrefix = "$"

	// Placeholder is replaced by the username in a URL template.
	Placeholder = "{}"
)

// ErrUnavailable is returned when the catalog cannot be fetched or parsed.
var ErrUnavailable = errors.New("catalog unavailable")

var validate = validator.New()

type Platform struct {
	Name       string            `json:"name"`
	URL        string            `json:"url" validate:"required"`
	RegexCheck string            `json:"regexCheck,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// ProfileURL substitutes username for the first placeholder only.
func (p Platform) ProfileURL(username string) string {
	return strings.Replace(p.URL, Placeholder, username, 1)
}

// Catalog keeps platforms in document order. It is read-only once built.
type Catalog struct {
	Platforms []Platform
	Meta      map[string]string
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Platforms)
}

func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		names = append(names, p.Name)
	}
	return names
}

// Lookup finds a platform by name, ignoring case.
func (c *Catalog) Lookup(name string) (Platform, bool) {
	if c == nil {
		return Platform{}, false
	}
	for _, p := range c.Platforms {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Platform{}, false
}

// Filter narrows the catalog to the selected platform names (case-insensitive).
// Catalog order is preserved; names that match nothing are returned as unknown.
func (c *Catalog) Filter(selected []string) (*Catalog, []string) {
	want := make(map[string]bool, len(selected))
	var unknown []string
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := c.Lookup(s); !ok {
			unknown = append(unknown, s)
			continue
		}
		want[strings.ToLower(s)] = true
	}

	out := &Catalog{Meta: c.Meta}
	for _, p := range c.Platforms {
		if want[strings.ToLower(p.Name)] {
			out.Platforms = append(out.Platforms, p)
		}
	}
	return out, unknown
}

// Parse builds a Catalog from a JSON object document. Metadata keys and
// records without a non-empty string "url" are skipped; skipped returns their
// keys. A duplicate key keeps its first position and its last value.
func Parse(raw []byte) (cat *Catalog, skipped []string, err error) {
	if !gjson.ValidBytes(raw) {
		return nil, nil, errors.Wrap(ErrUnavailable, "malformed json")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, nil, errors.Wrapf(ErrUnavailable, "expected json object, got %s", root.Type)
	}

	cat = &Catalog{Meta: map[string]string{}}
	index := map[string]int{}

	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if strings.HasPrefix(name, MetaPrefix) {
			cat.Meta[name] = value.String()
			return true
		}

		p, ok := decodePlatform(name, value)
		if !ok {
			skipped = append(skipped, name)
			return true
		}

		if i, seen := index[name]; seen {
			cat.Platforms[i] = p
			return true
		}
		index[name] = len(cat.Platforms)
		cat.Platforms = append(cat.Platforms, p)
		return true
	})

	return cat, skipped, nil
}

func decodePlatform(name string, value gjson.Result) (Platform, bool) {
	if !value.IsObject() {
		return Platform{}, false
	}
	u := value.Get("url")
	if u.Type != gjson.String {
		return Platform{}, false
	}

	p := Platform{Name: name, URL: u.String()}
	if rc := value.Get("regexCheck"); rc.Type == gjson.String {
		p.RegexCheck = rc.String()
	}
	if h := value.Get("headers"); h.IsObject() {
		h.ForEach(func(k, v gjson.Result) bool {
			if k.String() == "" || v.Type != gjson.String {
				return true
			}
			if p.Headers == nil {
				p.Headers = map[string]string{}
			}
			p.Headers[k.String()] = v.String()
			return true
		})
	}

	if err := validate.Struct(p); err != nil {
		return Platform{}, false
	}
	return p, true
}
