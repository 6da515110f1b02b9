package httpx

import (
	"net/url"
	"strings"
)

// RelayToken marks where the escaped target URL goes in a relay endpoint.
// Endpoints without the token get the escaped target appended.
const RelayToken = "{url}"

// Relay routes requests through a fetch-on-behalf endpoint such as
// "https://corsproxy.io/?". The zero value requests targets directly.
type Relay struct {
	Endpoint string
}

func (r Relay) Enabled() bool { return strings.TrimSpace(r.Endpoint) != "" }

// Target returns the URL to request for target.
func (r Relay) Target(target string) string {
	if !r.Enabled() {
		return target
	}
	escaped := escapeComponent(target)
	if strings.Contains(r.Endpoint, RelayToken) {
		return strings.Replace(r.Endpoint, RelayToken, escaped, 1)
	}
	return r.Endpoint + escaped
}

// componentUnescaper undoes the QueryEscape output that differs from URI
// component encoding: spaces become %20, and !'()* stay literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent encodes s the way a browser's encodeURIComponent does, which
// is what relay endpoints decode.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
