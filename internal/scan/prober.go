package scan

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/findme/internal/catalog"
	"github.com/tdh8316/findme/internal/httpx"
)

// Prober checks whether a username exists on one platform.
type Prober interface {
	Probe(ctx context.Context, p catalog.Platform, username string) Probe
}

// HTTPProber classifies a platform by the HTTP status of its profile page,
// optionally fetched through a relay. A 2xx other than 404 means the account
// exists; any other completed response means it does not; transport failures
// are Indeterminate. Status codes are a heuristic: relays and sites that
// answer 200 for missing profiles, or rate-limit pages, are misclassified.
type HTTPProber struct {
	client httpx.Doer
	relay  httpx.Relay
	cfg    Config
	log    logrus.FieldLogger

	// Cache compiled regexCheck expressions
	regexCache    sync.Map // expr -> *regexp2.Regexp
	regexErrCache sync.Map // expr -> error
}

func NewHTTPProber(client httpx.Doer, relay httpx.Relay, cfg Config, log logrus.FieldLogger) *HTTPProber {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpx.DefaultUserAgent
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &HTTPProber{
		client: client,
		relay:  relay,
		cfg:    cfg,
		log:    log,
	}
}

func (pr *HTTPProber) Probe(ctx context.Context, p catalog.Platform, username string) Probe {
	res := Probe{
		Platform:   p.Name,
		ProfileURL: p.ProfileURL(username),
		Outcome:    Indeterminate,
	}
	res.RequestURL = pr.relay.Target(res.ProfileURL)

	if pr.cfg.RegexCheck && p.RegexCheck != "" {
		re, err := pr.getRegex(p.RegexCheck)
		if err != nil {
			res.Err = errors.Wrap(err, "invalid regexCheck")
			return res
		}
		ok, err := re.MatchString(username)
		if err != nil {
			res.Err = errors.Wrap(err, "regexCheck match")
			return res
		}
		if !ok {
			// The platform cannot host this name, so it is neither found nor available.
			res.Err = errors.Errorf("username does not match %s", p.RegexCheck)
			return res
		}
	}

	req, err := httpx.NewRequest(ctx, http.MethodGet, res.RequestURL, nil, pr.cfg.UserAgent)
	if err != nil {
		res.Err = err
		return res
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := pr.client.Do(req)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = err
		pr.log.WithFields(logrus.Fields{"platform": p.Name, "error": err}).Debug("probe failed")
		return res
	}
	defer resp.Body.Close()

	// Drain a little body so the connection can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, pr.cfg.MaxBodyBytes)

	res.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.StatusCode != http.StatusNotFound {
		res.Outcome = Exists
	} else {
		res.Outcome = DoesNotExist
	}

	pr.log.WithFields(logrus.Fields{
		"platform": p.Name,
		"status":   resp.StatusCode,
		"outcome":  res.Outcome,
		"elapsed":  res.Elapsed,
	}).Debug("probe done")
	return res
}

func (pr *HTTPProber) getRegex(expr string) (*regexp2.Regexp, error) {
	if v, ok := pr.regexCache.Load(expr); ok {
		return v.(*regexp2.Regexp), nil
	}
	if v, ok := pr.regexErrCache.Load(expr); ok {
		return nil, v.(error)
	}

	re, err := regexp2.Compile(expr, 0)
	if err != nil {
		pr.regexErrCache.Store(expr, err)
		return nil, err
	}
	pr.regexCache.Store(expr, re)
	return re, nil
}
