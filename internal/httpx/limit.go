package httpx

import (
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// LimitedClient caps the request rate of the wrapped Doer. Waiting honors
// the request's context.
type LimitedClient struct {
	next    Doer
	limiter *rate.Limiter
}

// NewLimitedClient allows rps requests per second with the given burst.
// A non-positive rps returns next unchanged.
func NewLimitedClient(next Doer, rps float64, burst int) Doer {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *LimitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}
	return c.next.Do(req)
}
