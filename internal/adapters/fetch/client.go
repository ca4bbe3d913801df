// Package fetch retrieves remote geohash lists over HTTP.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/sakibstark11/geoplotter/internal/core/domain"
)

// Client implements ports.SourceFetcher with fasthttp. Every request asks
// intermediaries for a fresh copy.
type Client struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// maxRedirects caps how many 3xx hops a fetch follows.
const maxRedirects = 5

// New creates a new Client.
func New(timeout time.Duration, userAgent string) *Client {
	return &Client{
		client: &fasthttp.Client{
			Name:                userAgent,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
			MaxResponseBodySize: 16 * 1024 * 1024,
		},
		timeout: timeout,
	}
}

// Fetch GETs url and returns the body of a 2xx response. Anything else,
// transport errors included, is wrapped in domain.ErrSourceUnavailable.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrSourceUnavailable, url, err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: GET %s: deadline exceeded", domain.ErrSourceUnavailable, url)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderCacheControl, "no-cache, no-store")
	req.Header.Set(fasthttp.HeaderPragma, "no-cache")
	req.Header.Set(fasthttp.HeaderAccept, "text/plain, */*")

	req.SetTimeout(timeout)
	if err := c.client.DoRedirects(req, resp, maxRedirects); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrSourceUnavailable, url, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: GET %s: status %d", domain.ErrSourceUnavailable, url, status)
	}

	// The response buffer is recycled on release.
	return append([]byte(nil), resp.Body()...), nil
}
