package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.8",
	"en-IN,en;q=0.9,hi;q=0.7",
	"en-US,en;q=0.8,de;q=0.5",
}

var referers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
}

// Fetcher retrieves the raw document behind a product URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CollyFetcher performs a single GET per call. Each call builds its own
// collector so header randomisation applies per attempt.
type CollyFetcher struct {
	Timeout time.Duration
	// RandomizeHeaders rotates user agent, referer and accept-language on
	// every request, for sites with stronger bot detection.
	RandomizeHeaders bool
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	const op = "scraper.CollyFetcher.Fetch"

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(defaultUserAgent),
	)

	// the collector's own client timeout is not seen by requests routed
	// through ctxTransport; ctx carries the deadline instead
	c.WithTransport(&ctxTransport{ctx: ctx, base: http.DefaultTransport})

	if f.RandomizeHeaders {
		extensions.RandomUserAgent(c)
	}

	c.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders {
			r.Headers.Set(k, v)
		}
		if f.RandomizeHeaders {
			r.Headers.Set("Accept-Language", acceptLanguages[rand.IntN(len(acceptLanguages))])
			r.Headers.Set("Referer", referers[rand.IntN(len(referers))])
		}
	})

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if err := c.Visit(url); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%s: %w: empty response body", op, ErrNetwork)
	}

	return body, nil
}

// ctxTransport binds every request of a collector to ctx, so cancelling a
// sweep aborts the fetch in flight.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
