package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"price_tracker/internal/lib/jitter"
	"price_tracker/internal/models"
)

var (
	ErrUnsupportedSite   = errors.New("unsupported site")
	ErrInvalidProductURL = errors.New("invalid product url")
	ErrNetwork           = errors.New("network error")
	ErrExtraction        = errors.New("extraction failed")
)

// RetryPolicy bounds how often a product page is fetched before giving up.
// The wait before attempt n+1 is n times a random duration in
// [DelayMin, DelayMax].
type RetryPolicy struct {
	MaxAttempts int
	DelayMin    time.Duration
	DelayMax    time.Duration
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return time.Duration(attempt) * jitter.Between(p.DelayMin, p.DelayMax)
}

// Site is the handler for one supported retailer: how to recognise its
// product URLs, fetch a page and extract fields from it.
type Site struct {
	Name models.Site
	// Domains are matched as substrings of the URL host.
	Domains []string
	// PathMarkers: a product page path contains at least one of them.
	PathMarkers []string
	Fetcher     Fetcher
	Extractor   Extractor
	Retry       RetryPolicy
}

func (s *Site) matchesHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range s.Domains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// ValidateProductURL reports whether u points to a product page of s.
func (s *Site) ValidateProductURL(u *url.URL) bool {
	if !s.matchesHost(u.Host) {
		return false
	}
	for _, m := range s.PathMarkers {
		if strings.Contains(u.Path, m) {
			return true
		}
	}
	return false
}

// Scrape fetches and extracts url, retrying while the page has not yielded
// both a name and a price. It never returns an error: failures are carried in
// the result. A price seen on any attempt is kept even if later attempts fail.
func (s *Site) Scrape(ctx context.Context, url string) models.ExtractionResult {
	attempts := max(s.Retry.MaxAttempts, 1)

	var (
		last     models.ExtractionResult
		priced   models.ExtractionResult
		bestName string
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := jitter.Sleep(ctx, s.Retry.delay(attempt-1)); err != nil {
				last = failure(fmt.Errorf("%w: %w", ErrNetwork, err))
				break
			}
		}

		doc, err := s.Fetcher.Fetch(ctx, url)
		if err != nil {
			last = failure(err)
			continue
		}

		last = s.Extractor.Extract(doc)
		if last.Name != "" {
			bestName = last.Name
		}
		if last.Complete() {
			return last
		}
		if last.Success && last.Price != nil {
			priced = last
		}
	}

	if priced.Price != nil {
		priced.Name = bestName
		return priced
	}

	if last.Success {
		if last.Name == "" {
			last.Name = bestName
		}
		last.Error = fmt.Sprintf("%s: no price found after %d attempts", ErrExtraction, attempts)
	}

	return last
}
