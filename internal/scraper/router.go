package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"price_tracker/internal/models"
)

// Router maps product URLs to the site that knows how to scrape them.
type Router struct {
	sites []*Site
}

func NewRouter(sites ...*Site) *Router {
	return &Router{sites: sites}
}

// Resolve classifies rawURL by host. The first registered site whose domain
// appears in the host wins.
func (r *Router) Resolve(rawURL string) (*Site, error) {
	const op = "scraper.Router.Resolve"

	u, err := parseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, s := range r.sites {
		if s.matchesHost(u.Host) {
			return s, nil
		}
	}

	return nil, fmt.Errorf("%s: %w: %s", op, ErrUnsupportedSite, u.Host)
}

// ValidateProductURL reports whether rawURL is a product page of site.
func (r *Router) ValidateProductURL(rawURL string, site models.Site) bool {
	u, err := parseURL(rawURL)
	if err != nil {
		return false
	}

	for _, s := range r.sites {
		if s.Name == site {
			return s.ValidateProductURL(u)
		}
	}

	return false
}

// Validate resolves rawURL and checks it is a product page, as registration
// requires.
func (r *Router) Validate(rawURL string) (models.Site, error) {
	const op = "scraper.Router.Validate"

	s, err := r.Resolve(rawURL)
	if err != nil {
		return "", err
	}

	if !r.ValidateProductURL(rawURL, s.Name) {
		return "", fmt.Errorf("%s: %w: not a %s product page", op, ErrInvalidProductURL, s.Name)
	}

	return s.Name, nil
}

// Scrape resolves rawURL and scrapes it. Unsupported URLs produce a failed
// result rather than an error.
func (r *Router) Scrape(ctx context.Context, rawURL string) models.ExtractionResult {
	s, err := r.Resolve(rawURL)
	if err != nil {
		return failure(err)
	}

	return s.Scrape(ctx, rawURL)
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProductURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProductURL, rawURL)
	}

	return u, nil
}
