package scraper

import (
	"time"

	"price_tracker/internal/models"
)

type Options struct {
	Timeout       time.Duration
	MaxAttempts   int
	RetryDelayMin time.Duration
	RetryDelayMax time.Duration
}

func (o Options) retry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: o.MaxAttempts,
		DelayMin:    o.RetryDelayMin,
		DelayMax:    o.RetryDelayMax,
	}
}

var amazonPriceSelectors = []string{
	".a-price.priceToPay .a-price-whole",
	".a-price.reinventPricePriceToPayMargin .a-price-whole",
	".a-price.aok-align-center .a-price-whole",
	".a-price .a-price-whole",
	".a-price.a-text-price.a-size-medium.apexPriceToPay .a-offscreen",
	".a-price-whole",
	".a-price .a-offscreen",
	".priceBlockBuyingPriceString",
	".priceBlockDealPriceString",
}

// NewAmazon builds the Amazon handler. Amazon blocks plain clients more often,
// so headers are randomised on every attempt.
func NewAmazon(opts Options) *Site {
	ext := Extractor{
		Name: []NameStrategy{
			SelectText("#productTitle"),
			SelectText(".product-title"),
			SelectText("h1.a-size-large"),
		},
	}

	for _, sel := range amazonPriceSelectors {
		ext.Price = append(ext.Price, SelectPrice(sel))
	}
	ext.Price = append(ext.Price, SplitPrice(
		[]string{".a-price.priceToPay", ".a-price.reinventPricePriceToPayMargin"},
		".a-price-whole",
		".a-price-fraction",
	))

	return &Site{
		Name:        models.Amazon,
		Domains:     []string{"amazon"},
		PathMarkers: []string{"/dp/", "/gp/product/"},
		Fetcher:     &CollyFetcher{Timeout: opts.Timeout, RandomizeHeaders: true},
		Extractor:   ext,
		Retry:       opts.retry(),
	}
}

func NewFlipkart(opts Options) *Site {
	return &Site{
		Name:        models.Flipkart,
		Domains:     []string{"flipkart"},
		PathMarkers: []string{"/p/"},
		Fetcher:     &CollyFetcher{Timeout: opts.Timeout},
		Extractor: Extractor{
			Name: []NameStrategy{
				SelectText("span.VU-ZEz"),
				SelectText("span.B_NuCI"),
				SelectText("h1._6EBuvT span"),
			},
			Price: []PriceStrategy{
				SelectPrice("div.Nx9bqj.CxhGGd"),
				SelectPrice("div._30jeq3._16Jk6d"),
				SelectPrice("div._30jeq3"),
			},
		},
		Retry: opts.retry(),
	}
}

// DefaultSites returns every supported site in routing order.
func DefaultSites(opts Options) []*Site {
	return []*Site{NewAmazon(opts), NewFlipkart(opts)}
}
