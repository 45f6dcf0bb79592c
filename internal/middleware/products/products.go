package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/models"
	"price_tracker/internal/pricecheck"
	"price_tracker/internal/scraper"
	"price_tracker/internal/storage"
)

const (
	DefaultHistoryDays = 30
	recentWindow       = 24 * time.Hour
	unknownProductName = "Unknown Product"
)

type Store interface {
	SaveProduct(ctx context.Context, p models.Product) (int64, error)
	Products(ctx context.Context, userID, limit, offset int64) ([]models.Product, int64, error)
	ProductByID(ctx context.Context, productID int64) (models.Product, error)
	ProductByURL(ctx context.Context, url string) (models.Product, error)
	PriceHistory(ctx context.Context, productID int64, since time.Time) ([]models.PriceSample, error)
	ToggleProduct(ctx context.Context, productID, userID int64) (bool, error)
	DeleteProduct(ctx context.Context, productID, userID int64) error
	Stats(ctx context.Context, since time.Time) (models.Stats, error)
}

type Cache interface {
	SaveProduct(ctx context.Context, product models.Product) error
	Product(ctx context.Context, productID int64) (models.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error
}

// Router classifies and scrapes product URLs.
type Router interface {
	Validate(rawURL string) (models.Site, error)
	Scrape(ctx context.Context, rawURL string) models.ExtractionResult
}

type ProductOperator struct {
	log    *slog.Logger
	Store  Store
	Cache  Cache
	Router Router
	now    func() time.Time
}

// New builds the operator; cache may be nil.
func New(log *slog.Logger, store Store, cache Cache, router Router) *ProductOperator {
	return &ProductOperator{
		log:    log,
		Store:  store,
		Cache:  cache,
		Router: router,
		now:    time.Now,
	}
}

type Registration struct {
	// Name is optional; the scraped name is used when it is empty.
	Name        string
	URL         string
	TargetPrice float64
	UserID      int64
}

// Register validates the URL, scrapes the page once and stores the product
// seeded with the scraped price and its first history row. No alert is sent
// even if that price is already at or below target.
func (p *ProductOperator) Register(ctx context.Context, reg Registration) (models.Product, error) {
	const op = "middleware.products.Register"

	site, err := p.Router.Validate(reg.URL)
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = p.Store.ProductByURL(ctx, reg.URL)
	switch {
	case err == nil:
		return models.Product{}, storage.ErrProductAlreadyTracked
	case !errors.Is(err, storage.ErrProductNotFound):
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	res := p.Router.Scrape(ctx, reg.URL)
	if !res.Success || res.Price == nil {
		return models.Product{}, fmt.Errorf("%s: %w: %s", op, scraper.ErrExtraction, res.Error)
	}

	name := reg.Name
	if name == "" {
		name = res.Name
	}
	if name == "" {
		name = unknownProductName
	}

	now := p.now()

	product, _ := pricecheck.ApplyPrice(models.Product{
		Name:        name,
		URL:         reg.URL,
		Site:        site,
		TargetPrice: reg.TargetPrice,
		IsActive:    true,
		UserID:      reg.UserID,
		CreatedAt:   now,
	}, *res.Price, now)

	id, err := p.Store.SaveProduct(ctx, product)
	if err != nil {
		if errors.Is(err, storage.ErrProductAlreadyTracked) {
			return models.Product{}, err
		}
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	product.ID = id

	return product, nil
}

// ProductByID reads through the cache. Products of other users are reported
// as not found.
func (p *ProductOperator) ProductByID(ctx context.Context, productID, userID int64) (models.Product, error) {
	const op = "middleware.products.ProductByID"

	product, err := p.cached(ctx, productID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return models.Product{}, err
		}
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	if product.UserID != userID {
		return models.Product{}, storage.ErrProductNotFound
	}

	return product, nil
}

func (p *ProductOperator) cached(ctx context.Context, productID int64) (models.Product, error) {
	if p.Cache != nil {
		product, err := p.Cache.Product(ctx, productID)
		switch {
		case err == nil:
			return product, nil
		case !errors.Is(err, storage.ErrProductNotFound):
			p.log.Warn("cache read failed", slog.Int64("product_id", productID), sl.Err(err))
		}
	}

	product, err := p.Store.ProductByID(ctx, productID)
	if err != nil {
		return models.Product{}, err
	}

	if p.Cache != nil {
		_ = p.Cache.SaveProduct(ctx, product)
	}

	return product, nil
}

func (p *ProductOperator) Products(ctx context.Context, userID, limit, offset int64) ([]models.Product, int64, error) {
	return p.Store.Products(ctx, userID, limit, offset)
}

// History returns the samples of the last days days, newest first.
func (p *ProductOperator) History(ctx context.Context, productID, userID int64, days int) ([]models.PriceSample, error) {
	const op = "middleware.products.History"

	if days <= 0 {
		days = DefaultHistoryDays
	}

	if _, err := p.ProductByID(ctx, productID, userID); err != nil {
		return nil, err
	}

	since := p.now().AddDate(0, 0, -days)

	history, err := p.Store.PriceHistory(ctx, productID, since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return history, nil
}

// Toggle flips the active flag and returns the new value. Inactive products
// are skipped by sweeps but keep their history.
func (p *ProductOperator) Toggle(ctx context.Context, productID, userID int64) (bool, error) {
	active, err := p.Store.ToggleProduct(ctx, productID, userID)
	if err != nil {
		return false, err
	}

	p.invalidate(ctx, productID)

	return active, nil
}

// Delete removes the product together with its history.
func (p *ProductOperator) Delete(ctx context.Context, productID, userID int64) error {
	if err := p.Store.DeleteProduct(ctx, productID, userID); err != nil {
		return err
	}

	p.invalidate(ctx, productID)

	return nil
}

func (p *ProductOperator) Stats(ctx context.Context) (models.Stats, error) {
	return p.Store.Stats(ctx, p.now().Add(-recentWindow))
}

func (p *ProductOperator) invalidate(ctx context.Context, productID int64) {
	if p.Cache == nil {
		return
	}

	if err := p.Cache.DeleteProduct(ctx, productID); err != nil {
		p.log.Warn("cache invalidation failed", slog.Int64("product_id", productID), sl.Err(err))
	}
}
