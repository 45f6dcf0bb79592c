package pricecheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"price_tracker/internal/lib/jitter"
	"price_tracker/internal/lib/logger/sl"
	"price_tracker/internal/models"
	"price_tracker/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type Store interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
	UpdatePrice(ctx context.Context, p models.Product) error
	AddPriceSample(ctx context.Context, productID int64, price float64, at time.Time) error
}

type Scraper interface {
	Scrape(ctx context.Context, url string) models.ExtractionResult
}

// Dispatcher hands an alert to the notification side. A returned error is
// logged and never undoes the price update.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.AlertEvent) error
}

// Cache is told about every product whose stored copy changed.
type Cache interface {
	DeleteProduct(ctx context.Context, productID int64) error
}

type Summary struct {
	RunID      uuid.UUID `json:"run_id"`
	Total      int       `json:"total"`
	Updated    int       `json:"updated"`
	Failed     int       `json:"failed"`
	Alerts     int       `json:"alerts"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Sweeper struct {
	log        *slog.Logger
	store      Store
	scraper    Scraper
	dispatcher Dispatcher
	cache      Cache

	PaceMin time.Duration
	PaceMax time.Duration

	now   func() time.Time
	group singleflight.Group
	busy  atomic.Bool
}

func NewSweeper(log *slog.Logger, store Store, scraper Scraper, dispatcher Dispatcher, paceMin, paceMax time.Duration) *Sweeper {
	return &Sweeper{
		log:        log,
		store:      store,
		scraper:    scraper,
		dispatcher: dispatcher,
		PaceMin:    paceMin,
		PaceMax:    paceMax,
		now:        time.Now,
	}
}

// WithCache sets the cache invalidated after each price update.
func (s *Sweeper) WithCache(c Cache) *Sweeper {
	s.cache = c
	return s
}

// InProgress reports whether a sweep is currently running.
func (s *Sweeper) InProgress() bool {
	return s.busy.Load()
}

// Run performs one sweep over all active products. A call made while another
// sweep is running waits for it and shares its result instead of starting a
// second pass.
//
// Per-product scrape failures are counted and skipped. Storage errors abort
// the sweep and are returned along with the partial summary.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	v, err, shared := s.group.Do("sweep", func() (any, error) {
		s.busy.Store(true)
		defer s.busy.Store(false)

		return s.sweep(ctx)
	})
	if shared {
		s.log.Debug("joined running sweep")
	}

	return v.(Summary), err
}

func (s *Sweeper) sweep(ctx context.Context) (Summary, error) {
	const op = "pricecheck.Sweeper.sweep"

	sum := Summary{RunID: uuid.New(), StartedAt: s.now()}

	log := s.log.With(
		slog.String("op", op),
		slog.String("run_id", sum.RunID.String()),
	)

	products, err := s.store.ActiveProducts(ctx)
	if err != nil {
		sum.FinishedAt = s.now()
		return sum, fmt.Errorf("%s: %w", op, err)
	}

	sum.Total = len(products)
	log.Info("sweep started", slog.Int("products", sum.Total))

	for _, p := range products {
		alerted, err := s.check(ctx, log, p)
		switch {
		case err == nil:
			sum.Updated++
			if alerted {
				sum.Alerts++
			}
		case errors.Is(err, errScrape), errors.Is(err, storage.ErrProductNotFound):
			sum.Failed++
		default:
			sum.FinishedAt = s.now()
			log.Error("sweep aborted", sl.Err(err))
			return sum, fmt.Errorf("%s: %w", op, err)
		}

		if err := jitter.Sleep(ctx, jitter.Between(s.PaceMin, s.PaceMax)); err != nil {
			sum.FinishedAt = s.now()
			log.Warn("sweep interrupted", sl.Err(err))
			return sum, fmt.Errorf("%s: %w", op, err)
		}
	}

	sum.FinishedAt = s.now()

	log.Info("sweep finished",
		slog.Int("updated", sum.Updated),
		slog.Int("failed", sum.Failed),
		slog.Int("alerts", sum.Alerts),
		slog.Duration("took", sum.FinishedAt.Sub(sum.StartedAt)),
	)

	return sum, nil
}

var errScrape = errors.New("no price scraped")

// check runs the pipeline for a single product: scrape, update, history,
// alert. The bool reports whether an alert was handed off.
func (s *Sweeper) check(ctx context.Context, log *slog.Logger, p models.Product) (bool, error) {
	log = log.With(slog.Int64("product_id", p.ID))

	res := s.scraper.Scrape(ctx, p.URL)
	if !res.Success || res.Price == nil {
		log.Warn("price check failed", slog.String("url", p.URL), slog.String("reason", res.Error))
		return false, errScrape
	}

	now := s.now()
	updated, alert := ApplyPrice(p, *res.Price, now)

	if err := s.store.UpdatePrice(ctx, updated); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			log.Info("product removed during sweep")
		}
		return false, err
	}

	if err := s.store.AddPriceSample(ctx, p.ID, *res.Price, now); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			log.Info("product removed during sweep")
		}
		return false, err
	}

	if s.cache != nil {
		if err := s.cache.DeleteProduct(ctx, p.ID); err != nil {
			log.Warn("failed to invalidate cached product", sl.Err(err))
		}
	}

	log.Debug("price updated", slog.Float64("price", *res.Price))

	if !alert {
		return false, nil
	}

	if err := s.dispatcher.Dispatch(ctx, Alert(updated)); err != nil {
		log.Error("failed to dispatch alert", sl.Err(err))
		return false, nil
	}

	log.Info("price alert dispatched",
		slog.Float64("price", *res.Price),
		slog.Float64("target", p.TargetPrice),
	)

	return true, nil
}
