package pricecheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"price_tracker/internal/models"
	"price_tracker/internal/storage"
	"price_tracker/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  atomic.Int32
	before func(url string)
}

func (f *fakeScraper) Scrape(_ context.Context, url string) models.ExtractionResult {
	f.calls.Add(1)
	if f.before != nil {
		f.before(url)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	price, ok := f.prices[url]
	if !ok {
		return models.ExtractionResult{Success: false, Error: "network error: timeout"}
	}
	return models.ExtractionResult{Success: true, Name: "name", Price: &price}
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []models.AlertEvent
	err    error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, e models.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type fakeCache struct {
	deleted []int64
}

func (f *fakeCache) DeleteProduct(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *sqlite.SQLiteRepo {
	t.Helper()

	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func addProduct(t *testing.T, s *sqlite.SQLiteRepo, url string, target float64, seed *float64) int64 {
	t.Helper()

	p := models.Product{
		Name:        url,
		URL:         url,
		Site:        models.Amazon,
		TargetPrice: target,
		IsActive:    true,
		UserID:      1,
	}
	if seed != nil {
		p, _ = ApplyPrice(p, *seed, time.Now())
	}

	id, err := s.SaveProduct(context.Background(), p)
	require.NoError(t, err)

	return id
}

func TestSweepIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	scr := &fakeScraper{prices: map[string]float64{}}
	for i := range 5 {
		url := fmt.Sprintf("https://www.amazon.com/dp/P%d", i)
		addProduct(t, store, url, 10, nil)
		if i%2 == 0 {
			scr.prices[url] = 100 + float64(i)
		}
	}

	disp := &fakeDispatcher{}
	cache := &fakeCache{}
	sw := NewSweeper(discardLogger(), store, scr, disp, 0, 0).WithCache(cache)

	sum, err := sw.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.Updated)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 0, sum.Alerts)
	assert.Empty(t, disp.events)
	assert.Len(t, cache.deleted, 3)

	stats, err := store.Stats(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalChecks)

	failed, err := store.ProductByURL(ctx, "https://www.amazon.com/dp/P1")
	require.NoError(t, err)
	assert.Nil(t, failed.CurrentPrice)
	assert.Nil(t, failed.LastChecked)
}

func TestSweepPriceDropScenario(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	const url = "https://www.amazon.com/dp/B0SCENARIO"
	id := addProduct(t, store, url, 500, ptr(600))

	p, err := store.ProductByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 600.0, *p.CurrentPrice)
	assert.Equal(t, 600.0, *p.LowestPrice)
	assert.Equal(t, 600.0, *p.HighestPrice)

	disp := &fakeDispatcher{}
	scr := &fakeScraper{prices: map[string]float64{url: 480}}

	sum, err := NewSweeper(discardLogger(), store, scr, disp, 0, 0).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Alerts)

	p, err = store.ProductByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 480.0, *p.CurrentPrice)
	assert.Equal(t, 480.0, *p.LowestPrice)
	assert.Equal(t, 600.0, *p.HighestPrice)
	require.NotNil(t, p.LastChecked)

	history, err := store.PriceHistory(ctx, id, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 480.0, history[0].Price)
	assert.Equal(t, 600.0, history[1].Price)

	require.Len(t, disp.events, 1)
	assert.Equal(t, models.AlertEvent{
		ProductID:    id,
		ProductName:  url,
		CurrentPrice: 480,
		TargetPrice:  500,
		URL:          url,
	}, disp.events[0])
}

func TestSweepAlertsOnEveryQualifyingSweep(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	const url = "https://www.amazon.com/dp/B0LOW"
	addProduct(t, store, url, 500, nil)

	disp := &fakeDispatcher{}
	sw := NewSweeper(discardLogger(), store, &fakeScraper{prices: map[string]float64{url: 450}}, disp, 0, 0)

	for range 3 {
		_, err := sw.Run(ctx)
		require.NoError(t, err)
	}

	assert.Len(t, disp.events, 3)
}

func TestSweepSkipsInactiveProducts(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	active := addProduct(t, store, "https://www.amazon.com/dp/A", 10, nil)
	paused := addProduct(t, store, "https://www.amazon.com/dp/B", 10, nil)

	on, err := store.ToggleProduct(ctx, paused, 1)
	require.NoError(t, err)
	require.False(t, on)

	scr := &fakeScraper{prices: map[string]float64{
		"https://www.amazon.com/dp/A": 20,
		"https://www.amazon.com/dp/B": 20,
	}}

	sum, err := NewSweeper(discardLogger(), store, scr, &fakeDispatcher{}, 0, 0).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, int32(1), scr.calls.Load())

	p, err := store.ProductByID(ctx, active)
	require.NoError(t, err)
	assert.NotNil(t, p.CurrentPrice)
}

func TestSweepDispatchFailureKeepsUpdate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	const url = "https://www.amazon.com/dp/B0"
	id := addProduct(t, store, url, 100, nil)

	disp := &fakeDispatcher{err: errors.New("smtp: connection refused")}
	sum, err := NewSweeper(discardLogger(), store, &fakeScraper{prices: map[string]float64{url: 90}}, disp, 0, 0).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 0, sum.Alerts)

	p, err := store.ProductByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 90.0, *p.CurrentPrice)

	history, err := store.PriceHistory(ctx, id, time.Time{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSweepProductDeletedMidSweep(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	gone := addProduct(t, store, "https://www.amazon.com/dp/GONE", 10, nil)
	addProduct(t, store, "https://www.amazon.com/dp/KEPT", 10, nil)

	scr := &fakeScraper{
		prices: map[string]float64{
			"https://www.amazon.com/dp/GONE": 20,
			"https://www.amazon.com/dp/KEPT": 20,
		},
		before: func(url string) {
			if url == "https://www.amazon.com/dp/GONE" {
				require.NoError(t, store.DeleteProduct(ctx, gone, 1))
			}
		},
	}

	sum, err := NewSweeper(discardLogger(), store, scr, &fakeDispatcher{}, 0, 0).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Failed)
}

type brokenStore struct {
	Store
}

func (brokenStore) UpdatePrice(context.Context, models.Product) error {
	return errors.New("disk I/O error")
}

func TestSweepAbortsOnStorageError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	addProduct(t, store, "https://www.amazon.com/dp/A", 10, nil)
	addProduct(t, store, "https://www.amazon.com/dp/B", 10, nil)

	scr := &fakeScraper{prices: map[string]float64{
		"https://www.amazon.com/dp/A": 20,
		"https://www.amazon.com/dp/B": 20,
	}}

	sum, err := NewSweeper(discardLogger(), brokenStore{store}, scr, &fakeDispatcher{}, 0, 0).Run(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrProductNotFound)
	assert.Equal(t, 0, sum.Updated)
	assert.Equal(t, int32(1), scr.calls.Load())
}

func TestSweepSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	const url = "https://www.amazon.com/dp/SLOW"
	addProduct(t, store, url, 10, nil)

	release := make(chan struct{})
	scr := &fakeScraper{
		prices: map[string]float64{url: 20},
		before: func(string) { <-release },
	}

	sw := NewSweeper(discardLogger(), store, scr, &fakeDispatcher{}, 0, 0)

	var (
		wg   sync.WaitGroup
		sums [2]Summary
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sums[0], _ = sw.Run(ctx)
	}()

	require.Eventually(t, sw.InProgress, time.Second, 5*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sums[1], _ = sw.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), scr.calls.Load())
	assert.Equal(t, sums[0].RunID, sums[1].RunID)
	assert.False(t, sw.InProgress())
}

func TestSweepStopsOnCancel(t *testing.T) {
	store := newStore(t)

	for i := range 3 {
		addProduct(t, store, fmt.Sprintf("https://www.amazon.com/dp/C%d", i), 10, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scr := &fakeScraper{
		prices: map[string]float64{},
		before: func(string) { cancel() },
	}

	sum, err := NewSweeper(discardLogger(), store, scr, &fakeDispatcher{}, time.Minute, time.Minute).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Failed)
}
