package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"price_tracker/internal/models"
	"price_tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SQLiteRepo {
	t.Helper()

	r, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func ptr(v float64) *float64 { return &v }

func product(url string, userID int64, price *float64) models.Product {
	p := models.Product{
		Name:        "product " + url,
		URL:         url,
		Site:        models.Flipkart,
		TargetPrice: 100,
		IsActive:    true,
		UserID:      userID,
	}
	if price != nil {
		now := time.Now()
		p.CurrentPrice, p.LowestPrice, p.HighestPrice = price, price, price
		p.LastChecked = &now
	}
	return p
}

func TestSaveAndGetProduct(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	id, err := r.SaveProduct(ctx, product("https://www.flipkart.com/a/p/1", 7, ptr(150)))
	require.NoError(t, err)

	got, err := r.ProductByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.Flipkart, got.Site)
	assert.Equal(t, int64(7), got.UserID)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.CurrentPrice)
	assert.Equal(t, 150.0, *got.CurrentPrice)
	assert.False(t, got.CreatedAt.IsZero())

	byURL, err := r.ProductByURL(ctx, "https://www.flipkart.com/a/p/1")
	require.NoError(t, err)
	assert.Equal(t, id, byURL.ID)

	history, err := r.PriceHistory(ctx, id, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 150.0, history[0].Price)

	_, err = r.ProductByID(ctx, id+1)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
}

func TestSaveProductRejectsDuplicateURL(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	_, err := r.SaveProduct(ctx, product("https://www.flipkart.com/a/p/1", 1, ptr(10)))
	require.NoError(t, err)

	dup := product("https://www.flipkart.com/a/p/1", 2, ptr(99))
	dup.Name = "another name"
	dup.TargetPrice = 5

	_, err = r.SaveProduct(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrProductAlreadyTracked)

	stats, err := r.Stats(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalProducts)
	assert.Equal(t, int64(1), stats.TotalChecks)
}

func TestProductsPaginationIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	for i := range 5 {
		_, err := r.SaveProduct(ctx, product(fmt.Sprintf("https://www.flipkart.com/u1/p/%d", i), 1, nil))
		require.NoError(t, err)
	}
	_, err := r.SaveProduct(ctx, product("https://www.flipkart.com/u2/p/1", 2, nil))
	require.NoError(t, err)

	page, total, err := r.Products(ctx, 1, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 1)

	page, total, err = r.Products(ctx, 2, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].UserID)
}

func TestUpdatePriceAndHistoryOrder(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	id, err := r.SaveProduct(ctx, product("https://www.flipkart.com/a/p/1", 1, nil))
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i, price := range []float64{300, 250, 275} {
		require.NoError(t, r.AddPriceSample(ctx, id, price, base.Add(time.Duration(i)*time.Minute)))
	}

	now := time.Now()
	p, err := r.ProductByID(ctx, id)
	require.NoError(t, err)
	p.CurrentPrice, p.LowestPrice, p.HighestPrice, p.LastChecked = ptr(275), ptr(250), ptr(300), &now
	require.NoError(t, r.UpdatePrice(ctx, p))

	got, err := r.ProductByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 275.0, *got.CurrentPrice)
	assert.Equal(t, 250.0, *got.LowestPrice)
	assert.Equal(t, 300.0, *got.HighestPrice)
	require.NotNil(t, got.LastChecked)
	assert.WithinDuration(t, now, *got.LastChecked, time.Second)

	history, err := r.PriceHistory(ctx, id, base.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 275.0, history[0].Price)
	assert.Equal(t, 250.0, history[1].Price)
}

func TestMissingProductWrites(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	err := r.UpdatePrice(ctx, models.Product{ID: 42, CurrentPrice: ptr(1)})
	assert.ErrorIs(t, err, storage.ErrProductNotFound)

	err = r.AddPriceSample(ctx, 42, 1, time.Now())
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
}

func TestToggleProduct(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	id, err := r.SaveProduct(ctx, product("https://www.flipkart.com/a/p/1", 1, ptr(10)))
	require.NoError(t, err)

	active, err := r.ToggleProduct(ctx, id, 1)
	require.NoError(t, err)
	assert.False(t, active)

	list, err := r.ActiveProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	history, err := r.PriceHistory(ctx, id, time.Time{})
	require.NoError(t, err)
	assert.Len(t, history, 1)

	active, err = r.ToggleProduct(ctx, id, 1)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = r.ToggleProduct(ctx, id, 2)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
}

func TestDeleteProductCascadesHistory(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	id, err := r.SaveProduct(ctx, product("https://www.flipkart.com/a/p/1", 1, ptr(10)))
	require.NoError(t, err)
	require.NoError(t, r.AddPriceSample(ctx, id, 12, time.Now()))

	err = r.DeleteProduct(ctx, id, 2)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)

	require.NoError(t, r.DeleteProduct(ctx, id, 1))

	stats, err := r.Stats(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalProducts)
	assert.Equal(t, int64(0), stats.TotalChecks)

	_, err = r.ProductByID(ctx, id)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	a, err := r.SaveProduct(ctx, product("https://www.flipkart.com/a/p/1", 1, ptr(10)))
	require.NoError(t, err)

	amazon := product("https://www.amazon.com/dp/B1", 1, nil)
	amazon.Site = models.Amazon
	b, err := r.SaveProduct(ctx, amazon)
	require.NoError(t, err)

	require.NoError(t, r.AddPriceSample(ctx, b, 5, time.Now().Add(-48*time.Hour)))
	_, err = r.ToggleProduct(ctx, a, 1)
	require.NoError(t, err)

	st, err := r.Stats(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int64(2), st.TotalProducts)
	assert.Equal(t, int64(1), st.ActiveProducts)
	assert.Equal(t, int64(2), st.TotalChecks)
	assert.Equal(t, int64(1), st.RecentChecks)
	assert.Equal(t, []models.SiteCount{
		{Site: models.Amazon, Count: 1},
		{Site: models.Flipkart, Count: 1},
	}, st.PerSite)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")

	r, err := New(path)
	require.NoError(t, err)
	_, err = r.SaveProduct(context.Background(), product("https://www.flipkart.com/a/p/1", 1, nil))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r, err = New(path)
	require.NoError(t, err)
	defer r.Close()

	st, err := r.Stats(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalProducts)
}
