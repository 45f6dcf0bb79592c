package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"price_tracker/internal/models"
	"price_tracker/internal/storage"

	"github.com/redis/go-redis/v9"
)

// minTTL: entries that would live shorter than this are not written.
const minTTL = time.Second

// ProductCache keeps recently read products so repeated lookups skip the
// primary store. Entries of active products expire when the next scheduled
// price check is due, since the sweep will change them then anyway.
type ProductCache struct {
	client *redis.Client
	// MaxTTL bounds every entry.
	MaxTTL time.Duration
	// CheckInterval is the sweep cadence; zero means entries live for MaxTTL.
	CheckInterval time.Duration

	now func() time.Time
}

func New(ctx context.Context, address string, db int, maxTTL, checkInterval time.Duration) (*ProductCache, error) {
	const op = "storage.redis.New"

	rdb := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ProductCache{
		client:        rdb,
		MaxTTL:        maxTTL,
		CheckInterval: checkInterval,
		now:           time.Now,
	}, nil
}

// ttl is how long p may stay cached. It returns zero when p is about to be
// re-checked and caching it would serve a stale price.
func (c *ProductCache) ttl(p models.Product) time.Duration {
	ttl := c.MaxTTL

	if p.IsActive && p.LastChecked != nil && c.CheckInterval > 0 {
		untilCheck := p.LastChecked.Add(c.CheckInterval).Sub(c.now())
		ttl = min(ttl, untilCheck)
	}

	if ttl < minTTL {
		return 0
	}
	return ttl
}

func (c *ProductCache) SaveProduct(ctx context.Context, product models.Product) error {
	const op = "storage.redis.SaveProduct"

	ttl := c.ttl(product)
	if ttl == 0 {
		return nil
	}

	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.client.Set(ctx, productKey(product.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Product returns storage.ErrProductNotFound on a cache miss.
func (c *ProductCache) Product(ctx context.Context, productID int64) (models.Product, error) {
	const op = "storage.redis.Product"

	data, err := c.client.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Product{}, storage.ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		// a corrupt entry is dropped and treated as a miss
		c.client.Del(ctx, productKey(productID))
		return models.Product{}, storage.ErrProductNotFound
	}

	return product, nil
}

// DeleteProduct drops the cached copy after the product changed in the
// primary store.
func (c *ProductCache) DeleteProduct(ctx context.Context, productID int64) error {
	const op = "storage.redis.DeleteProduct"

	if err := c.client.Del(ctx, productKey(productID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *ProductCache) Close() error {
	return c.client.Close()
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}
