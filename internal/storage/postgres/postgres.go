package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"price_tracker/internal/config"
	"price_tracker/internal/models"
	"price_tracker/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id, name, url, site, current_price, target_price, lowest_price,
	highest_price, last_checked, is_active, user_id, created_at`

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping failed: %w", op, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// * SaveProduct добавляет продукт вместе с первой точкой истории цен
func (r *PostgresRepo) SaveProduct(ctx context.Context, p models.Product) (int64, error) {
	const op = "storage.postgres.SaveProduct"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const query = `
		INSERT INTO products (name, url, site, current_price, target_price, lowest_price,
			highest_price, last_checked, is_active, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64

	err = tx.QueryRow(ctx, query,
		p.Name, p.URL, p.Site, p.CurrentPrice, p.TargetPrice, p.LowestPrice,
		p.HighestPrice, p.LastChecked, p.IsActive, p.UserID,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == storage.UniqueViolation {
			return 0, storage.ErrProductAlreadyTracked
		}

		return 0, fmt.Errorf("%s: failed to save product: %w", op, err)
	}

	if p.CurrentPrice != nil {
		ts := time.Now().UTC()
		if p.LastChecked != nil {
			ts = *p.LastChecked
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO price_history (product_id, price, timestamp) VALUES ($1, $2, $3)`,
			id, *p.CurrentPrice, ts,
		)
		if err != nil {
			return 0, fmt.Errorf("%s: failed to save first sample: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return id, nil
}

// * Products возвращает слайс продуктов для вывода пользователю
func (r *PostgresRepo) Products(ctx context.Context, userID, limit, offset int64) ([]models.Product, int64, error) {
	const op = "storage.postgres.Products"

	// * Начинаем read-only транзакцию
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := tx.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: query: %w", op, err)
	}

	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Product])
	if err != nil {
		return nil, 0, fmt.Errorf("%s: collect: %w", op, err)
	}

	var total int64
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return products, total, nil
}

// * ActiveProducts возвращает снимок всех активных продуктов в порядке добавления
func (r *PostgresRepo) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	const op = "storage.postgres.ActiveProducts"

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+`
		FROM products
		WHERE is_active
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Product])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	return products, nil
}

func (r *PostgresRepo) ProductByID(ctx context.Context, productID int64) (models.Product, error) {
	const op = "storage.postgres.ProductByID"

	return r.productBy(ctx, op, `id = $1`, productID)
}

func (r *PostgresRepo) ProductByURL(ctx context.Context, url string) (models.Product, error) {
	const op = "storage.postgres.ProductByURL"

	return r.productBy(ctx, op, `url = $1`, url)
}

func (r *PostgresRepo) productBy(ctx context.Context, op, cond string, arg any) (models.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE `+cond, arg)
	if err != nil {
		return models.Product{}, fmt.Errorf("%s: query: %w", op, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Product{}, storage.ErrProductNotFound
		}

		return models.Product{}, fmt.Errorf("%s: failed to scan product: %w", op, err)
	}

	return p, nil
}

// * UpdatePrice записывает результат проверки цены
func (r *PostgresRepo) UpdatePrice(ctx context.Context, p models.Product) error {
	const op = "storage.postgres.UpdatePrice"

	const query = `
		UPDATE products
		SET current_price = $1,
			lowest_price = $2,
			highest_price = $3,
			last_checked = $4
		WHERE id = $5
	`

	cmd, err := r.pool.Exec(ctx, query, p.CurrentPrice, p.LowestPrice, p.HighestPrice, p.LastChecked, p.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmd.RowsAffected() == 0 {
		return storage.ErrProductNotFound
	}

	return nil
}

func (r *PostgresRepo) AddPriceSample(ctx context.Context, productID int64, price float64, at time.Time) error {
	const op = "storage.postgres.AddPriceSample"

	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_history (product_id, price, timestamp) VALUES ($1, $2, $3)`,
		productID, price, at,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return storage.ErrProductNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * PriceHistory возвращает историю цен начиная с since, новые записи первыми
func (r *PostgresRepo) PriceHistory(ctx context.Context, productID int64, since time.Time) ([]models.PriceSample, error) {
	const op = "storage.postgres.PriceHistory"

	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, price, timestamp
		FROM price_history
		WHERE product_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC, id DESC
	`, productID, since)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	history, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PriceSample])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	return history, nil
}

// * ToggleProduct переключает активность продукта и возвращает новое значение
func (r *PostgresRepo) ToggleProduct(ctx context.Context, productID, userID int64) (bool, error) {
	const op = "storage.postgres.ToggleProduct"

	var active bool

	err := r.pool.QueryRow(ctx, `
		UPDATE products SET is_active = NOT is_active
		WHERE id = $1 AND user_id = $2
		RETURNING is_active
	`, productID, userID).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, storage.ErrProductNotFound
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return active, nil
}

// * DeleteProduct удаляет продукт по productID и userID, история удаляется каскадно
func (r *PostgresRepo) DeleteProduct(ctx context.Context, productID, userID int64) error {
	const op = "storage.postgres.DeleteProduct"

	const query = `
		DELETE FROM products
		WHERE id = $1 AND user_id = $2
	`

	cmd, err := r.pool.Exec(ctx, query, productID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmd.RowsAffected() == 0 {
		return storage.ErrProductNotFound
	}

	return nil
}

func (r *PostgresRepo) Stats(ctx context.Context, since time.Time) (models.Stats, error) {
	const op = "storage.postgres.Stats"

	var st models.Stats

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM products WHERE is_active),
			(SELECT COUNT(*) FROM price_history),
			(SELECT COUNT(*) FROM price_history WHERE timestamp >= $1)
	`, since).Scan(&st.TotalProducts, &st.ActiveProducts, &st.TotalChecks, &st.RecentChecks)
	if err != nil {
		return st, fmt.Errorf("%s: counts: %w", op, err)
	}

	rows, err := r.pool.Query(ctx, `SELECT site, COUNT(*) AS count FROM products GROUP BY site ORDER BY site`)
	if err != nil {
		return st, fmt.Errorf("%s: per site: %w", op, err)
	}

	st.PerSite, err = pgx.CollectRows(rows, pgx.RowToStructByName[models.SiteCount])
	if err != nil {
		return st, fmt.Errorf("%s: collect: %w", op, err)
	}

	return st, nil
}

// * Close закрывает соединение с базой данных.
func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

// * dsn формирует конфигурацию базы данных.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
