package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"price_tracker/internal/models"
	"price_tracker/internal/storage"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const productColumns = `id, name, url, site, current_price, target_price, lowest_price,
	highest_price, last_checked, is_active, user_id, created_at`

// SQLiteRepo is the embedded product store used for single-node deployments
// and tests. It implements the same method set as the Postgres repository.
type SQLiteRepo struct {
	db *sqlx.DB
}

// New opens (or creates) a SQLite database at dbPath, enables WAL mode and
// foreign keys, and applies pending migrations.
func New(dbPath string) (*SQLiteRepo, error) {
	const op = "storage.sqlite.New"

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	// One connection serialises writers (sweep and API share the store) and
	// keeps ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: enabling WAL mode: %w", op, err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: enabling foreign keys: %w", op, err)
	}

	r := &SQLiteRepo{db: db}
	if err := r.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: running migrations: %w", op, err)
	}

	return r, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := r.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = r.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := r.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveProduct inserts the product and, when it carries a price, its first
// history row in one transaction.
func (r *SQLiteRepo) SaveProduct(ctx context.Context, p models.Product) (int64, error) {
	const op = "storage.sqlite.SaveProduct"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO products (name, url, site, current_price, target_price, lowest_price,
			highest_price, last_checked, is_active, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.URL, string(p.Site), p.CurrentPrice, p.TargetPrice, p.LowestPrice,
		p.HighestPrice, utcPtr(p.LastChecked), p.IsActive, p.UserID, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrProductAlreadyTracked
		}
		return 0, fmt.Errorf("%s: insert product: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}

	if p.CurrentPrice != nil {
		ts := time.Now().UTC()
		if p.LastChecked != nil {
			ts = p.LastChecked.UTC()
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO price_history (product_id, price, timestamp) VALUES (?, ?, ?)`,
			id, *p.CurrentPrice, ts,
		)
		if err != nil {
			return 0, fmt.Errorf("%s: insert first sample: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return id, nil
}

func (r *SQLiteRepo) Products(ctx context.Context, userID, limit, offset int64) ([]models.Product, int64, error) {
	const op = "storage.sqlite.Products"

	var products []models.Product
	err := r.db.SelectContext(ctx, &products, `SELECT `+productColumns+`
		FROM products
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: select: %w", op, err)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products WHERE user_id = ?`, userID); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	return products, total, nil
}

func (r *SQLiteRepo) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	const op = "storage.sqlite.ActiveProducts"

	var products []models.Product
	err := r.db.SelectContext(ctx, &products, `SELECT `+productColumns+`
		FROM products
		WHERE is_active = 1
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: select: %w", op, err)
	}

	return products, nil
}

func (r *SQLiteRepo) ProductByID(ctx context.Context, productID int64) (models.Product, error) {
	const op = "storage.sqlite.ProductByID"

	return r.productBy(ctx, op, "id = ?", productID)
}

func (r *SQLiteRepo) ProductByURL(ctx context.Context, url string) (models.Product, error) {
	const op = "storage.sqlite.ProductByURL"

	return r.productBy(ctx, op, "url = ?", url)
}

func (r *SQLiteRepo) productBy(ctx context.Context, op, cond string, arg any) (models.Product, error) {
	var p models.Product

	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE `+cond, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Product{}, storage.ErrProductNotFound
		}
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (r *SQLiteRepo) UpdatePrice(ctx context.Context, p models.Product) error {
	const op = "storage.sqlite.UpdatePrice"

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET current_price = ?, lowest_price = ?, highest_price = ?, last_checked = ?
		WHERE id = ?`,
		p.CurrentPrice, p.LowestPrice, p.HighestPrice, utcPtr(p.LastChecked), p.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return requireAffected(res)
}

func (r *SQLiteRepo) AddPriceSample(ctx context.Context, productID int64, price float64, at time.Time) error {
	const op = "storage.sqlite.AddPriceSample"

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, timestamp) VALUES (?, ?, ?)`,
		productID, price, at.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return storage.ErrProductNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *SQLiteRepo) PriceHistory(ctx context.Context, productID int64, since time.Time) ([]models.PriceSample, error) {
	const op = "storage.sqlite.PriceHistory"

	var history []models.PriceSample
	err := r.db.SelectContext(ctx, &history, `
		SELECT id, product_id, price, timestamp
		FROM price_history
		WHERE product_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC`, productID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return history, nil
}

func (r *SQLiteRepo) ToggleProduct(ctx context.Context, productID, userID int64) (bool, error) {
	const op = "storage.sqlite.ToggleProduct"

	var active bool
	err := r.db.GetContext(ctx, &active, `
		UPDATE products SET is_active = NOT is_active
		WHERE id = ? AND user_id = ?
		RETURNING is_active`, productID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, storage.ErrProductNotFound
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return active, nil
}

// DeleteProduct removes the product; price_history rows go with it through
// ON DELETE CASCADE.
func (r *SQLiteRepo) DeleteProduct(ctx context.Context, productID, userID int64) error {
	const op = "storage.sqlite.DeleteProduct"

	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ? AND user_id = ?`, productID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return requireAffected(res)
}

func (r *SQLiteRepo) Stats(ctx context.Context, since time.Time) (models.Stats, error) {
	const op = "storage.sqlite.Stats"

	var st models.Stats

	row := r.db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM products WHERE is_active = 1),
			(SELECT COUNT(*) FROM price_history),
			(SELECT COUNT(*) FROM price_history WHERE timestamp >= ?)`, since.UTC())
	if err := row.Scan(&st.TotalProducts, &st.ActiveProducts, &st.TotalChecks, &st.RecentChecks); err != nil {
		return st, fmt.Errorf("%s: counts: %w", op, err)
	}

	err := r.db.SelectContext(ctx, &st.PerSite,
		`SELECT site, COUNT(*) AS count FROM products GROUP BY site ORDER BY site`)
	if err != nil {
		return st, fmt.Errorf("%s: per site: %w", op, err)
	}

	return st, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrProductNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
