package sqlite

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	url           TEXT NOT NULL UNIQUE,
	site          TEXT NOT NULL,
	current_price REAL,
	target_price  REAL NOT NULL,
	lowest_price  REAL,
	highest_price REAL,
	last_checked  DATETIME,
	is_active     INTEGER NOT NULL DEFAULT 1 CHECK(is_active IN (0, 1)),
	user_id       INTEGER NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS price_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	price      REAL NOT NULL,
	timestamp  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_user_id ON products(user_id);
CREATE INDEX IF NOT EXISTS idx_products_is_active ON products(is_active);
CREATE INDEX IF NOT EXISTS idx_price_history_product_ts ON price_history(product_id, timestamp);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
