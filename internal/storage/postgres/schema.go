package postgres

const foreignKeyViolation = "23503"

// schema is applied on every start, all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	url           TEXT NOT NULL UNIQUE,
	site          TEXT NOT NULL,
	current_price DOUBLE PRECISION,
	target_price  DOUBLE PRECISION NOT NULL,
	lowest_price  DOUBLE PRECISION,
	highest_price DOUBLE PRECISION,
	last_checked  TIMESTAMPTZ,
	is_active     BOOLEAN NOT NULL DEFAULT TRUE,
	user_id       BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS price_history (
	id         BIGSERIAL PRIMARY KEY,
	product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	price      DOUBLE PRECISION NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_products_user_id ON products(user_id);
CREATE INDEX IF NOT EXISTS idx_products_is_active ON products(is_active);
CREATE INDEX IF NOT EXISTS idx_price_history_product_ts ON price_history(product_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_price_history_ts ON price_history(timestamp);
`
