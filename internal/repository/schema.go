package repository

import (
	"context"
	"database/sql"
)

// The reservations_no_overlap exclusion constraint is what serializes
// concurrent bookings of one court; it needs btree_gist for the text column.
const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS btree_gist;

CREATE TABLE IF NOT EXISTS venues (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS courts (
	id TEXT PRIMARY KEY,
	venue_id TEXT NOT NULL REFERENCES venues(id),
	name TEXT NOT NULL,
	sport_type TEXT NOT NULL,
	price_per_hour NUMERIC(12,2) NOT NULL CHECK (price_per_hour >= 0),
	open_time TEXT NOT NULL DEFAULT '',
	close_time TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_courts_venue_sport ON courts(venue_id, sport_type);

CREATE TABLE IF NOT EXISTS reservations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	venue_id TEXT NOT NULL,
	court_id TEXT NOT NULL REFERENCES courts(id),
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	total_price NUMERIC(12,2) NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled', 'completed')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (end_time > start_time),
	CONSTRAINT reservations_no_overlap EXCLUDE USING gist (
		court_id WITH =,
		tstzrange(start_time, end_time, '[)') WITH &&
	) WHERE (status = 'confirmed')
);

CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id, start_time DESC);

CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	reservation_id TEXT NOT NULL REFERENCES reservations(id),
	provider TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	payment_id TEXT NOT NULL DEFAULT '',
	signature TEXT NOT NULL DEFAULT '',
	amount_minor BIGINT NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT payments_correlation_unique UNIQUE (provider, correlation_id)
);

CREATE TABLE IF NOT EXISTS payment_orders (
	order_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	venue_id TEXT NOT NULL,
	court_id TEXT NOT NULL,
	sport_type TEXT NOT NULL DEFAULT '',
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	amount_minor BIGINT NOT NULL,
	currency TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS payment_incidents (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	payment_id TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL,
	court_id TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	amount_minor BIGINT NOT NULL,
	currency TEXT NOT NULL,
	reason TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT payment_incidents_correlation_unique UNIQUE (provider, correlation_id)
);

CREATE TABLE IF NOT EXISTS admins (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL
);
`

func Migrate(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, schemaSQL)
	return err
}
