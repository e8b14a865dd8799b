package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	qrsSchema = `
		CREATE TABLE IF NOT EXISTS qrs (
			id          UUID PRIMARY KEY,
			owner_id    TEXT        NOT NULL,
			name        TEXT        NOT NULL DEFAULT '',
			destination TEXT        NOT NULL,
			slug        TEXT        NOT NULL UNIQUE,
			style       JSONB       NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_qrs_owner_created ON qrs(owner_id, created_at DESC);`

	scansSchema = `
		CREATE TABLE IF NOT EXISTS scans (
			id          UUID PRIMARY KEY,
			qr_id       UUID        NOT NULL REFERENCES qrs(id),
			scanned_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			device_type TEXT        NOT NULL DEFAULT '',
			os          TEXT        NOT NULL DEFAULT '',
			browser     TEXT        NOT NULL DEFAULT '',
			ip          TEXT        NOT NULL DEFAULT '',
			country     TEXT        NOT NULL DEFAULT '',
			city        TEXT        NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_scans_qr_id ON scans(qr_id);`
)

// Migrate creates the qrs and scans tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, qrsSchema); err != nil {
		return fmt.Errorf("create qrs table: %w", err)
	}

	if _, err := pool.Exec(ctx, scansSchema); err != nil {
		return fmt.Errorf("create scans table: %w", err)
	}

	return nil
}
