package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/scanlink/internal/qr"
	"github.com/serroba/scanlink/internal/scan"
)

// uniqueViolation is the SQLSTATE postgres reports for a unique constraint conflict.
const uniqueViolation = "23505"

const linkColumns = `id::text, owner_id, name, destination, slug, style, created_at`

// PostgresStore is a PostgreSQL implementation of qr.Repository and scan.Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Create(ctx context.Context, link *qr.Link) error {
	id, err := uuid.Parse(link.ID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO qrs (id, owner_id, name, destination, slug, style, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = p.pool.Exec(ctx, query,
		id,
		link.OwnerID,
		link.Name,
		link.Destination,
		string(link.Slug),
		link.Style,
		link.CreatedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return qr.ErrSlugTaken
	}

	return err
}

// FindBySlug fetches at most two rows so a broken uniqueness guarantee is still visible
// to the caller without reading the whole table.
func (p *PostgresStore) FindBySlug(ctx context.Context, slug qr.Slug) ([]*qr.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM qrs WHERE slug = $1 LIMIT 2`

	rows, err := p.pool.Query(ctx, query, string(slug))
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, scanLink)
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*qr.Link, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, qr.ErrNotFound
	}

	query := `SELECT ` + linkColumns + ` FROM qrs WHERE id = $1`

	rows, err := p.pool.Query(ctx, query, parsed)
	if err != nil {
		return nil, err
	}

	link, err := pgx.CollectExactlyOneRow(rows, scanLink)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, qr.ErrNotFound
	}

	return link, err
}

func (p *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]*qr.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM qrs WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, scanLink)
}

func (p *PostgresStore) Update(ctx context.Context, link *qr.Link) error {
	id, err := uuid.Parse(link.ID)
	if err != nil {
		return qr.ErrNotFound
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE qrs SET name = $2, destination = $3 WHERE id = $1`,
		id, link.Name, link.Destination,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return qr.ErrNotFound
	}

	return nil
}

// Insert stores a scan. The database clock stamps scanned_at when the event has none.
func (p *PostgresStore) Insert(ctx context.Context, event *scan.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	id, err := uuid.Parse(event.ID)
	if err != nil {
		return err
	}

	qrID, err := uuid.Parse(event.QRID)
	if err != nil {
		return err
	}

	var scannedAt *time.Time
	if !event.ScannedAt.IsZero() {
		scannedAt = &event.ScannedAt
	}

	query := `
		INSERT INTO scans (id, qr_id, scanned_at, device_type, os, browser, ip, country, city)
		VALUES ($1, $2, COALESCE($3, NOW()), $4, $5, $6, $7, $8, $9)
		RETURNING scanned_at
	`

	var stamped time.Time

	err = p.pool.QueryRow(ctx, query,
		id,
		qrID,
		scannedAt,
		event.DeviceType,
		event.OS,
		event.Browser,
		event.IP,
		event.Country,
		event.City,
	).Scan(&stamped)
	if err != nil {
		return err
	}

	event.ScannedAt = stamped.UTC()

	return nil
}

func (p *PostgresStore) ListByQR(ctx context.Context, qrID string) ([]scan.Event, error) {
	parsed, err := uuid.Parse(qrID)
	if err != nil {
		return []scan.Event{}, nil
	}

	query := `
		SELECT id::text, qr_id::text, scanned_at, device_type, os, browser, ip, country, city
		FROM scans
		WHERE qr_id = $1
		ORDER BY scanned_at
	`

	rows, err := p.pool.Query(ctx, query, parsed)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (scan.Event, error) {
		var event scan.Event

		err := row.Scan(
			&event.ID,
			&event.QRID,
			&event.ScannedAt,
			&event.DeviceType,
			&event.OS,
			&event.Browser,
			&event.IP,
			&event.Country,
			&event.City,
		)
		event.ScannedAt = event.ScannedAt.UTC()

		return event, err
	})
}

// Ping checks that the database accepts connections.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func scanLink(row pgx.CollectableRow) (*qr.Link, error) {
	var (
		link qr.Link
		slug string
	)

	err := row.Scan(
		&link.ID,
		&link.OwnerID,
		&link.Name,
		&link.Destination,
		&slug,
		&link.Style,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.Slug = qr.Slug(slug)
	link.CreatedAt = link.CreatedAt.UTC()

	return &link, nil
}

var (
	_ qr.Repository = (*PostgresStore)(nil)
	_ scan.Store    = (*PostgresStore)(nil)
)
