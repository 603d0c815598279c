package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/nobreverify/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS used_identities (
	identity   TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var _ RecordGetter = (*PostgresLedger)(nil)

type PostgresLedger struct {
	Db *pgxpool.Pool
}

func NewPostgresLedger(ctx context.Context, connString string) (*PostgresLedger, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to create ledger table: %w", err)
	}

	return &PostgresLedger{Db: pool}, nil
}

func (s *PostgresLedger) Close() error {
	s.Db.Close()
	return nil
}

func (s *PostgresLedger) Contains(ctx context.Context, identity string) (bool, error) {
	var exists bool
	err := s.Db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM used_identities WHERE identity = $1)", identity).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return exists, nil
}

// Append inserts identity. A concurrent duplicate surfaces as a unique
// violation, which is not an error for an append-only set.
func (s *PostgresLedger) Append(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	_, err := s.Db.Exec(ctx, "INSERT INTO used_identities (identity) VALUES ($1)", identity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("ledger append failed: %w", err)
	}
	return nil
}

func (s *PostgresLedger) InsertIfAbsent(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, ErrEmptyIdentity
	}
	tag, err := s.Db.Exec(ctx,
		"INSERT INTO used_identities (identity) VALUES ($1) ON CONFLICT (identity) DO NOTHING",
		identity,
	)
	if err != nil {
		return false, fmt.Errorf("ledger insert failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns the record for identity, or ErrNotFound when absent.
func (s *PostgresLedger) Get(ctx context.Context, identity string) (*domain.IdentityRecord, error) {
	var rec domain.IdentityRecord
	err := s.Db.QueryRow(ctx,
		"SELECT identity, created_at FROM used_identities WHERE identity = $1",
		identity,
	).Scan(&rec.Identity, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger get failed: %w", err)
	}
	return &rec, nil
}

// Import bulk-loads identities that are not yet recorded, using COPY into a
// temporary table so duplicates in either side are dropped.
func (s *PostgresLedger) Import(ctx context.Context, identities []string) (int64, error) {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "CREATE TEMP TABLE import_identities (identity TEXT) ON COMMIT DROP"); err != nil {
		return 0, fmt.Errorf("temp table failed: %w", err)
	}

	rows := make([][]any, 0, len(identities))
	for _, id := range identities {
		rows = append(rows, []any{id})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"import_identities"}, []string{"identity"}, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("bulk copy failed: %w", err)
	}

	tag, err := tx.Exec(ctx,
		"INSERT INTO used_identities (identity) SELECT DISTINCT identity FROM import_identities ON CONFLICT (identity) DO NOTHING",
	)
	if err != nil {
		return 0, fmt.Errorf("import insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("tx commit failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
