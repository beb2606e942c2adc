package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"webtoonhub/pkg/models"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS comics (
    seq         BIGSERIAL,
    id          TEXT PRIMARY KEY,
    doc         JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
)`

const pgUpsert = `
	INSERT INTO comics (id, doc, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET
	  doc = EXCLUDED.doc,
	  updated_at = EXCLUDED.updated_at`

// PostgresStore treats the comics table as a document collection. SaveAll
// issues one autocommitted upsert per record, so atomicity holds per record
// only.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects with dsn and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) (Catalog, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return fromList(list)
}

// List returns the stored records in insertion order.
func (s *PostgresStore) List(ctx context.Context) ([]models.Comic, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM comics ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select comics: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Comic, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return models.Comic{}, err
		}
		var c models.Comic
		err := json.Unmarshal(raw, &c)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect comics: %w", err)
	}
	return list, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.Comic, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM comics WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	var c models.Comic
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, c models.Comic) error {
	if err := validate(c); err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.ID, err)
	}
	if _, err := s.pool.Exec(ctx, pgUpsert, c.ID, doc, c.LastUpdatedAt); err != nil {
		return fmt.Errorf("upsert %s: %w", c.ID, err)
	}
	return nil
}

// SaveAll upserts every record, one statement each. Records are never
// pruned here: with only per-record atomicity a prune could race a
// concurrent writer's insert.
func (s *PostgresStore) SaveAll(ctx context.Context, cat Catalog) error {
	for _, c := range cat.Sorted() {
		if err := s.Upsert(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
