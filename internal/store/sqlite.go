package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"webtoonhub/pkg/database"
	"webtoonhub/pkg/models"
)

const upsertDoc = `
	INSERT INTO comics (id, doc, updated_at)
	VALUES (:id, :doc, :updated_at)
	ON CONFLICT(id) DO UPDATE SET
	  doc = excluded.doc,
	  updated_at = excluded.updated_at
`

type docRow struct {
	ID        string `db:"id"`
	Doc       string `db:"doc"`
	UpdatedAt string `db:"updated_at"`
}

func toRow(c models.Comic) (docRow, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return docRow{}, fmt.Errorf("marshal %s: %w", c.ID, err)
	}
	return docRow{ID: c.ID, Doc: string(b), UpdatedAt: c.LastUpdatedAt.UTC().Format(time.RFC3339Nano)}, nil
}

func (r docRow) comic() (models.Comic, error) {
	var c models.Comic
	if err := json.Unmarshal([]byte(r.Doc), &c); err != nil {
		return c, fmt.Errorf("decode %s: %w", r.ID, err)
	}
	return c, nil
}

// SQLiteStore keeps one JSON document per title in the comics table.
// SaveAll runs in a single transaction.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: sqlx.NewDb(db, "sqlite3")}
}

// OpenSQLite opens the database at cfg and applies the schema.
func OpenSQLite(cfg database.Config) (*SQLiteStore, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLiteStore(db), nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) (Catalog, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return fromList(list)
}

// List returns the stored records in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Comic, error) {
	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, doc, updated_at FROM comics ORDER BY rowid`); err != nil {
		return nil, fmt.Errorf("select comics: %w", err)
	}
	out := make([]models.Comic, 0, len(rows))
	for _, r := range rows {
		c, err := r.comic()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*models.Comic, error) {
	var r docRow
	err := s.db.GetContext(ctx, &r, `SELECT id, doc, updated_at FROM comics WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	c, err := r.comic()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, c models.Comic) error {
	if err := validate(c); err != nil {
		return err
	}
	r, err := toRow(c)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertDoc, r); err != nil {
		return fmt.Errorf("upsert %s: %w", c.ID, err)
	}
	return nil
}

// SaveAll makes the table equal to cat: records are upserted in place and
// ids missing from cat are removed.
func (s *SQLiteStore) SaveAll(ctx context.Context, cat Catalog) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertDoc)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(cat))
	for _, c := range cat.Sorted() {
		if err := validate(c); err != nil {
			return err
		}
		r, err := toRow(c)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r); err != nil {
			return fmt.Errorf("exec upsert for %s: %w", c.ID, err)
		}
		ids = append(ids, c.ID)
	}

	if len(ids) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comics`); err != nil {
			return fmt.Errorf("clear comics: %w", err)
		}
	} else {
		q, args, err := sqlx.In(`DELETE FROM comics WHERE id NOT IN (?)`, ids)
		if err != nil {
			return fmt.Errorf("build prune: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return fmt.Errorf("prune comics: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
