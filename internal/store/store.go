// Package store persists the mirrored catalog.
//
// Every backend returns an empty catalog when nothing has been saved yet.
// Atomicity of SaveAll differs by backend and callers must not assume more
// than the backend's doc comment promises:
//
//   - FileStore and SQLiteStore replace the whole catalog atomically. A
//     concurrent reader sees the previous snapshot or the new one.
//   - PostgresStore writes one document per record. Each record is atomic,
//     the catalog is not: a reader may see some records from the new
//     snapshot and some from the old one, but never a partial record.
package store

import (
	"context"
	"fmt"
	"sort"

	"webtoonhub/pkg/models"
)

// Catalog maps title id to record.
type Catalog map[string]models.Comic

// Store is the catalog persistence contract used by the crawler and the
// read API.
type Store interface {
	LoadAll(ctx context.Context) (Catalog, error)
	// GetByID returns nil when the id is not stored.
	GetByID(ctx context.Context, id string) (*models.Comic, error)
	Upsert(ctx context.Context, c models.Comic) error
	SaveAll(ctx context.Context, cat Catalog) error
	Close() error
}

// Sorted lists the catalog by first-seen time, then id, which approximates
// insertion order for backends that do not keep one.
func (cat Catalog) Sorted() []models.Comic {
	out := make([]models.Comic, 0, len(cat))
	for _, c := range cat {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pinger is a Store over a connection that can be checked without reading
// the catalog.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that s can serve reads. Stores without a connection are
// checked by loading the catalog, which also catches a corrupt file.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.LoadAll(ctx)
	return err
}

// Lister is a Store that can return its records in storage order.
type Lister interface {
	List(ctx context.Context) ([]models.Comic, error)
}

// List returns every record of s, in storage order when s is a Lister and
// in first-seen order otherwise.
func List(ctx context.Context, s Store) ([]models.Comic, error) {
	if l, ok := s.(Lister); ok {
		return l.List(ctx)
	}
	cat, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return cat.Sorted(), nil
}

func validate(c models.Comic) error {
	if c.ID == "" {
		return fmt.Errorf("record %q has no id", c.Title)
	}
	return nil
}

func fromList(list []models.Comic) (Catalog, error) {
	cat := make(Catalog, len(list))
	for _, c := range list {
		if err := validate(c); err != nil {
			return nil, err
		}
		cat[c.ID] = c
	}
	return cat, nil
}
