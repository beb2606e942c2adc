package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"webtoonhub/pkg/models"
)

// FileStore keeps the catalog as one JSON array in a file. SaveAll writes a
// sibling temp file and renames it over the target, so readers never see a
// partial file.
type FileStore struct {
	Path string

	mu sync.Mutex // serialises read-modify-write in Upsert
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) LoadAll(ctx context.Context) (Catalog, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return fromList(list)
}

// List returns the records in file order.
func (s *FileStore) List(_ context.Context) ([]models.Comic, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}

	var list []models.Comic
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return list, nil
}

func (s *FileStore) GetByID(ctx context.Context, id string) (*models.Comic, error) {
	cat, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := cat[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *FileStore) Upsert(ctx context.Context, c models.Comic) error {
	if err := validate(c); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}
	cat[c.ID] = c
	return s.write(cat)
}

func (s *FileStore) SaveAll(_ context.Context, cat Catalog) error {
	for _, c := range cat {
		if err := validate(c); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cat)
}

func (s *FileStore) write(cat Catalog) error {
	b, err := json.MarshalIndent(cat.Sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("rename into %s: %w", s.Path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
