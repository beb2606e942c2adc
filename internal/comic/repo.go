package comic

import (
	"context"
	"fmt"
	"strings"

	"webtoonhub/internal/store"
	"webtoonhub/pkg/models"
)

// Repo answers read queries from the persisted catalog snapshot. It never
// sees a crawl's in-memory state.
type Repo struct {
	Store store.Store
}

type ListQuery struct {
	Q      string // keyword search in title/author
	Genre  string // substring match, the site's genres are free text
	Access string // free | gated
	Limit  int    // 0 = no limit
	Offset int
}

func NewRepo(s store.Store) *Repo {
	return &Repo{Store: s}
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.Comic, error) {
	c, err := r.Store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return c, nil
}

// List returns the matching records in storage order and the total number
// of matches before paging.
func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Comic, int, error) {
	all, err := store.List(ctx, r.Store)
	if err != nil {
		return nil, 0, fmt.Errorf("list comics: %w", err)
	}

	out := make([]models.Comic, 0, len(all))
	for _, c := range all {
		if q.matches(c) {
			out = append(out, c)
		}
	}
	total := len(out)

	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, total, nil
}

// ByGenre returns a genre's titles with the free ones first, otherwise in
// storage order.
func (r *Repo) ByGenre(ctx context.Context, genre string) ([]models.Comic, error) {
	list, _, err := r.List(ctx, ListQuery{Genre: genre})
	if err != nil {
		return nil, err
	}
	free := make([]models.Comic, 0, len(list))
	var gated []models.Comic
	for _, c := range list {
		if c.IsFree() {
			free = append(free, c)
		} else {
			gated = append(gated, c)
		}
	}
	return append(free, gated...), nil
}

// FindByTitle returns the first record whose title contains keyword.
func (r *Repo) FindByTitle(ctx context.Context, keyword string) (*models.Comic, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	all, err := store.List(ctx, r.Store)
	if err != nil {
		return nil, fmt.Errorf("list comics: %w", err)
	}
	for _, c := range all {
		if strings.Contains(c.Title, keyword) {
			return &c, nil
		}
	}
	return nil, nil
}

// Free returns every title readable in full without tickets.
func (r *Repo) Free(ctx context.Context) ([]models.Comic, error) {
	list, _, err := r.List(ctx, ListQuery{Access: "free"})
	return list, err
}

func (q ListQuery) matches(c models.Comic) bool {
	if kw := strings.ToLower(strings.TrimSpace(q.Q)); kw != "" {
		if !strings.Contains(strings.ToLower(c.Title), kw) && !strings.Contains(strings.ToLower(c.Author), kw) {
			return false
		}
	}
	if g := strings.TrimSpace(q.Genre); g != "" && !strings.Contains(c.Genre, g) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(q.Access)) {
	case "free":
		return c.IsFree()
	case "gated":
		return !c.IsFree()
	}
	return true
}
