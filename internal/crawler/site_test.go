package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"webtoonhub/internal/episode"
	"webtoonhub/internal/fetch"
	"webtoonhub/internal/store"
)

// title is one comic on the fake site.
type title struct {
	id       string
	name     string // empty renders no title node
	genre    string
	episodes int
	gated    bool
	href     string // overrides the generated detail link
}

// fakeSite serves listing and detail pages shaped like the real catalog.
type fakeSite struct {
	mu         sync.Mutex
	pages      [][]title
	failPages  map[int]bool
	failDetail map[string]bool
	hits       map[string]int
	srv        *httptest.Server
}

func newFakeSite(t *testing.T, pages ...[]title) *fakeSite {
	t.Helper()
	s := &fakeSite{
		pages:      pages,
		failPages:  map[int]bool{},
		failDetail: map[string]bool{},
		hits:       map[string]int{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *fakeSite) catalogURL() string {
	return s.srv.URL + "/zh-hant/originals/complete?sortOrder=UPDATE&page=1"
}

func (s *fakeSite) setEpisodes(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		for i := range p {
			if p[i].id == id {
				p[i].episodes = n
			}
		}
	}
}

func (s *fakeSite) hitCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func (s *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Path == "/zh-hant/originals/complete" {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		s.hits[fmt.Sprintf("listing:%d", page)]++
		if s.failPages[page] || page < 1 || page > len(s.pages) {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, s.listingHTML(page))
		return
	}

	id := r.URL.Query().Get("title_no")
	s.hits["detail:"+id]++
	for _, p := range s.pages {
		for _, t := range p {
			if t.id == id && id != "" {
				if s.failDetail[id] {
					http.Error(w, "gone", http.StatusNotFound)
					return
				}
				fmt.Fprint(w, detailHTML(t))
				return
			}
		}
	}
	http.NotFound(w, r)
}

func (s *fakeSite) listingHTML(page int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="card_lst">`)
	for _, t := range s.pages[page-1] {
		href := t.href
		if href == "" {
			href = fmt.Sprintf("/zh-hant/%s/t%s/list?title_no=%s", t.genre, t.id, t.id)
		}
		name := ""
		if t.name != "" {
			name = `<p class="title">` + t.name + `</p>`
		}
		fmt.Fprintf(&b, `<li><a class="link _originals_title_a" href="%s"><p class="genre">%s</p>%s</a></li>`,
			href, t.genre, name)
	}
	b.WriteString(`</ul>`)
	if len(s.pages) > 1 {
		b.WriteString(`<div class="paginate">`)
		for i := range s.pages {
			fmt.Fprintf(&b, `<a href="?page=%d"><span>%d</span></a>`, i+1, i+1)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func detailHTML(t title) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div class="detail_header"><span class="thmb"><img src="//img.test/%s.jpg"></span>`, t.id)
	fmt.Fprintf(&b, `<div class="author">作者%s</div></div>`, t.id)
	fmt.Fprintf(&b, `<p class="summary">summary %s</p>`, t.id)
	if t.gated {
		b.WriteString(`<p>在APP可以閱讀更多話次</p>`)
	}
	b.WriteString(`<ul id="_listUl">`)
	for n := t.episodes; n > 0; n-- {
		fmt.Fprintf(&b, `<li class="_episodeItem" data-episode-no="%d"><span class="tx">#%d</span></li>`, n, n)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

// countingStore wraps a Store, counting SaveAll calls and failing the first
// failSaves of them.
type countingStore struct {
	store.Store
	mu        sync.Mutex
	saves     int
	failSaves int
}

func (s *countingStore) SaveAll(ctx context.Context, cat store.Catalog) error {
	s.mu.Lock()
	s.saves++
	fail := s.saves <= s.failSaves
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("disk full")
	}
	return s.Store.SaveAll(ctx, cat)
}

func (s *countingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestEngine(site *fakeSite, st store.Store, clk *clock) *Engine {
	return &Engine{
		Fetcher:    fetch.NewClient(fetch.Options{Timeout: 5 * time.Second}),
		Counter:    episode.AttributeCounter{},
		Store:      st,
		CatalogURL: site.catalogURL(),
		Now:        clk.Now,
	}
}
