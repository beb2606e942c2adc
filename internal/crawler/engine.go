// Package crawler runs the incremental crawl: it pages through the remote
// catalog, reconciles every title against the stored catalog and checkpoints
// after each page that changed something.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webtoonhub/internal/episode"
	"webtoonhub/internal/extract"
	"webtoonhub/internal/fetch"
	"webtoonhub/internal/progress"
	"webtoonhub/internal/store"
	"webtoonhub/pkg/models"
)

// Notifier hears about every record the engine writes.
type Notifier interface {
	ComicChanged(c models.Comic, isNew bool)
}

// Notifiers fans one write out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) ComicChanged(c models.Comic, isNew bool) {
	for _, n := range ns {
		n.ComicChanged(c, isNew)
	}
}

// DetailParser extracts the non-count fields of a detail page.
type DetailParser func(body []byte, base *url.URL) (extract.Detail, error)

// Engine holds the collaborators of a crawl. It is safe to Run repeatedly but
// not concurrently; Runner enforces that.
type Engine struct {
	Fetcher  fetch.Fetcher
	Counter  episode.Counter
	Store    store.Store
	Notifier Notifier // optional

	CatalogURL     string
	DetailDelay    time.Duration
	UnchangedDelay time.Duration
	MaxPages       int // 0 = every page the site reports

	Now         func() time.Time
	ParseDetail DetailParser
	Logger      *zerolog.Logger

	// Observe, when set, is called on every state transition from the
	// engine goroutine.
	Observe func(Status)
}

// Summary describes a finished crawl.
type Summary struct {
	RunID               string    `json:"run_id"`
	State               State     `json:"state"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	Pages               int       `json:"pages"`
	New                 int       `json:"new"`
	Updated             int       `json:"updated"`
	Unchanged           int       `json:"unchanged"`
	Skipped             int       `json:"skipped"`
	FailedPages         int       `json:"failed_pages"`
	Checkpoints         int       `json:"checkpoints"`
	PersistenceFailures int       `json:"persistence_failures"`
}

// Changed reports whether the crawl wrote any record.
func (s Summary) Changed() bool { return s.New+s.Updated > 0 }

type run struct {
	*Engine
	ctx    context.Context
	sink   progress.Sink
	log    zerolog.Logger
	base   *url.URL
	cat    store.Catalog
	sum    Summary
	status Status

	// dirty is set while cat holds writes the store has not accepted yet;
	// pending are their notifications, sent once a save succeeds.
	dirty   bool
	pending []change
}

type change struct {
	rec   models.Comic
	isNew bool
}

// Run performs one crawl, emitting progress to sink. The last event is
// always the Done sentinel unless the sink itself failed. A non-nil error
// means the crawl ended in StateFailed or StateCancelled.
func (e *Engine) Run(ctx context.Context, sink progress.Sink) (Summary, error) {
	logger := log.Logger
	if e.Logger != nil {
		logger = *e.Logger
	}
	r := &run{
		Engine: e,
		ctx:    ctx,
		sink:   sink,
		sum:    Summary{RunID: uuid.NewString(), StartedAt: e.now()},
	}
	r.log = logger.With().Str("run_id", r.sum.RunID).Logger()
	r.status.RunID = r.sum.RunID

	err := r.crawl()
	if err != nil {
		r.flush()
	}
	r.sum.FinishedAt = e.now()
	switch {
	case err == nil:
		r.sum.State = StateCompleted
	case ctx.Err() != nil:
		r.sum.State = StateCancelled
	default:
		r.sum.State = StateFailed
	}
	r.enter(r.sum.State, r.status.Page, "")
	r.log.Info().
		Str("state", r.sum.State.String()).
		Int("new", r.sum.New).
		Int("updated", r.sum.Updated).
		Int("unchanged", r.sum.Unchanged).
		Int("skipped", r.sum.Skipped).
		Err(err).
		Msg("crawl finished")

	if ctx.Err() == nil {
		if emitErr := r.emit(progress.KindDone, 0, "", ""); emitErr != nil && err == nil {
			err = emitErr
		}
	}
	return r.sum, err
}

func (r *run) crawl() error {
	r.enter(StateInitializing, 0, "")
	if err := r.emit(progress.KindStart, 0, "", "爬蟲系統啟動"); err != nil {
		return err
	}

	base, err := url.Parse(r.CatalogURL)
	if err != nil || base.Host == "" {
		r.emit(progress.KindError, 0, "", "目錄網址無效: %s", r.CatalogURL)
		return fmt.Errorf("catalog url %q: invalid", r.CatalogURL)
	}
	r.base = base

	cat, err := r.Store.LoadAll(r.ctx)
	if err != nil {
		r.emit(progress.KindError, 0, "", "讀取資料庫失敗: %v", err)
		return fmt.Errorf("load catalog: %w", err)
	}
	r.cat = cat
	if err := r.emit(progress.KindLoaded, 0, "", "已載入資料庫，共 %d 筆資料", len(cat)); err != nil {
		return err
	}

	r.enter(StateResolvingPageCount, 0, "")
	first, err := r.Fetcher.Fetch(r.ctx, r.pageURL(1))
	if err != nil {
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}
		r.emit(progress.KindError, 0, "", "初始連線失敗: %v", err)
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	maxPage := extract.MaxPage(first)
	if r.MaxPages > 0 && maxPage > r.MaxPages {
		maxPage = r.MaxPages
	}
	if err := r.emit(progress.KindPages, 0, "", "偵測到完結漫畫共 %d 頁", maxPage); err != nil {
		return err
	}

	for page := 1; page <= maxPage; page++ {
		body := first
		if page > 1 {
			body = nil
		}
		if err := r.scanPage(page, body); err != nil {
			return err
		}
	}

	// the last checkpoint failed and no later page retried it
	if r.dirty {
		if err := r.checkpoint(0); err != nil {
			return err
		}
	}

	return r.emit(progress.KindFinished, 0, "",
		"任務結束！新增: %d，更新: %d，略過: %d，失敗頁數: %d",
		r.sum.New, r.sum.Updated, r.sum.Unchanged+r.sum.Skipped, r.sum.FailedPages)
}

// scanPage processes one listing page. body is the already fetched page, or
// nil to fetch it. Only cancellation and sink failures are returned.
func (r *run) scanPage(page int, body []byte) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	r.sum.Pages++
	r.enter(StateScanningPage, page, "")
	if err := r.emit(progress.KindPage, page, "", "正在讀取第 %d 頁清單...", page); err != nil {
		return err
	}

	pageURL := r.pageURL(page)
	if body == nil {
		b, err := r.Fetcher.Fetch(r.ctx, pageURL)
		if err != nil {
			if r.ctx.Err() != nil {
				return r.ctx.Err()
			}
			return r.pageFailed(&PageFetchError{Page: page, URL: pageURL, Err: err})
		}
		body = b
	}

	entries, err := extract.ParseListing(body, r.base)
	if err != nil {
		return r.pageFailed(&PageFetchError{Page: page, URL: pageURL, Err: err})
	}

	for _, entry := range entries {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if entry.Err != nil {
			r.sum.Skipped++
			if err := r.emit(progress.KindWarning, page, "", "略過項目: %v", entry.Err); err != nil {
				return err
			}
			continue
		}

		err := r.processItem(page, entry.Item)
		r.enter(StateScanningPage, page, "")
		if err != nil {
			if r.ctx.Err() != nil {
				return r.ctx.Err()
			}
			var ie *ItemError
			if !errors.As(err, &ie) {
				return err
			}
			r.sum.Skipped++
			r.log.Warn().Int("page", page).Str("url", ie.URL).Err(ie.Err).Msg("item skipped")
			if err := r.emit(progress.KindError, page, "", "錯誤: %v", ie); err != nil {
				return err
			}
			continue
		}
	}

	if r.dirty {
		if err := r.checkpoint(page); err != nil {
			return err
		}
	}
	return r.emit(progress.KindPageDone, page, "", "第 %d 頁完成", page)
}

// processItem reconciles one listing item. Item-level failures come back as
// *ItemError; anything else stops the crawl.
func (r *run) processItem(page int, item extract.ListingItem) error {
	skip := func(err error) error {
		return &ItemError{Title: item.Title, URL: item.DetailURL, Err: err}
	}

	id, ok := extract.ResolveID(item.DetailURL)
	if !ok {
		return skip(ErrMissingID)
	}
	r.enter(StateProcessingItem, page, id)
	if err := r.emit(progress.KindItem, page, id, "分析中：%s...", item.Title); err != nil {
		return err
	}

	var existing *models.Comic
	if c, ok := r.cat[id]; ok {
		existing = &c
	}

	body, err := r.Fetcher.Fetch(r.ctx, item.DetailURL)
	if err != nil {
		return skip(fmt.Errorf("fetch detail: %w", err))
	}
	count, err := r.Counter.Count(r.ctx, episode.Page{URL: item.DetailURL, HTML: body})
	if err != nil {
		return skip(fmt.Errorf("count episodes: %w", err))
	}

	class := classify(existing, count)
	if class == ClassUnchanged {
		r.sum.Unchanged++
		if err := r.emit(progress.KindUnchanged, page, id, "話數無變更 (%d)，跳過更新", count); err != nil {
			return err
		}
		return sleep(r.ctx, r.UnchangedDelay)
	}

	detailBase, err := url.Parse(item.DetailURL)
	if err != nil {
		return skip(fmt.Errorf("detail url: %w", err))
	}
	detail, err := r.parseDetail(body, detailBase)
	if err != nil {
		return skip(fmt.Errorf("parse detail: %w", err))
	}

	rec := buildRecord(id, item, detail, count, existing, r.now())
	r.cat[id] = rec
	r.dirty = true
	r.pending = append(r.pending, change{rec: rec, isNew: class == ClassNew})

	kind, msg := progress.KindNew, "新增資料：%s"
	if class == ClassUpdated {
		r.sum.Updated++
		kind, msg = progress.KindUpdated, "更新資料：%s"
	} else {
		r.sum.New++
	}
	r.log.Debug().Str("comic_id", id).Str("class", string(class)).Int("episodes", count).Msg("record written")
	if err := r.emit(kind, page, id, msg, rec.Title); err != nil {
		return err
	}
	return sleep(r.ctx, r.DetailDelay)
}

// checkpoint persists the whole catalog, retrying once. A second failure is
// reported and the crawl goes on with the catalog still in memory and dirty,
// so the next checkpoint tries again. Page 0 is the final checkpoint.
func (r *run) checkpoint(page int) error {
	const attempts = 2
	r.enter(StateCheckpointing, page, "")

	var err error
	for i := 0; i < attempts; i++ {
		if err = r.Store.SaveAll(r.ctx, r.cat); err == nil {
			r.saved()
			if page == 0 {
				return r.emit(progress.KindCheckpoint, 0, "", "資料已存檔")
			}
			return r.emit(progress.KindCheckpoint, page, "", "第 %d 頁資料已存檔", page)
		}
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}
		r.log.Warn().Int("page", page).Int("attempt", i+1).Err(err).Msg("checkpoint failed")
	}

	perr := &PersistenceError{Page: page, Attempts: attempts, Err: err}
	r.sum.PersistenceFailures++
	r.log.Error().Err(perr).Msg("checkpoint abandoned")
	return r.emit(progress.KindError, page, "", "存檔失敗: %v", perr)
}

// flush saves unsaved work when the crawl stops early, so a disconnect
// loses nothing that was already reconciled.
func (r *run) flush() {
	if !r.dirty {
		return
	}
	ctx := context.WithoutCancel(r.ctx)
	if err := r.Store.SaveAll(ctx, r.cat); err != nil {
		r.log.Error().Int("page", r.status.Page).Err(err).Msg("save on stop failed")
		return
	}
	r.saved()
}

// saved marks the catalog clean and tells the notifier about every write
// the store now holds.
func (r *run) saved() {
	r.sum.Checkpoints++
	r.dirty = false
	if r.Notifier != nil {
		for _, c := range r.pending {
			r.Notifier.ComicChanged(c.rec, c.isNew)
		}
	}
	r.pending = r.pending[:0]
}

func (r *run) enter(state State, page int, id string) {
	r.status.State, r.status.Page, r.status.ComicID = state, page, id
	if r.Observe != nil {
		r.Observe(r.status)
	}
}

func (r *run) pageFailed(perr *PageFetchError) error {
	r.sum.FailedPages++
	r.log.Warn().Int("page", perr.Page).Err(perr.Err).Msg("listing page skipped")
	return r.emit(progress.KindError, perr.Page, "", "讀取頁面失敗: %v", perr)
}

func (r *run) emit(kind progress.Kind, page int, id, format string, args ...any) error {
	ev := progress.Event{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		ComicID: id,
		Page:    page,
		At:      r.now(),
	}
	if err := r.sink.Emit(r.ctx, ev); err != nil {
		return fmt.Errorf("emit %s: %w", kind, err)
	}
	return nil
}

func (r *run) pageURL(n int) string {
	u := *r.base
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC().Truncate(time.Second)
}

func (e *Engine) parseDetail(body []byte, base *url.URL) (extract.Detail, error) {
	if e.ParseDetail != nil {
		return e.ParseDetail(body, base)
	}
	return extract.ParseDetail(body, base)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
