package episode

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

const (
	countItemsJS = `document.querySelectorAll("ul#_listUl li").length`
	hasNextJS    = `(() => { const a = document.querySelector("a.pg_next"); return !!a && !a.classList.contains("disabled"); })()`
)

// BrowserCounter loads the detail page in headless Chrome and walks the
// paginated episode list, summing the items of every page. It ignores the
// already fetched HTML and works from the page URL.
type BrowserCounter struct {
	PageWait time.Duration // settle time after each navigation
	MaxPages int           // safety bound on episode list pages
	Timeout  time.Duration // per title

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewBrowserCounter starts a reusable headless browser.
func NewBrowserCounter() (*BrowserCounter, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1200, 800),
	)

	b := &BrowserCounter{
		PageWait: 2 * time.Second,
		MaxPages: 200,
		Timeout:  3 * time.Minute,
	}
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	if err := chromedp.Run(b.browserCtx, chromedp.Navigate("about:blank")); err != nil {
		b.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	log.Info().Msg("headless browser ready for episode counting")
	return b, nil
}

func (b *BrowserCounter) Name() string { return "browser" }

func (b *BrowserCounter) Count(ctx context.Context, page Page) (int, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.Timeout)
	defer cancel()

	// chromedp contexts hang off the browser, so mirror the caller's cancellation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(page.URL), chromedp.Sleep(b.PageWait)); err != nil {
		return 0, fmt.Errorf("open %s: %w", page.URL, err)
	}

	total := 0
	for i := 0; i < b.MaxPages; i++ {
		var n int
		var hasNext bool
		if err := chromedp.Run(tabCtx,
			chromedp.Evaluate(countItemsJS, &n),
			chromedp.Evaluate(hasNextJS, &hasNext),
		); err != nil {
			return 0, fmt.Errorf("count episodes on page %d: %w", i+1, err)
		}
		total += n
		if !hasNext {
			break
		}
		if err := chromedp.Run(tabCtx,
			chromedp.Click("a.pg_next", chromedp.ByQuery),
			chromedp.Sleep(b.PageWait),
		); err != nil {
			return 0, fmt.Errorf("next episode page: %w", err)
		}
	}
	return total, nil
}

// Close shuts the browser down.
func (b *BrowserCounter) Close() error {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}
