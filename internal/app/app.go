// Package app builds the crawler and its collaborators from configuration
// and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"webtoonhub/internal/comic"
	"webtoonhub/internal/crawler"
	"webtoonhub/internal/episode"
	"webtoonhub/internal/feed"
	"webtoonhub/internal/fetch"
	"webtoonhub/internal/imageproxy"
	"webtoonhub/internal/notify"
	"webtoonhub/internal/progress"
	"webtoonhub/internal/store"
	"webtoonhub/internal/webhook"
	"webtoonhub/pkg/database"
	"webtoonhub/pkg/utils"
)

type App struct {
	Config  utils.Config
	Store   store.Store
	Fetcher *fetch.Client
	Counter episode.Counter
	Engine  *crawler.Engine
	Runner  *crawler.Runner
	Notify  *notify.Server // nil unless NotifyAddr is set
	Feed    *feed.Hub
	FeedTCP *feed.Server // nil unless FeedAddr is set

	closers []func() error
}

// Build wires everything but starts nothing that listens.
func Build(ctx context.Context, cfg utils.Config) (*App, error) {
	a := &App{Config: cfg}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	counter, err := NewCounter(cfg.EpisodeStrategy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Counter = counter
	if b, ok := counter.(*episode.BrowserCounter); ok {
		a.closers = append(a.closers, b.Close)
	}

	a.Fetcher = fetch.NewClient(fetch.Options{
		UserAgent:      cfg.UserAgent,
		Referer:        cfg.Referer,
		Timeout:        cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
	})

	a.Engine = &crawler.Engine{
		Fetcher:        a.Fetcher,
		Counter:        a.Counter,
		Store:          a.Store,
		CatalogURL:     cfg.CatalogURL,
		DetailDelay:    cfg.DetailDelay,
		UnchangedDelay: cfg.UnchangedDelay,
		MaxPages:       cfg.MaxPages,
	}

	a.Feed = feed.NewHub()
	notifiers := crawler.Notifiers{a.Feed}
	if cfg.FeedAddr != "" {
		a.FeedTCP = feed.NewServer(cfg.FeedAddr, a.Feed)
		a.closers = append(a.closers, a.FeedTCP.Close)
	}
	if cfg.NotifyAddr != "" {
		a.Notify = notify.NewServer(cfg.NotifyAddr, notify.NewRegistry())
		notifiers = append(notifiers, a.Notify)
		a.closers = append(a.closers, a.Notify.Close)
	}
	a.Engine.Notifier = notifiers

	a.Runner = crawler.NewRunner(a.Engine)
	return a, nil
}

// OpenStore opens the configured catalog backend.
func OpenStore(ctx context.Context, cfg utils.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "file":
		return store.NewFileStore(cfg.DataFile), nil
	case "sqlite":
		return store.OpenSQLite(database.DefaultConfig())
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres store needs WEBTOONHUB_PG_DSN")
		}
		return store.OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewCounter resolves an episode counting strategy by name, including the
// browser one.
func NewCounter(name string) (episode.Counter, error) {
	if name == "browser" {
		b, err := episode.NewBrowserCounter()
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return episode.New(name)
}

// Router mounts every HTTP route on a gin engine.
func (a *App) Router() *gin.Engine {
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": a.Config.StoreBackend})
	})
	router.GET("/ready", a.ready)

	crawler.NewHandler(a.Runner).RegisterRoutes(router)
	router.GET("/ws/changes", feed.WSHandler(a.Feed))

	api := router.Group("/api")
	repo := comic.NewRepo(a.Store)
	comic.NewHandler(repo).RegisterRoutes(api.Group("/comics"))
	imageproxy.NewHandler(a.Fetcher.Resty()).RegisterRoutes(api)

	var fallback webhook.Responder
	if a.Config.FallbackURL != "" {
		fallback = &webhook.HTTPResponder{Client: a.Fetcher.Resty(), URL: a.Config.FallbackURL}
	}
	wh := webhook.NewHandler(repo, fallback, nil)
	wh.PublicURL = a.Config.PublicURL
	wh.RegisterRoutes(router)

	return router
}

func (a *App) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := store.Ping(ctx, a.Store); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "not_ready",
			"store_error": err.Error(),
		})
		return
	}
	stats := a.Feed.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"store":       "ok",
		"crawling":    a.Runner.Running(),
		"tcp_clients": stats.TCPClients,
		"ws_clients":  stats.WSClients,
	})
}

// Schedule starts periodic crawls on spec, logging their progress. A tick
// that finds a crawl already running is skipped.
func (a *App) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		log.Info().Str("schedule", spec).Msg("start scheduled crawl")
		_, err := a.Runner.Run(ctx, progress.LogSink{Logger: log.Logger})
		if errors.Is(err, crawler.ErrCrawlInProgress) {
			log.Warn().Msg("scheduled crawl skipped, another crawl is running")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("scheduled crawl failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("crawl schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

// Close releases the store, the sockets and the browser.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
