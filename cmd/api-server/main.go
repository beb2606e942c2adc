package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"webtoonhub/internal/app"
	"webtoonhub/internal/logger"
	"webtoonhub/pkg/utils"
)

func main() {
	cfg := utils.LoadConfig()
	logger.Init(cfg.LogLevel, !cfg.LogJSON)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build failed")
	}
	defer a.Close()

	// Bind sockets first so you notice binding errors early
	if a.Notify != nil {
		if err := a.Notify.Listen(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.NotifyAddr).Msg("notify listen failed")
		}
	}
	if a.FeedTCP != nil {
		if err := a.FeedTCP.Listen(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.FeedAddr).Msg("feed listen failed")
		}
	}

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: a.Router(),
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	if a.Notify != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Notify.Serve(); err != nil {
				errCh <- err
			}
		}()
	}

	if a.FeedTCP != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.FeedTCP.Serve(); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.CrawlSchedule != "" {
		c, err := a.Schedule(ctx, cfg.CrawlSchedule)
		if err != nil {
			log.Fatal().Err(err).Msg("schedule failed")
		}
		defer func() { <-c.Stop().Done() }()
		log.Info().Str("schedule", cfg.CrawlSchedule).Msg("scheduled crawls enabled")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("shutting down servers")
	// stops a running crawl; its pending changes are still flushed
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	if a.Notify != nil {
		if err := a.Notify.Close(); err != nil {
			log.Error().Err(err).Msg("notify shutdown error")
		}
	}
	if a.FeedTCP != nil {
		if err := a.FeedTCP.Close(); err != nil {
			log.Error().Err(err).Msg("feed shutdown error")
		}
	}

	wg.Wait()
	log.Info().Msg("servers stopped")
}
