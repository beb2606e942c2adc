package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"webtoonhub/internal/app"
	"webtoonhub/internal/progress"
)

var crawlArgs struct {
	maxPages int
	strategy string
	lines    bool
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one incremental crawl",
	Long:  "Fetch the remote catalog, reconcile every title against the store and checkpoint after each changed page.",
	RunE:  runCrawl,
}

func init() {
	crawlCmd.Flags().IntVar(&crawlArgs.maxPages, "max-pages", -1, "stop after this many listing pages (0 = all, default from env)")
	crawlCmd.Flags().StringVar(&crawlArgs.strategy, "strategy", "", "episode counter: attribute, items, label or browser")
	crawlCmd.Flags().BoolVar(&crawlArgs.lines, "lines", false, "print progress lines to stdout instead of logging them")
	RootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := config()
	if crawlArgs.maxPages >= 0 {
		cfg.MaxPages = crawlArgs.maxPages
	}
	if crawlArgs.strategy != "" {
		cfg.EpisodeStrategy = crawlArgs.strategy
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var sink progress.Sink = progress.LogSink{Logger: log.Logger}
	if crawlArgs.lines {
		out := cmd.OutOrStdout()
		sink = progress.SinkFunc(func(_ context.Context, ev progress.Event) error {
			_, err := fmt.Fprintln(out, ev.Line())
			return err
		})
	}

	sum, err := a.Runner.Run(ctx, sink)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", sum.RunID, err)
	}
	log.Info().
		Str("run_id", sum.RunID).
		Int("new", sum.New).
		Int("updated", sum.Updated).
		Int("persistence_failures", sum.PersistenceFailures).
		Msg("crawl complete")
	return nil
}
