package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchArgs struct {
	addr   string
	pretty bool
	retry  time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the TCP change feed of a running api-server",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchArgs.addr, "addr", "127.0.0.1:7070", "change feed address")
	watchCmd.Flags().BoolVar(&watchArgs.pretty, "pretty", true, "pretty print JSON events")
	watchCmd.Flags().DurationVar(&watchArgs.retry, "retry", time.Second, "reconnect delay, 0 exits on disconnect")
	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		err := follow(ctx, watchArgs.addr, watchArgs.pretty, cmd.OutOrStdout())
		if ctx.Err() != nil {
			return nil
		}
		if watchArgs.retry <= 0 {
			return err
		}
		log.Warn().Err(err).Str("addr", watchArgs.addr).Msg("feed disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchArgs.retry):
		}
	}
}

// follow copies feed lines to out until the connection ends.
func follow(ctx context.Context, addr string, pretty bool, out io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log.Info().Str("addr", addr).Msg("following change feed")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()

		if !pretty {
			fmt.Fprintln(out, string(line))
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			fmt.Fprintln(out, string(line))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Fprintln(out, string(b))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
