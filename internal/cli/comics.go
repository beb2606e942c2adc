package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"webtoonhub/internal/app"
	"webtoonhub/internal/comic"
)

var comicsArgs struct {
	q      string
	genre  string
	access string
	limit  int
}

var comicsCmd = &cobra.Command{
	Use:   "comics",
	Short: "Query the stored catalog",
}

var comicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored titles",
	RunE:  runComicsList,
}

var comicsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one stored title as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runComicsShow,
}

func init() {
	comicsListCmd.Flags().StringVarP(&comicsArgs.q, "query", "q", "", "title or author keyword")
	comicsListCmd.Flags().StringVarP(&comicsArgs.genre, "genre", "g", "", "genre")
	comicsListCmd.Flags().StringVar(&comicsArgs.access, "access", "", "free or gated")
	comicsListCmd.Flags().IntVarP(&comicsArgs.limit, "limit", "n", 0, "maximum rows (0 = all)")

	comicsCmd.AddCommand(comicsListCmd)
	comicsCmd.AddCommand(comicsShowCmd)
	RootCmd.AddCommand(comicsCmd)
}

func runComicsList(cmd *cobra.Command, args []string) error {
	st, err := app.OpenStore(cmd.Context(), config())
	if err != nil {
		return err
	}
	defer st.Close()

	items, total, err := comic.NewRepo(st).List(cmd.Context(), comic.ListQuery{
		Q:      comicsArgs.q,
		Genre:  comicsArgs.genre,
		Access: comicsArgs.access,
		Limit:  comicsArgs.limit,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tGENRE\tEPISODES\tFREE")
	for _, c := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", c.ID, c.Title, c.Genre, c.EpisodeCount, c.IsFree())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d titles\n", len(items), total)
	return nil
}

func runComicsShow(cmd *cobra.Command, args []string) error {
	st, err := app.OpenStore(cmd.Context(), config())
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.GetByID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("comic %s not found", args[0])
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
