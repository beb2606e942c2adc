package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"webtoonhub/internal/app"
	"webtoonhub/internal/crawler"
	"webtoonhub/internal/store"
	"webtoonhub/pkg/models"
)

var transferArgs struct {
	format string
	out    string
	in     string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored catalog as CSV or JSON",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Merge records from a CSV or JSON file into the store",
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&transferArgs.format, "format", "f", "csv", "csv or json")
	exportCmd.Flags().StringVarP(&transferArgs.out, "out", "o", "", "output path (default stdout)")

	importCmd.Flags().StringVarP(&transferArgs.in, "in", "i", "", "input path; .csv is read as CSV, anything else as JSON")
	_ = importCmd.MarkFlagRequired("in")

	RootCmd.AddCommand(exportCmd)
	RootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := app.OpenStore(cmd.Context(), config())
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := store.List(cmd.Context(), st)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if transferArgs.out != "" {
		if err := os.MkdirAll(filepath.Dir(transferArgs.out), 0o755); err != nil {
			return err
		}
		f, err := os.Create(transferArgs.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch transferArgs.format {
	case "csv":
		err = writeCSV(w, list)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(list)
	default:
		return fmt.Errorf("unknown format %q", transferArgs.format)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Info().Int("comics", len(list)).Str("format", transferArgs.format).Msg("exported catalog")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(transferArgs.in)
	if err != nil {
		return err
	}
	defer f.Close()

	var list []models.Comic
	if strings.EqualFold(filepath.Ext(transferArgs.in), ".csv") {
		list, err = readCSV(f)
	} else {
		err = json.NewDecoder(f).Decode(&list)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", transferArgs.in, err)
	}

	st, err := app.OpenStore(cmd.Context(), config())
	if err != nil {
		return err
	}
	defer st.Close()

	cat, err := st.LoadAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	n := mergeInto(cat, list, time.Now().UTC().Truncate(time.Second))
	if n > 0 {
		if err := st.SaveAll(cmd.Context(), cat); err != nil {
			return fmt.Errorf("save catalog: %w", err)
		}
	}
	log.Info().Int("comics", n).Int("rows", len(list)).Str("in", transferArgs.in).Msg("imported catalog")
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d comics\n", n)
	return nil
}

// mergeInto applies list to cat with the crawl's merge rules and returns how
// many distinct records it wrote. Records without an id are skipped.
func mergeInto(cat store.Catalog, list []models.Comic, now time.Time) int {
	written := make(map[string]struct{}, len(list))
	for _, c := range list {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			continue
		}
		var existing *models.Comic
		if stored, ok := cat[id]; ok {
			existing = &stored
		}
		cat[id] = crawler.Merge(existing, c, now)
		written[id] = struct{}{}
	}
	return len(written)
}
