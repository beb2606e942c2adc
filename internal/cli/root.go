// Package cli holds the webtoonhub command tree.
package cli

import (
	"github.com/spf13/cobra"

	"webtoonhub/internal/logger"
	"webtoonhub/pkg/utils"
)

var rootFlags struct {
	logLevel string
	logJSON  bool
	store    string
	dataFile string
}

var RootCmd = &cobra.Command{
	Use:   "webtoonhub",
	Short: "Mirror the completed webtoon catalog and query it",
	Long:  "Mirror the completed webtoon catalog into a local store, detect new titles and episodes, and query the result.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(rootFlags.logLevel, !rootFlags.logJSON)
	},
	SilenceUsage: true,
}

func init() {
	cfg := utils.LoadConfig()
	RootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", cfg.LogLevel, "log level")
	RootCmd.PersistentFlags().BoolVar(&rootFlags.logJSON, "log-json", cfg.LogJSON, "log JSON lines instead of console output")
	RootCmd.PersistentFlags().StringVar(&rootFlags.store, "store", cfg.StoreBackend, "store backend: file, sqlite or postgres")
	RootCmd.PersistentFlags().StringVar(&rootFlags.dataFile, "data-file", cfg.DataFile, "catalog file for the file store")
}

// Execute runs the command tree.
func Execute() error {
	return RootCmd.Execute()
}

// config is the environment configuration with command line overrides.
func config() utils.Config {
	cfg := utils.LoadConfig()
	cfg.StoreBackend = rootFlags.store
	cfg.DataFile = rootFlags.dataFile
	return cfg
}
