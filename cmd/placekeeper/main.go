// Command placekeeper runs the places pipeline jobs, the operator API and the
// maintenance workflow worker.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/samirrijal/placekeeper/internal/pkg/config"
	"github.com/samirrijal/placekeeper/internal/pkg/logging"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "placekeeper",
	Short: "places catalogue pipeline",
	Long: `
placekeeper discovers points of interest from the places provider, deduplicates
them into the canonical store, enriches them under a daily call budget, resolves
their administrative geography and sweeps the store on a schedule.
`,
	SilenceUsage: true,
}

// loadConfig reads configuration and installs the process logger.
func loadConfig(service string) (*config.Config, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func main() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		slog.Error("placekeeper failed", "error", err)
		os.Exit(1)
	}
}
