package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	natsadapter "github.com/samirrijal/placekeeper/internal/adapters/nats"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <job>",
	Short: "Ask a running placekeeper serve to start a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains(domain.JobNames, args[0]) {
			return fmt.Errorf("%s: %w", args[0], domain.ErrUnknownJob)
		}
		cfg, err := loadConfig("placekeeper-trigger")
		if err != nil {
			return err
		}
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer pub.Close()

		if err := pub.RequestRun(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("request %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "trigger for %s published\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}
