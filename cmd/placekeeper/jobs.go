package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/scheduler"
)

type jobOptions struct {
	schedule bool
	temporal bool
}

// newJobCmd builds the command running one job, once or on its schedule.
func newJobCmd(use, job, short string) *cobra.Command {
	var opts jobOptions
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd.Context(), job, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.schedule, "schedule", false,
		"install the periodic trigger, run once immediately, then block until interrupted")
	if job == domain.JobMaintenance {
		cmd.Flags().BoolVar(&opts.temporal, "temporal", false,
			"run the sweep as a Temporal workflow on the maintenance worker")
	}
	return cmd
}

func runJob(parent context.Context, job string, opts jobOptions) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig("placekeeper-" + job)
	if err != nil {
		return err
	}
	if opts.temporal {
		cfg.Temporal.Enabled = true
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.dialTemporal(); err != nil {
		return err
	}

	sched := a.newScheduler()
	if err := a.register(sched, []string{job}, opts.schedule); err != nil {
		return err
	}

	if !opts.schedule {
		run, err := sched.Run(ctx, job, scheduler.TriggerCLI)
		if run != nil {
			printRun(run)
		}
		if errors.Is(err, domain.ErrJobRunning) {
			slog.Warn("job already running elsewhere", "job", job)
			return nil
		}
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	if err := sched.Trigger(job, scheduler.TriggerStartup); err != nil {
		slog.Warn("startup run skipped", "job", job, "error", err)
	}
	for _, info := range sched.Jobs() {
		slog.Info("waiting for next run", "job", info.Name, "next", info.Next)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received, waiting for running jobs", "job", job)
	return nil
}

// printRun writes the run record to stdout as JSON.
func printRun(run *domain.JobRun) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		fmt.Fprintf(os.Stderr, "encode run: %v\n", err)
	}
}

func init() {
	rootCmd.AddCommand(
		newJobCmd("discover", domain.JobDiscovery, "Scan the search grid and ingest new places"),
		newJobCmd("enrich", domain.JobEnrichment, "Fetch provider details for verified places within the daily budget"),
		newJobCmd("geography", domain.JobGeography, "Resolve department, city and sector of places missing a city"),
		newJobCmd("sweep", domain.JobMaintenance, "Deduplicate, purge old assets, reindex and write the cleanup report"),
	)
}
