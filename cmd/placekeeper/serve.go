package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpadapter "github.com/samirrijal/placekeeper/internal/adapters/http"
	natsadapter "github.com/samirrijal/placekeeper/internal/adapters/nats"
	"github.com/samirrijal/placekeeper/internal/core/domain"
	"github.com/samirrijal/placekeeper/internal/scheduler"
)

var serveOpts struct {
	openAPIPath string
	noStartup   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Schedule every job and serve the operator API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig("placekeeper-serve")
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.dialTemporal(); err != nil {
			return err
		}

		go a.db.ReportPoolStats(ctx, 15*time.Second)

		sched := a.newScheduler()
		var jobs []string
		for _, name := range domain.JobNames {
			fn, err := a.jobFunc(name)
			if err != nil {
				// A job that cannot be built is left out; the others still run.
				slog.Warn("job disabled", "job", name, "error", err)
				continue
			}
			if err := sched.Register(name, cfg.Schedule.Specs()[name], fn); err != nil {
				return err
			}
			jobs = append(jobs, name)
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		if !serveOpts.noStartup {
			for _, name := range jobs {
				if err := sched.Trigger(name, scheduler.TriggerStartup); err != nil {
					slog.Warn("startup run skipped", "job", name, "error", err)
				}
			}
		}

		// Manual triggers over NATS
		if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
			slog.Warn("nats trigger subscription unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeJobTriggers(ctx, func(_ context.Context, job string) error {
				return sched.Trigger(job, scheduler.TriggerNATS)
			}); err != nil {
				slog.Warn("subscribe job triggers", "error", err)
			}
		}

		deps := &httpadapter.Dependencies{
			Jobs:        sched,
			Places:      a.places,
			DB:          a.db,
			Cache:       a.cache,
			Version:     Version,
			OpenAPIPath: serveOpts.openAPIPath,
		}
		if nc, err := natsadapter.Connect(cfg.NATS.URL); err != nil {
			slog.Warn("nats health connection unavailable", "error", err)
		} else {
			defer nc.Close()
			deps.NATS = nc
		}

		app := fiber.New(fiber.Config{
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			BodyLimit:    64 * 1024,
			AppName:      "placekeeper",
		})
		app.Use(recover.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins: "http://localhost:3000, http://localhost:5173",
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			MaxAge:       3600,
		}))
		httpadapter.SetupRoutes(app, deps)

		errCh := make(chan error, 1)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			slog.Info("operator API starting", "addr", addr)
			errCh <- app.Listen(addr)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("listen: %w", err)
		case <-ctx.Done():
		}

		slog.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("forced shutdown", "error", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.openAPIPath, "openapi", httpadapter.DefaultOpenAPIPath, "path of the OpenAPI document served at /docs")
	serveCmd.Flags().BoolVar(&serveOpts.noStartup, "no-startup-run", false, "wait for the first scheduled tick instead of running every job at startup")
	rootCmd.AddCommand(serveCmd)
}
