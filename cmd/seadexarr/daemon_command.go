package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seadexarr/seadexarr/internal/api"
	"github.com/seadexarr/seadexarr/internal/app"
	"github.com/seadexarr/seadexarr/internal/logger"
	"github.com/seadexarr/seadexarr/internal/scheduler"
	"github.com/seadexarr/seadexarr/internal/scheduler/tasks"
)

const shutdownTimeout = 30 * time.Second

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var noStartupSync bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run syncs on a schedule and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Filter.Interactive {
				return fmt.Errorf("interactive mode is not available in the daemon; set filter.interactive = false")
			}

			lock, err := acquireLock(cfg.Sync.LockPath)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			recent := logger.NewRecentLogs(0)
			log := ctx.newLogger(cfg, recent)
			defer log.Close()

			a, err := app.New(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := scheduler.New(log.Logger)
			if err != nil {
				return err
			}
			if err := tasks.RegisterSyncTask(sched, a, cfg.Sync.Schedule, !noStartupSync); err != nil {
				return err
			}
			if err := tasks.RegisterMappingsRefreshTask(sched, a, cfg.Mappings.RefreshSchedule); err != nil {
				return err
			}

			server := api.NewServer(api.Deps{
				Runs:     a,
				Ledger:   a.Ledger(),
				Tasks:    sched,
				Logs:     recent,
				LogFile:  log.FilePath(),
				DryRun:   cfg.Sync.DryRun,
				Schedule: cfg.Sync.Schedule,
			}, log.Logger)

			if err := sched.Start(); err != nil {
				return err
			}

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Start(cfg.Server.Address())
			}()

			log.Info().
				Str("address", cfg.Server.Address()).
				Str("schedule", cfg.Sync.Schedule).
				Bool("dryRun", cfg.Sync.DryRun).
				Msg("seadexarr daemon started")

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case <-sigCtx.Done():
				log.Info().Msg("received shutdown signal")
			case err = <-serverErr:
				if err != nil {
					log.Error().Err(err).Msg("HTTP server failed")
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
				log.Warn().Err(shutdownErr).Msg("failed to stop HTTP server cleanly")
			}
			if stopErr := sched.Stop(); stopErr != nil {
				log.Warn().Err(stopErr).Msg("failed to stop scheduler cleanly")
			}
			log.Info().Msg("seadexarr daemon stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&noStartupSync, "no-startup-sync", false, "Wait for the first scheduled tick instead of syncing at startup")
	return cmd
}
