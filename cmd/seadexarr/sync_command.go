package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/seadexarr/seadexarr/internal/app"
	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/logger"
	"github.com/seadexarr/seadexarr/internal/tui"
)

type syncOptions struct {
	dryRun      bool
	interactive bool
	max         int
	concurrency int
	all         bool
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass over the configured libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}

			lock, err := acquireLock(cfg.Sync.LockPath)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			return ctx.withApp(func(cfg *config.Config, a *app.App, log *logger.Logger) error {
				if cfg.Filter.Interactive {
					if isTerminal(os.Stdin) && isTerminal(os.Stdout) {
						a.SetChooser(tui.NewChooser(os.Stdin, os.Stdout))
					} else {
						log.Warn().Msg("interactive mode needs a terminal, ties will be skipped")
					}
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				summary, err := a.Sync(runCtx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderSummary(summary, opts.all))
				if summary.Cancelled {
					return context.Canceled
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Log what would be acquired without submitting or recording anything")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Ask which release to take when several qualify")
	cmd.Flags().IntVar(&opts.max, "max", 0, "Maximum releases to submit this run (0 = no limit)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Titles processed in parallel")
	cmd.Flags().BoolVar(&opts.all, "all", false, "List every title in the summary, including those with nothing to do")

	return cmd
}

// apply overlays explicitly set flags on the loaded configuration.
func (o syncOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.Sync.DryRun = o.dryRun
	}
	if flags.Changed("interactive") {
		cfg.Filter.Interactive = o.interactive
	}
	if flags.Changed("max") {
		cfg.Filter.MaxAcquisitionsPerRun = o.max
	}
	if flags.Changed("concurrency") {
		if o.concurrency < 1 {
			return fmt.Errorf("--concurrency must be at least 1")
		}
		cfg.Sync.Concurrency = o.concurrency
	}
	return cfg.Filter.Validate()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
