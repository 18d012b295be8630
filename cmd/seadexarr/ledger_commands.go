package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/seadexarr/seadexarr/internal/app"
	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/logger"
	"github.com/seadexarr/seadexarr/internal/media"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or edit the acquisition ledger",
	}
	cmd.AddCommand(newLedgerListCommand(ctx))
	cmd.AddCommand(newLedgerForgetCommand(ctx))
	return cmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var libraryID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded acquisitions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(_ *config.Config, a *app.App, _ *logger.Logger) error {
				entries, err := a.Ledger().List(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					if libraryID != "" && e.LibraryID != libraryID {
						continue
					}
					rows = append(rows, ledgerRow(e, time.Now()))
				}

				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No acquisitions recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Key", "Title", "Episode", "Group", "Release", "Acquired"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&libraryID, "library-id", "", "Only show entries for one library ID, e.g. sonarr:12")
	return cmd
}

func ledgerRow(e ledger.Entry, now time.Time) []string {
	return []string{
		e.Key.String(),
		e.Title,
		media.EpisodeLabel(e.Season, e.Episode),
		e.ReleaseGroup,
		e.ReleaseIndexID + " (AniList " + strconv.Itoa(e.IndexID) + ")",
		humanize.RelTime(e.AcquiredAt, now, "ago", "from now"),
	}
}

func newLedgerForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <key>...",
		Short: "Remove ledger entries so the episodes are considered again",
		Long:  "Remove ledger entries by key (<library_id>:<season>:<episode>, e.g. sonarr:12:1:3).",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]ledger.Key, 0, len(args))
			for _, arg := range args {
				key, err := ledger.ParseKey(arg)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}

			return ctx.withApp(func(_ *config.Config, a *app.App, _ *logger.Logger) error {
				return forgetKeys(cmd.Context(), cmd, a.Ledger(), keys)
			})
		},
	}
}

func forgetKeys(ctx context.Context, cmd *cobra.Command, l *ledger.Ledger, keys []ledger.Key) error {
	out := cmd.OutOrStdout()
	for _, key := range keys {
		removed, err := l.Forget(ctx, key)
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(out, "Forgot %s\n", key)
		} else {
			fmt.Fprintf(out, "No entry for %s\n", key)
		}
	}
	return nil
}
