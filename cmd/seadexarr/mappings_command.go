package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seadexarr/seadexarr/internal/app"
	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/logger"
)

func newMappingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage the cached ID mapping tables",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Re-download the mapping tables regardless of cache age",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(cfg *config.Config, a *app.App, _ *logger.Logger) error {
				if err := a.RefreshMappings(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mapping tables refreshed in %s\n", cfg.Mappings.CacheDir)
				return nil
			})
		},
	})
	return cmd
}
