package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/seadexarr/seadexarr/internal/app"
	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/logger"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Work with notification targets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test message to every configured notifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(_ *config.Config, a *app.App, _ *logger.Logger) error {
				out := cmd.OutOrStdout()
				if a.Notifier().Len() == 0 {
					fmt.Fprintln(out, "No notifiers configured")
					return nil
				}

				results := a.Notifier().Test(cmd.Context())
				names := make([]string, 0, len(results))
				for name := range results {
					names = append(names, name)
				}
				sort.Strings(names)

				rows := make([][]string, 0, len(names))
				failed := 0
				for _, name := range names {
					detail := ""
					if err := results[name]; err != nil {
						detail = err.Error()
						failed++
					}
					rows = append(rows, []string{name, yesNo(results[name] == nil), detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Notifier", "Delivered", "Error"}, rows, nil))
				if failed > 0 {
					return errors.New("one or more notifiers failed")
				}
				return nil
			})
		},
	})
	return cmd
}
