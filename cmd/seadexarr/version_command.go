package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seadexarr/seadexarr/internal/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "seadexarr %s (%s)\n", config.Version, config.Commit)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seadexarr %s\n", config.Version)
			return nil
		},
	}
}
