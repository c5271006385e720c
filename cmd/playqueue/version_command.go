package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/playqueue/internal/app"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.ReadBuildInfo())
		},
	}
}
