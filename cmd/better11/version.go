package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Better11 %s\ncommit: %s\nbuilt: %s\nplatform: %s/%s (%s)\n",
				version, commit, date, runtime.GOOS, runtime.GOARCH, runtime.Version())
			return nil
		},
	}
}
