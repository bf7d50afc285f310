package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath      string
	verbose         bool
	dryRun          bool
	continueOnError bool
	metricsFile     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "better11",
		Short:         "Better11 installs and updates vetted Windows applications from a catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to settings file (default $BETTER11_CONFIG)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "Print installer commands without running them")
	cmd.PersistentFlags().BoolVar(&flags.continueOnError, "continue-on-error", false, "Keep going after a failed application")
	cmd.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newInstallCmd(flags))
	cmd.AddCommand(newUninstallCmd(flags))
	cmd.AddCommand(newStatusCmd(flags))
	cmd.AddCommand(newUpdatesCmd(flags))
	cmd.AddCommand(newCatalogCmd(flags))
	cmd.AddCommand(newExportCmd(flags))
	cmd.AddCommand(newImportCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
