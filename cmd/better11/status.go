package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [app-id]",
		Short: "Show recorded installation state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}

			var statuses []app.Status
			if len(args) == 1 {
				status, ok := a.orch.Status(args[0])
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s has no recorded installation.\n", args[0])
					return nil
				}
				statuses = append(statuses, status)
			} else {
				statuses = a.state.List()
			}
			if len(statuses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No applications recorded yet.")
				fmt.Fprintln(cmd.OutOrStdout(), "\nRun 'better11 install <app-id>' to install your first application.")
				return nil
			}

			table := newTable(cmd.OutOrStdout())
			fmt.Fprintln(table, "APP\tVERSION\tINSTALLED\tINSTALLED AT\tDEPENDENCIES\tINSTALLER")
			for _, status := range statuses {
				installed := "no"
				if status.Installed {
					installed = "yes"
				}
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\n",
					status.AppID,
					valueOrFallback(status.Version, "-"),
					installed,
					formatTime(status.InstalledAt),
					valueOrFallback(strings.Join(status.DependenciesInstalled, ","), "-"),
					valueOrFallback(status.InstallerPath, "-"),
				)
			}
			return table.Flush()
		},
	}
}

func newUpdatesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "updates",
		Short: "List installed applications with a newer catalog version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			updates, err := a.orch.CheckUpdates(ctx)
			if err != nil {
				return newCommandError("check updates", "reading catalog", err, "Check the catalog file configured in catalog_path.")
			}
			if len(updates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All installed applications are up to date.")
				return nil
			}

			table := newTable(cmd.OutOrStdout())
			fmt.Fprintln(table, "APP\tNAME\tINSTALLED\tAVAILABLE")
			for _, update := range updates {
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\n", update.AppID, update.Name, update.InstalledVersion, update.CatalogVersion)
			}
			if err := table.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d update(s) available. Run 'better11 install <app-id>' to upgrade.\n", len(updates))
			return nil
		},
	}
}
