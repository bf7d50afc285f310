package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cornman92/Better11-sub004/internal/appconfig"
)

type exportOptions struct {
	name        string
	description string
	output      string
	installed   bool
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export [app-id]...",
		Short: "Save a named application selection for another machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}

			ids := append([]string(nil), args...)
			if opts.installed {
				for _, status := range a.orch.Installed() {
					ids = append(ids, status.AppID)
				}
			}
			for _, id := range ids {
				if _, err := a.catalog.Get(id); err != nil {
					return newCommandError("export", fmt.Sprintf("resolving %q", id), err, "Only catalog applications can be exported.")
				}
			}

			doc, err := appconfig.NewExporter().Export(opts.name, opts.description, ids)
			if err != nil {
				return newCommandError("export", "building configuration", err, "Pass --name and at least one application id, or --installed.")
			}
			if err := appconfig.Save(opts.output, doc); err != nil {
				return newCommandError("export", fmt.Sprintf("writing %s", opts.output), err, "Check that the output directory is writable.")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d application(s) to %s\n", len(doc.Applications), opts.output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Name of the configuration")
	cmd.Flags().StringVar(&opts.description, "description", "", "Description of the configuration")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Path of the configuration file to write")
	cmd.Flags().BoolVar(&opts.installed, "installed", false, "Include every installed application")
	cmd.MarkFlagRequired("name")   //nolint:errcheck
	cmd.MarkFlagRequired("output") //nolint:errcheck

	return cmd
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Install every application listed in an exported configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}
			doc, err := appconfig.Load(args[0])
			if err != nil {
				return newCommandError("import", fmt.Sprintf("reading %s", args[0]), err, "Check that the file was produced by 'better11 export'.")
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			a.warnIfNotElevated(ctx)
			a.log.Info(ctx, "importing configuration", "name", doc.Name, "origin_machine", doc.OriginMachine, "applications", len(doc.Applications))

			stop := a.startProgress(ctx, cmd, cancel)
			result, err := appconfig.Import(ctx, a.orch, doc, flags.continueOnError)
			stop()
			if err != nil {
				return newCommandError("import", "validating configuration", err, "Check that the file was produced by 'better11 export'.")
			}
			if err := renderBatch(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if err := a.finish(ctx); err != nil {
				return err
			}
			return batchError(result)
		},
	}
}
