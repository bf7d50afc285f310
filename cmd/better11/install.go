package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

type planJSONStep struct {
	AppID        string   `json:"app_id"`
	Name         string   `json:"name,omitempty"`
	Version      string   `json:"version,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Satisfied    bool     `json:"satisfied"`
	Action       string   `json:"action"`
	Notes        []string `json:"notes,omitempty"`
}

type planJSONPayload struct {
	Target   string         `json:"target"`
	Steps    []planJSONStep `json:"steps"`
	Warnings []string       `json:"warnings,omitempty"`
}

func newPlanCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan <app-id>",
		Short: "Show what installing an application would do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			plan, err := a.orch.Plan(ctx, args[0])
			if err != nil {
				return newCommandError("plan", fmt.Sprintf("planning %q", args[0]), err, "Check the application id with 'better11 catalog list'.")
			}
			if jsonOutput {
				return renderPlanJSON(cmd, plan)
			}
			return renderPlan(cmd.OutOrStdout(), plan)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func renderPlanJSON(cmd *cobra.Command, plan *app.InstallPlan) error {
	payload := planJSONPayload{Target: plan.Target, Warnings: plan.Warnings, Steps: make([]planJSONStep, len(plan.Steps))}
	for i, step := range plan.Steps {
		payload.Steps[i] = planJSONStep{
			AppID:        step.AppID,
			Name:         step.Name,
			Version:      step.Version,
			Dependencies: step.Dependencies,
			Satisfied:    step.Satisfied,
			Action:       string(step.Action),
			Notes:        step.Notes,
		}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func newInstallCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install <app-id>...",
		Short: "Install applications and their dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			a.warnIfNotElevated(ctx)

			stop := a.startProgress(ctx, cmd, cancel)
			result, err := a.orch.BatchInstall(ctx, args, flags.continueOnError)
			stop()
			if err != nil {
				return newCommandError("install", "validating application ids", err, "Application ids may contain letters, digits, '.', '_' and '-'.")
			}
			if err := renderBatch(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if a.dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "dry run: no installers were executed and state was not changed")
			}
			if err := a.finish(ctx); err != nil {
				return err
			}
			return batchError(result)
		},
	}
}

func newUninstallCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <app-id>...",
		Short: "Uninstall applications",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			a.warnIfNotElevated(ctx)

			stop := a.startProgress(ctx, cmd, cancel)
			result, err := a.orch.BatchUninstall(ctx, args, flags.continueOnError)
			stop()
			if err != nil {
				return newCommandError("uninstall", "validating application ids", err, "Application ids may contain letters, digits, '.', '_' and '-'.")
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
