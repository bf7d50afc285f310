package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

type catalogJSONEntry struct {
	AppID        string   `json:"app_id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Type         string   `json:"installer_type"`
	URI          string   `json:"uri"`
	Dependencies []string `json:"dependencies,omitempty"`
	Signed       bool     `json:"signed"`
	Description  string   `json:"description,omitempty"`
}

type catalogJSONPayload struct {
	Source       string             `json:"source"`
	Count        int                `json:"count"`
	Applications []catalogJSONEntry `json:"applications"`
}

func newCatalogCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the application catalog",
	}
	cmd.AddCommand(newCatalogListCmd(flags))
	cmd.AddCommand(newCatalogStatsCmd(flags))
	return cmd
}

func newCatalogListCmd(flags *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}
			entries, err := a.catalog.List()
			if err != nil {
				return newCommandError("list catalog", a.settings.CatalogPath, err, "Fix the catalog errors shown above and try again.")
			}
			if jsonOutput {
				return renderCatalogJSON(cmd, a.settings.CatalogPath, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The catalog is empty.")
				return nil
			}

			table := newTable(cmd.OutOrStdout())
			fmt.Fprintln(table, "APP\tNAME\tVERSION\tTYPE\tDEPENDENCIES")
			for _, entry := range entries {
				fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n",
					entry.ID,
					valueOrFallback(entry.Name, "(no name)"),
					entry.Version,
					entry.Kind,
					valueOrFallback(strings.Join(entry.Dependencies, ","), "-"),
				)
			}
			return table.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func renderCatalogJSON(cmd *cobra.Command, source string, entries []app.Metadata) error {
	payload := catalogJSONPayload{Source: source, Count: len(entries), Applications: make([]catalogJSONEntry, len(entries))}
	for i, entry := range entries {
		payload.Applications[i] = catalogJSONEntry{
			AppID:        entry.ID,
			Name:         entry.Name,
			Version:      entry.Version,
			Type:         string(entry.Kind),
			URI:          entry.URI,
			Dependencies: entry.Dependencies,
			Signed:       entry.HasSignature(),
			Description:  entry.Description,
		}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func newCatalogStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAppContext(cmd, flags)
			if err != nil {
				return err
			}
			if _, err := a.catalog.List(); err != nil {
				return newCommandError("load catalog", a.settings.CatalogPath, err, "Fix the catalog errors shown above and try again.")
			}

			stats := a.catalog.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:       %s\n", stats.Path)
			fmt.Fprintf(out, "entries:    %d\n", stats.Entries)
			fmt.Fprintf(out, "valid:      %t\n", stats.Valid)
			fmt.Fprintf(out, "loaded at:  %s\n", stats.LoadedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "modified:   %s\n", stats.ModTime.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "expiration: %s\n", stats.Expiration)
			return nil
		},
	}
}
