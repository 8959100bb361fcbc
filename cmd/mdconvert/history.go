// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/audit"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversions from the audit log",
	Long: `History prints the most recent conversions recorded in the audit log
(audit.db_path) with their status, winning strategy and failed attempts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		if serviceCfg.Audit.DBPath == "" {
			return errors.New("audit log disabled: set audit.db_path")
		}
		store, err := audit.Open(serviceCfg.Audit.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		w := cmd.OutOrStdout()
		switch format {
		case "yaml":
			return store.ExportYAML(ctx, w, limit)
		case "json":
			return store.ExportJSON(ctx, w, limit)
		case "table":
		default:
			return fmt.Errorf("unknown format %q (want table, yaml, or json)", format)
		}

		records, err := store.Recent(ctx, limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tID\tFILE\tSTATUS\tSTRATEGY\tPAGES\tDURATION\tATTEMPTS")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%d\n",
				r.StartedAt.Local().Format(time.DateTime), r.ID[:min(8, len(r.ID))], r.Filename,
				r.Status, dash(r.Strategy), r.Pages, r.Duration.Round(time.Millisecond), len(r.Attempts))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		sum, err := store.Summarize(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nconverted: %d, failed: %d, rejected: %d\n", sum.Converted, sum.Failed, sum.Rejected)
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	historyCmd.Flags().Int("limit", audit.DefaultLimit, "number of records to show")
	historyCmd.Flags().String("format", "table", "output format: table, yaml, or json")

	rootCmd.AddCommand(historyCmd)
}
