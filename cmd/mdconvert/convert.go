// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mdconvert/internal/orchestrator"
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.pdf>",
	Short: "Convert a local PDF to Markdown",
	Long: `Convert runs one PDF through the same strategy chain the service uses and
writes the Markdown to stdout, or to the file given with --output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		orch, closeAudit, err := buildOrchestrator(serviceCfg, logger)
		if err != nil {
			return err
		}
		defer closeAudit()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()

		res := orch.Convert(cmd.Context(), orchestrator.Request{
			Filename: filepath.Base(args[0]),
			Body:     f,
		})
		if !res.OK {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", res.Error)
			for _, a := range res.Attempts {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %-10s %-20s %s\n", a.Strategy, a.Kind, a.Detail)
			}
			if len(res.Attempts) == 0 && res.Details != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", res.Details)
			}
			return errors.New("conversion failed")
		}

		if output == "" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), res.Markdown)
			return err
		}
		if err := os.WriteFile(output, []byte(res.Markdown), 0o644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "converted %s with %s -> %s\n", args[0], res.Strategy, output)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "write Markdown to this file instead of stdout")

	rootCmd.AddCommand(convertCmd)
}
