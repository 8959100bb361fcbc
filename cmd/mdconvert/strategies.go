// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/pkg/types"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Print the resolved strategy chain as YAML",
	Long: `Strategies prints the conversion chain in priority order after defaults,
the config file and the environment are applied. The output can be pasted
under conversion.strategies to customize the chain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategies, err := convert.BuildStrategies(serviceCfg.Conversion)
		if err != nil {
			return err
		}
		configs := make([]types.StrategyConfig, len(strategies))
		for i, s := range strategies {
			configs[i] = s.Config()
		}

		data, err := yaml.Marshal(map[string]any{"strategies": configs})
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
