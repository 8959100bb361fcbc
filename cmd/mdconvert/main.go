// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the mdconvert CLI: the conversion
// service itself plus local conversion, diagnostics, and audit commands.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mdconvert/internal/config"
	"github.com/pdiddy/mdconvert/internal/logging"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Resolved once in PersistentPreRunE and read-only afterwards.
var (
	serviceCfg types.ServiceConfig
	logger     zerolog.Logger
)

// rootCmd is the base command for the mdconvert CLI.
var rootCmd = &cobra.Command{
	Use:   "mdconvert",
	Short: "PDF to Markdown conversion service",
	Long: `mdconvert converts PDF documents to Markdown by running a chain of
external tools: a primary converter, a fallback converter, and a plain-text
extractor as the last resort. Each tool runs under a hard deadline in its own
process group and every request works in a private, always-removed workspace.

Run "mdconvert serve" for the HTTP service or "mdconvert convert" for a local
one-off conversion.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./mdconvert.yaml or ~/.config/mdconvert/mdconvert.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json or console")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// loadConfig reads .env, the config file, and the environment into
// serviceCfg and builds the logger.
func loadConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	v := viper.GetViper()
	config.SetDefaults(v)
	if err := config.BindEnv(v); err != nil {
		return err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	used, err := config.ReadFile(v, cfgFile)
	if err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	serviceCfg = cfg
	logger = logging.New(cfg.Log, os.Stderr)
	if used != "" {
		logger.Debug().Str("file", used).Msg("using config file")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
