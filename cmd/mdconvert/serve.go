// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/pdiddy/mdconvert/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP conversion service",
	Long: `Serve listens for POST /convert uploads and answers GET / health checks.
It stops accepting connections on SIGINT or SIGTERM and waits up to
server.shutdown_timeout for in-flight conversions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			logger.Debug().Msgf(format, args...)
		})); err != nil {
			logger.Warn().Err(err).Msg("setting GOMAXPROCS")
		}

		cfg := serviceCfg
		orch, closeAudit, err := buildOrchestrator(cfg, logger)
		if err != nil {
			return err
		}
		defer closeAudit()

		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		srv := &http.Server{
			Addr:         addr,
			Handler:      server.New(orch, cfg.Server, logger).Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", addr).Str("version", version).Msg("HTTP server listening")
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("serving: %w", err)
		case <-ctx.Done():
			logger.Info().Msg("shutdown signal received")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("forced shutdown failed")
			}
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
