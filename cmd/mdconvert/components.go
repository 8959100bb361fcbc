// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/internal/audit"
	"github.com/pdiddy/mdconvert/internal/container"
	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/internal/orchestrator"
	"github.com/pdiddy/mdconvert/internal/probe"
	"github.com/pdiddy/mdconvert/internal/process"
	"github.com/pdiddy/mdconvert/internal/workspace"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// buildPipeline resolves the strategy chain and, when any strategy runs in
// an image, the container runtime.
func buildPipeline(cfg types.ConversionConfig, log zerolog.Logger) (*convert.Pipeline, error) {
	strategies, err := convert.BuildStrategies(cfg)
	if err != nil {
		return nil, err
	}

	var rt container.Runtime
	if needsContainer(strategies) {
		if rt, err = container.Select(cfg.ContainerRuntime); err != nil {
			return nil, err
		}
		log.Info().Str("runtime", rt.Name()).Msg("container runtime selected")
	}

	return convert.NewPipeline(convert.Config{
		Strategies: strategies,
		WorkDir:    cfg.WorkDir,
		Runtime:    rt,
	}, process.NewSupervisor(cfg.GracePeriod, log), log)
}

func needsContainer(strategies []convert.Strategy) bool {
	for _, s := range strategies {
		if s.Image != "" {
			return true
		}
	}
	return false
}

// buildOrchestrator wires the full request path. The returned closer
// releases the audit store and is never nil.
func buildOrchestrator(cfg types.ServiceConfig, log zerolog.Logger) (*orchestrator.Orchestrator, func(), error) {
	pipeline, err := buildPipeline(cfg.Conversion, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building pipeline: %w", err)
	}

	opts := []orchestrator.Option{orchestrator.WithProber(probe.New())}
	closer := func() {}
	if cfg.Audit.DBPath != "" {
		store, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit log: %w", err)
		}
		opts = append(opts, orchestrator.WithRecorder(store))
		closer = func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("closing audit log")
			}
		}
	}

	names := make([]string, 0)
	for _, s := range pipeline.Strategies() {
		names = append(names, s.Name)
	}
	log.Info().Strs("strategies", names).Int("timeout_seconds", cfg.Conversion.TimeoutSeconds).
		Str("audit", cfg.Audit.DBPath).Msg("conversion pipeline ready")

	orch := orchestrator.New(workspace.NewManager(cfg.Conversion.TempRoot, log), pipeline, log, opts...)
	return orch, closer, nil
}
