// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/mdconvert/internal/audit"
	"github.com/pdiddy/mdconvert/internal/container"
	"github.com/pdiddy/mdconvert/internal/convert"
	"github.com/pdiddy/mdconvert/internal/workspace"
)

type checkResult struct {
	name   string
	detail string
	err    error
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that converters and directories are usable",
	Long: `Doctor verifies the environment the service needs: every strategy's
executable on PATH (or its container image), the working directory, the
workspace root, and the audit database. Checks run concurrently. The
command fails when any check fails; a failing fallback only degrades the
service, but is reported the same way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := serviceCfg
		strategies, err := convert.BuildStrategies(cfg.Conversion)
		if err != nil {
			return err
		}

		var checks []func(context.Context) checkResult
		var rt container.Runtime
		var rtErr error
		if needsContainer(strategies) {
			rt, rtErr = container.Select(cfg.Conversion.ContainerRuntime)
		}
		for _, s := range strategies {
			checks = append(checks, func(context.Context) checkResult {
				return checkStrategy(s, rt, rtErr)
			})
		}
		checks = append(checks,
			func(context.Context) checkResult {
				return checkDir("work dir", cfg.Conversion.WorkDir)
			},
			func(context.Context) checkResult {
				r := checkResult{name: "workspace root", detail: cfg.Conversion.TempRoot}
				if r.detail == "" {
					r.detail = os.TempDir()
				}
				ws, err := workspace.NewManager(cfg.Conversion.TempRoot, logger).Acquire()
				if err != nil {
					r.err = err
					return r
				}
				ws.Release()
				return r
			},
		)
		if cfg.Audit.DBPath != "" {
			checks = append(checks, func(ctx context.Context) checkResult {
				r := checkResult{name: "audit log", detail: cfg.Audit.DBPath}
				store, err := audit.Open(cfg.Audit.DBPath)
				if err != nil {
					r.err = err
					return r
				}
				defer store.Close()
				sum, err := store.Summarize(ctx)
				if err != nil {
					r.err = err
					return r
				}
				r.detail = fmt.Sprintf("%s (%d conversions)", cfg.Audit.DBPath, sum.Total())
				return r
			})
		}

		results := make([]checkResult, len(checks))
		g, gctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for i, check := range checks {
			g.Go(func() error {
				results[i] = check(gctx)
				return nil
			})
		}
		g.Wait()

		w := cmd.OutOrStdout()
		var failed int
		for _, r := range results {
			status := "ok  "
			if r.err != nil {
				status = "FAIL"
				failed++
			}
			fmt.Fprintf(w, "%s  %-18s %s\n", status, r.name, r.detail)
			if r.err != nil {
				fmt.Fprintf(w, "      %v\n", r.err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d checks failed", failed, len(results))
		}
		return nil
	},
}

func checkStrategy(s convert.Strategy, rt container.Runtime, rtErr error) checkResult {
	r := checkResult{name: "strategy " + s.Name}
	if s.Image == "" {
		path, err := exec.LookPath(s.Command)
		r.detail, r.err = path, err
		if err != nil {
			r.detail = s.Command
		}
		return r
	}

	r.detail = s.Image
	switch {
	case rtErr != nil:
		r.err = rtErr
	case rt == nil:
		r.err = errors.New("no container runtime")
	default:
		r.detail = rt.Name() + " " + s.Image
		r.err = rt.ImageExists(s.Image)
	}
	return r
}

func checkDir(name, dir string) checkResult {
	r := checkResult{name: name, detail: dir}
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		r.err = err
	case !info.IsDir():
		r.err = fmt.Errorf("%s is not a directory", dir)
	}
	return r
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
