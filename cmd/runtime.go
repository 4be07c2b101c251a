package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sdnguard/internal/audit"
	"sdnguard/internal/config"
	"sdnguard/internal/observability"
)

// runtime is the ambient state every long-running command needs.
type runtime struct {
	cfg     *config.Config
	logger  *observability.Logger
	obs     *observability.PromObs
	reg     *prometheus.Registry
	closers []func() error
}

// setup loads configuration and builds the logger and metrics registry.
// With quiet set, log lines only go to log.file so a TUI owns the terminal.
func setup(quiet bool) (*runtime, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	rt := &runtime{cfg: cfg}

	var out io.Writer = os.Stderr
	if quiet {
		out = io.Discard
	}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		rt.closers = append(rt.closers, f.Close)
		if quiet {
			out = f
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	rt.logger = observability.NewLogger(out, observability.ParseLevel(cfg.Log.Level))
	rt.reg = prometheus.NewRegistry()
	rt.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.obs = observability.NewPromObs(rt.reg, rt.logger)
	return rt, nil
}

// openAudit opens the audit store when audit.dsn is set.
func (rt *runtime) openAudit(ctx context.Context) (*audit.SQLStore, error) {
	if rt.cfg.Audit.DSN == "" {
		return nil, nil
	}
	store, err := audit.Open(ctx, rt.cfg.Audit.DSN)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, store.Close)
	rt.obs.LogInfo("audit_store_open", observability.F("dsn", rt.cfg.Audit.DSN))
	return store, nil
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}
