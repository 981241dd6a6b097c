// Package cli holds the rsearch cobra commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rover-search/internal/journal"
	"rover-search/internal/logging"
	"rover-search/internal/telemetry"
	"rover-search/internal/tracing"
	nav "rover-search/rover_nav"
)

// Options are the persistent root flags shared by every subcommand.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// Load reads the config file and applies flag overrides.
func (o *Options) Load() (nav.AppConfig, error) {
	cfg, err := nav.LoadConfig(o.ConfigPath)
	if err != nil {
		return nav.AppConfig{}, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	return cfg, nil
}

// runtime owns the ambient services a control loop reports to.
type runtime struct {
	log      logging.Logger
	hooks    nav.Hooks
	metrics  *nav.Metrics
	recorder *journal.Recorder
	closers  []func(context.Context)
}

// newRuntime starts logging, tracing and whichever of metrics, journal and
// telemetry the config enables. Call close when done.
func newRuntime(ctx context.Context, cfg nav.AppConfig, logOut io.Writer) (*runtime, error) {
	log, logCloser, err := logging.NewWithWriter(logOut, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	rt := &runtime{log: log}
	rt.closers = append(rt.closers, func(context.Context) { _ = logCloser.Close() })

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, log)
	if err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt.closers = append(rt.closers, func(ctx context.Context) {
		tracing.ShutdownWithTimeout(ctx, shutdownTracing, log)
	})

	if cfg.Metrics.Enabled {
		m, err := nav.NewMetrics(prometheus.NewRegistry())
		if err != nil {
			rt.close(ctx)
			return nil, err
		}
		rt.metrics = m
		rt.hooks = rt.hooks.Merge(m.Hooks())
		if srv := nav.StartMetricsServer(cfg.Metrics, m, log); srv != nil {
			rt.closers = append(rt.closers, func(ctx context.Context) {
				sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(sctx)
			})
		}
	}

	if cfg.Journal.Enabled {
		db, err := journal.Open(cfg.Journal)
		if err != nil {
			rt.close(ctx)
			return nil, err
		}
		rec, err := journal.NewRecorder(db, log.With(logging.String("component", "journal")))
		if err != nil {
			rt.close(ctx)
			return nil, err
		}
		rt.recorder = rec
		rt.hooks = rt.hooks.Merge(nav.Hooks{Search: []nav.SearchObserver{rec}})
		rt.closers = append(rt.closers, func(context.Context) { _ = rec.Close() })
	}

	if tw := telemetry.New(cfg.Telemetry, log); tw.Enabled() {
		rt.hooks = rt.hooks.Merge(nav.Hooks{Cycles: []nav.CycleSink{tw}})
		rt.closers = append(rt.closers, func(context.Context) { tw.Close() })
	}

	return rt, nil
}

// close releases services in reverse start order.
func (rt *runtime) close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i](ctx)
	}
	rt.closers = nil
}
