// Package app wires the five components into one runnable pipeline:
// load config, build the executable plan, run the scheduler against
// concrete input sources, write the sink's output, and assemble/write
// the run report. Grounded on the teacher's internal/app.App, trimmed
// from a long-running daemon's component zoo (monitors, enterprise
// features, HTTP control-plane) down to the lifecycle a batch job
// actually has: one Run call that does the whole pipeline and
// returns.
package app

import (
	"context"
	"time"

	"github.com/mdzesseis/fastqflow/internal/config"
	"github.com/mdzesseis/fastqflow/internal/metrics"
	"github.com/mdzesseis/fastqflow/internal/planner"
	"github.com/mdzesseis/fastqflow/internal/report"
	"github.com/mdzesseis/fastqflow/internal/scheduler"
	"github.com/mdzesseis/fastqflow/internal/sink"
	"github.com/mdzesseis/fastqflow/internal/step"
	"github.com/sirupsen/logrus"
)

// Source is the scheduler's per-segment input boundary, re-exported so
// callers outside internal/scheduler (cmd/fastqflow, tests) can build
// fakes without importing internal/scheduler directly.
type Source = scheduler.Source

// App is one configured pipeline run. It is not a long-running
// daemon: there is no Start/Stop lifecycle pair the way the teacher's
// App has, because a FASTQ run has a beginning and an end.
type App struct {
	configPath string
	logger     *logrus.Logger

	// IncludeTiming, when true, attaches timing.resources (CPU/memory
	// snapshot) and per-step timing to the JSON/HTML report.
	IncludeTiming bool

	// MetricsAddr, if non-empty, starts a prometheus /metrics server
	// for the duration of Run. Empty disables it (the common case for
	// a short batch invocation).
	MetricsAddr string
}

// New loads and validates configPath and returns an App ready to Run.
// Matching the teacher's New(configFile), configuration is loaded and
// validated eagerly so a bad config fails before any component is
// built.
func New(configPath string, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if _, err := config.Load(configPath); err != nil {
		return nil, err
	}
	return &App{configPath: configPath, logger: logger}, nil
}

// Run executes one complete pipeline run: load config, build the plan,
// wire concrete sources/sink, drive the scheduler, and write the
// report. It returns the assembled report document on success.
func (a *App) Run(ctx context.Context) (*report.Document, error) {
	start := time.Now()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}

	registry := step.NewRegistry()
	plan, err := planner.Build(cfg, registry)
	if err != nil {
		return nil, err
	}

	var metricsServer *metrics.Server
	if a.MetricsAddr != "" {
		metricsServer = metrics.NewServer(a.MetricsAddr, a.logger)
		if err := metricsServer.Start(); err != nil {
			return nil, err
		}
		defer metricsServer.Stop()
	}

	sources, err := newFastqSources(cfg)
	if err != nil {
		return nil, err
	}

	out := sink.New(cfg.Output, plan.SegmentNames, plan.Buckets, a.logger)

	schedCfg := scheduler.Config{
		ThreadCount:   cfg.Options.ThreadCount,
		QueueCapacity: cfg.Options.MaxInFlightBlocks,
	}

	result, runErr := scheduler.Run(ctx, plan, schedCfg, a.logger, sources, out)
	if runErr != nil {
		return nil, runErr
	}

	doc := report.Assemble(cfg, a.configPath, result, a.IncludeTiming, time.Since(start))
	if err := report.Write(cfg.Output, doc); err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"steps":    len(plan.Steps),
	}).Info("pipeline run complete")

	return &doc, nil
}
