// Command fastqflow runs the configured pipeline once, or repeatedly
// under -watch, re-running every time the config file changes.
// CLI parsing is explicitly out of scope for the core engine
// (spec.md §1); this is the thin, not-further-specified entry point
// that wires a config path to internal/app.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdzesseis/fastqflow/internal/app"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile  string
		watch       bool
		timing      bool
		metricsAddr string
		logLevel    string
	)
	flag.StringVar(&configFile, "config", "", "path to the pipeline's YAML configuration file")
	flag.BoolVar(&watch, "watch", false, "re-run the pipeline whenever the config file changes")
	flag.BoolVar(&timing, "timing", false, "attach per-step timing and a resource snapshot to the report")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "bind address for the prometheus /metrics endpoint (empty disables it)")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	if configFile == "" {
		if env := os.Getenv("FASTQFLOW_CONFIG_FILE"); env != "" {
			configFile = env
		} else {
			fmt.Fprintln(os.Stderr, "fastqflow: -config is required")
			os.Exit(2)
		}
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})

	a, err := app.New(configFile, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fastqflow: failed to load config: %v\n", err)
		os.Exit(1)
	}
	a.IncludeTiming = timing
	a.MetricsAddr = metricsAddr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if watch {
		watcher, err := app.NewConfigWatcher(a, time.Second, 5*time.Second)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fastqflow: failed to start config watcher: %v\n", err)
			os.Exit(1)
		}
		if err := watcher.Watch(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "fastqflow: watch failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if _, err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fastqflow: run failed: %v\n", err)
		os.Exit(1)
	}
}
