// lifelink-watch polls a LifeLink server and rings the terminal bell when
// new pending alerts arrive, for operators without the dashboard open.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"

	lc "github.com/linnemanlabs/lifelink/internal/cfg"
	"github.com/linnemanlabs/lifelink/internal/triage"
	"github.com/linnemanlabs/lifelink/internal/watch"
)

const appName = "lifelink"
const component = "watch"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var (
		watchCfg lc.WatchConfig
		logCfg   log.Config
		traceCfg otelx.Config
	)
	watchCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	traceCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (%s) %s (commit=%s, build_date=%s, go=%s)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion)
		return nil
	}

	cfg.FillFromEnv(flag.CommandLine, "LIFELINK_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		watchCfg.Validate(),
		logCfg.Validate(),
		traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version

	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	L.Info(ctx, "watching for new pending alerts",
		"version", vi.Version,
		"server_url", watchCfg.ServerURL,
		"interval", watchCfg.Interval(),
	)

	w := watch.New(watchCfg.ServerURL, watchCfg.Interval(), bell(os.Stdout), L)
	if err := w.Run(ctx); err != nil {
		return err
	}

	L.Info(context.Background(), "watcher stopped")
	return nil
}

// bell rings the terminal bell and prints the new pending count.
func bell(out io.Writer) watch.Alarm {
	return watch.AlarmFunc(func(_ context.Context, prev, cur triage.Counts) error {
		_, err := fmt.Fprintf(out, "\a%d pending alert(s), %d new\n", cur.Pending, cur.Pending-prev.Pending)
		return err
	})
}
