// LifeLink receives emergency alerts from field devices and serves the
// operator dashboard API for triaging them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/joho/godotenv"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"
	"go.opentelemetry.io/otel"

	lc "github.com/linnemanlabs/lifelink/internal/cfg"
	"github.com/linnemanlabs/lifelink/internal/notify/slack"
	"github.com/linnemanlabs/lifelink/internal/triage"
)

const appName = "lifelink"
const component = "server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

// settings groups every flag-registered config struct the server reads.
type settings struct {
	app    lc.Config
	http   httpserver.Config
	httpmw httpmw.Config
	log    log.Config
	ops    opshttp.Config
	prof   prof.Config
	trace  otelx.Config
}

func (s *settings) register(fs *flag.FlagSet) {
	s.app.RegisterFlags(fs)
	s.http.RegisterFlags(fs)
	s.httpmw.RegisterFlags(fs)
	s.log.RegisterFlags(fs)
	s.ops.RegisterFlags(fs)
	s.prof.RegisterFlags(fs)
	s.trace.RegisterFlags(fs)
}

func (s *settings) validate() error {
	if err := errors.Join(
		s.app.Validate(),
		s.http.Validate(),
		s.httpmw.Validate(),
		s.log.Validate(),
		s.ops.Validate(),
		s.prof.Validate(),
		s.trace.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// the API and ops listeners cannot share a port
	if s.app.APIPort == s.ops.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", s.app.APIPort)
	}
	return nil
}

// loadDotEnv sets variables from path that are not already in the
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var s settings
	s.register(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	// .env first, then LIFELINK_* env vars; neither overrides cmdline flags
	if err := loadDotEnv(".env"); err != nil {
		return err
	}
	cfg.FillFromEnv(flag.CommandLine, "LIFELINK_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := s.validate(); err != nil {
		return err
	}

	lg, err := log.New(s.log.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", s.app.APIPort,
		"admin_port", s.ops.Port,
		"database", s.app.DatabaseURL != "",
		"slack", s.app.SlackWebhookURL != "",
		"static_dir", s.app.StaticDir,
		"cors_allowed_origins", s.app.AllowedOrigins(),
		"enable_pyroscope", s.prof.EnablePyroscope,
		"enable_tracing", s.trace.EnableTracing,
		"otlp_endpoint", s.trace.OTLPEndpoint,
		"trusted_proxy_hops", s.httpmw.TrustedProxyHops,
	)

	// profiling first so the whole process lifetime is covered
	profOpts := s.prof.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", s.prof.PyroServer)
	}
	if stopProf != nil {
		defer stopProf()
	}
	profiling := profErr == nil && s.prof.EnablePyroscope

	traceOpts := s.trace.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx == nil {
		shutdownOtelx = func(context.Context) error { return nil }
	}

	// tag spans with profile ids so a slow request opens as a flame graph
	if profiling {
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(otel.GetTracerProvider()))
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	m.SetProfilingActive(profiling)
	registerDBMetrics(m.Registry())

	alertStore, closeStore, err := openStore(ctx, L, s.app.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeStore()

	var notifier triage.Notifier
	if s.app.SlackWebhookURL != "" {
		notifier = slack.New(s.app.SlackWebhookURL, L)
		L.Info(ctx, "notifier enabled", "type", "slack")
	}
	svc := triage.NewService(alertStore, L, triage.NewMetrics(m.Registry()), notifier)

	// readiness fails while draining so the load balancer stops routing here
	var shutdownGate health.ShutdownGate
	readiness := health.All(shutdownGate.Probe())
	liveness := health.Fixed(true, "")

	opsOpts := s.ops.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic

	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}

	r := newRouter(s.app, health.HealthzHandler(liveness), health.ReadyzHandler(readiness))
	mountRoutes(r, svc, s.app.StaticDir, L)
	h := instrument(r, L, func(next http.Handler) http.Handler { return m.Middleware(next) }, s.httpmw.TrustedProxyHops)

	apiOpts, err := s.http.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		_ = opsHTTPStop(context.Background())
		return err
	}
	apiHTTPStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", s.app.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		_ = opsHTTPStop(context.Background())
		return err
	}

	if err := notifySystemd(); err != nil {
		// not fatal, systemd kills us after its start timeout at worst
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	shutdownGate.Set("draining")
	drain(L, time.Duration(s.app.DrainSeconds)*time.Second)

	// stopProf is synchronous and deferred above
	shutdownAll(L, time.Duration(s.app.ShutdownBudgetSeconds)*time.Second, []stopFn{
		{"api http server", apiHTTPStop},
		{"ops http server", opsHTTPStop},
		{"otel", shutdownOtelx},
	})

	L.Info(context.Background(), "shutdown complete")
	return nil
}

// drain waits for in-flight requests and for the load balancer to notice
// the failing readiness probe. A second signal cuts it short.
func drain(L log.Logger, d time.Duration) {
	L.Info(context.Background(), "draining", "drain", d)
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(forceCh)

	select {
	case <-time.After(d):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

type stopFn struct {
	name string
	fn   func(context.Context) error
}

// shutdownAll stops components in order, each with an equal slice of budget.
func shutdownAll(L log.Logger, budget time.Duration, fns []stopFn) {
	if len(fns) == 0 {
		return
	}
	perComponent := budget / time.Duration(len(fns))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	for _, s := range fns {
		cctx, ccancel := context.WithTimeout(shutdownCtx, perComponent)
		if err := s.fn(cctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		ccancel()
	}
}

func notifySystemd() error {
	// set by systemd for Type=notify units
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // addr comes from systemd, unixgram dial has no context variant
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
