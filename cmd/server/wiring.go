package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/lifelink/internal/alertapi"
	lc "github.com/linnemanlabs/lifelink/internal/cfg"
	"github.com/linnemanlabs/lifelink/internal/postgres"
	"github.com/linnemanlabs/lifelink/internal/triage"
	"github.com/linnemanlabs/lifelink/internal/triage/memstore"
	"github.com/linnemanlabs/lifelink/internal/triage/pgstore"
)

// field devices post small JSON bodies
const maxRequestBody = 1024 * 64

// openStore returns the postgres store when databaseURL is set and the
// in-memory store otherwise. The returned func releases the pool.
func openStore(ctx context.Context, L log.Logger, databaseURL string) (triage.Store, func(), error) {
	if databaseURL == "" {
		L.Info(ctx, "using in-memory store (no database-url configured)")
		return memstore.New(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres pool: %w", err)
	}
	st, err := pgstore.New(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pgstore init: %w", err)
	}
	L.Info(ctx, "using postgres store")
	return st, pool.Close, nil
}

// registerDBMetrics wires per-query durations from the pgx tracer into reg.
func registerDBMetrics(reg prometheus.Registerer) {
	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lifelink_db_query_duration_seconds",
		Help:    "Duration of individual database queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "outcome"})
	reg.MustRegister(dbQueryDuration)

	postgres.SetQueryObserver(postgres.QueryObserverFunc(
		func(_ context.Context, method, route, outcome string, dur time.Duration) {
			dbQueryDuration.WithLabelValues(method, route, outcome).Observe(dur.Seconds())
		},
	))
}

func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Trace-Id"},
		MaxAge:         300,
	}
}

// newRouter builds the API router with its route-aware middleware and the
// health endpoints. Routes are added by mountRoutes.
func newRouter(app lc.Config, healthz, readyz http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	// JSON API, CSV export and the dashboard's static files
	r.Use(middleware.Compress(5, "application/json", "text/csv", "text/html", "text/css", "text/javascript", "application/javascript"))

	// the dashboard may be served from another origin
	r.Use(cors.Handler(corsOptions(app.AllowedOrigins())))

	// rename logger fields and the span to the chi route pattern
	r.Use(httpmw.AnnotateHTTPRoute)

	// method label for DB query metrics
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(postgres.WithHTTPMethod(req.Context(), req.Method)))
		})
	})

	r.Use(httpmw.AccessLog())

	// 413 above the limit
	r.Use(httpmw.MaxBody(maxRequestBody))

	r.Get("/-/healthy", healthz)
	r.Get("/-/ready", readyz)

	return r
}

// mountRoutes registers the alert API and, when staticDir is set, serves the
// dashboard from it for every path the API does not claim.
func mountRoutes(r chi.Router, svc alertapi.AlertService, staticDir string, L log.Logger) {
	alertapi.New(L, svc).RegisterRoutes(r)

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
		L.Info(context.Background(), "serving dashboard", "dir", staticDir)
	}
}

// instrument wraps h in the request-scoped middleware. Outermost runs first
// on the request, so the order below is innermost to outermost.
func instrument(h http.Handler, L log.Logger, withMetrics func(http.Handler) http.Handler, trustedHops int) http.Handler {
	// inner so the request logger sees trace_id and the chi route
	h = httpmw.WithLogger(L)(h)

	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/-/healthy" && r.URL.Path != "/-/ready"
		}),
		// AnnotateHTTPRoute renames the span to the route pattern later
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		// requests come from field devices and browsers, never from a traced caller
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)

	h = withMetrics(h)

	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{
		TrustedHops: trustedHops,
	})(h)

	h = httpmw.RequestID("X-Request-Id")(h)

	// catches panics from every layer below
	h = httpmw.Recover(L, nil)(h)

	// outermost so every response carries them
	h = httpmw.SecurityHeaders(h)

	return h
}
