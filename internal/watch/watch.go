// Package watch polls the alert list the way the operator dashboard does and
// raises an alarm whenever the number of pending alerts grows.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/lifelink/internal/alert"
	"github.com/linnemanlabs/lifelink/internal/triage"
)

const httpTimeout = 5 * time.Second

// Alarm is raised when a poll sees more pending alerts than the previous one.
type Alarm interface {
	Raise(ctx context.Context, prev, cur triage.Counts) error
}

// AlarmFunc adapts a plain function to Alarm.
type AlarmFunc func(ctx context.Context, prev, cur triage.Counts) error

// Raise implements Alarm.
func (f AlarmFunc) Raise(ctx context.Context, prev, cur triage.Counts) error {
	return f(ctx, prev, cur)
}

// Watcher compares successive snapshots of the alert list.
type Watcher struct {
	endpoint string
	interval time.Duration
	client   *http.Client
	alarm    Alarm
	logger   log.Logger

	// last successful snapshot, zero before the first poll
	prev triage.Counts
}

// New creates a Watcher for the API at serverURL.
func New(serverURL string, interval time.Duration, alarm Alarm, logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Watcher{
		endpoint: strings.TrimRight(serverURL, "/") + "/api/alerts",
		interval: interval,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		alarm:  alarm,
		logger: logger,
	}
}

// Run polls until ctx is cancelled. Fetch failures are logged and the
// previous snapshot is kept for the next comparison.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Check(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn(ctx, "poll failed, will retry", "endpoint", w.endpoint, "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check runs one poll: fetch, compare with the previous snapshot, raise the
// alarm if pending grew. It reports whether the alarm was raised.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	cur, err := w.Fetch(ctx)
	if err != nil {
		return false, err
	}
	prev := w.prev
	w.prev = cur

	if !triage.PendingIncreased(prev, cur) {
		return false, nil
	}

	w.logger.Warn(ctx, "new pending alerts",
		"pending", cur.Pending,
		"previous", prev.Pending,
		"total", cur.Total,
	)
	if w.alarm != nil {
		if err := w.alarm.Raise(ctx, prev, cur); err != nil {
			w.logger.Error(ctx, err, "alarm failed")
		}
	}
	return true, nil
}

// Fetch retrieves the alert list and tallies it by status.
func (w *Watcher) Fetch(ctx context.Context) (triage.Counts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint, http.NoBody)
	if err != nil {
		return triage.Counts{}, fmt.Errorf("watch: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req) //nolint:gosec // G704: endpoint is from trusted config
	if err != nil {
		return triage.Counts{}, fmt.Errorf("watch: get alerts: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return triage.Counts{}, fmt.Errorf("watch: server returned %d: %s", resp.StatusCode, string(body))
	}

	var alerts []alert.Alert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		return triage.Counts{}, fmt.Errorf("watch: decode alerts: %w", err)
	}
	return triage.CountsByStatus(alerts), nil
}
