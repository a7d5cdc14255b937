// Package slack announces newly ingested emergency alerts to Slack via
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/lifelink/internal/alert"
)

const (
	maxMessageLen = 3000
	httpTimeout   = 10 * time.Second

	// below this the caller may lose contact before help arrives
	lowBatteryPercent = 15
)

// Notifier posts new alerts to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Send posts a new-alert message to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, a *alert.Alert) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(a))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "alert_id", a.ID)
	return nil
}

func buildMessage(a *alert.Alert) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(a),
			{"type": "divider"},
			fieldsBlock(a),
			{"type": "divider"},
			messageBlock(a),
			{"type": "divider"},
			contextBlock(a),
		},
	}
}

func headerBlock(a *alert.Alert) map[string]any {
	text := fmt.Sprintf("%s New emergency alert: %s", priorityEmoji(a.Priority), a.Name)
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(a *alert.Alert) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %s", a.Priority),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Battery:* %s", battery(a.PhoneBattery)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Phone:* %s", orDash(a.Phone)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Blood group:* %s", orDash(a.BloodGroup)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Age:* %s", optInt(a.Age)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Location:* <%s|%.5f, %.5f>", mapsURL(a), a.Latitude, a.Longitude),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func messageBlock(a *alert.Alert) map[string]any {
	text := truncate(a.Message, maxMessageLen)
	if text == "" {
		text = "_No message._"
	}
	if a.CurrentMedicalIssue != "" {
		text += "\n\n*Medical issue:* " + truncate(a.CurrentMedicalIssue, maxMessageLen)
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Message*\n\n%s", text),
		},
	}
}

func contextBlock(a *alert.Alert) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("lifelink • alert #%d • %s", a.ID, a.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func priorityEmoji(p alert.Priority) string {
	switch p {
	case alert.PriorityCritical, alert.PriorityHigh:
		return "\U0001f534" // red circle
	case alert.PriorityMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func battery(pct *int) string {
	if pct == nil {
		return "unknown"
	}
	s := strconv.Itoa(*pct) + "%"
	if *pct < lowBatteryPercent {
		s += " ⚠️ low"
	}
	return s
}

func mapsURL(a *alert.Alert) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%f,%f", a.Latitude, a.Longitude)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate limits s to limit runes, never splitting a multi-byte character.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}
