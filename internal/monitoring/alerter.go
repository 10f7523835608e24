// Package monitoring posts operational alerts to an external webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRelayCircuitOpen   AlertType = "relay_circuit_open"
	AlertRelayCircuitClosed AlertType = "relay_circuit_closed"
)

// Alert is the webhook payload.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter delivers alerts to a webhook. An empty webhook URL disables delivery.
type Alerter struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewAlerter creates an Alerter posting to webhookURL.
func NewAlerter(webhookURL string) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool { return a != nil && a.webhookURL != "" }

// CircuitChange builds the alert for a relay breaker transition. Only
// transitions into open and back to closed are reported.
func (a *Alerter) CircuitChange(from, to string, threshold int) (Alert, bool) {
	now := a.now().UTC()
	switch to {
	case "open":
		return Alert{
			Type:     AlertRelayCircuitOpen,
			Severity: "high",
			Message:  fmt.Sprintf("Lead relay circuit opened from %s (threshold %d); leads fall back to phone", from, threshold),
			Details: map[string]any{
				"from":      from,
				"threshold": threshold,
			},
			Timestamp: now,
		}, true
	case "closed":
		if from == "closed" {
			return Alert{}, false
		}
		return Alert{
			Type:      AlertRelayCircuitClosed,
			Severity:  "info",
			Message:   "Lead relay circuit closed; Telegram delivery recovered",
			Details:   map[string]any{"from": from},
			Timestamp: now,
		}, true
	}
	return Alert{}, false
}

// Send delivers alert to the webhook. Failures are logged, never returned.
func (a *Alerter) Send(ctx context.Context, alert Alert) bool {
	if !a.Enabled() {
		return false
	}
	if err := a.sendWebhook(ctx, alert); err != nil {
		zap.L().Error("monitoring: failed to send alert",
			zap.String("type", string(alert.Type)),
			zap.Error(err),
		)
		return false
	}
	zap.L().Info("monitoring: alert sent",
		zap.String("type", string(alert.Type)),
		zap.String("severity", alert.Severity),
	)
	return true
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
