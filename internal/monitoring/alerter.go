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

	"github.com/sells-group/market-match/internal/config"
	"github.com/sells-group/market-match/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertMatchFailureRate   AlertType = "match_failure_rate"
	AlertQueueDrops         AlertType = "queue_drops"
	AlertWorkerPanics       AlertType = "worker_panics"
	AlertStoreUnreachable   AlertType = "store_unreachable"
	AlertExtractionDegraded AlertType = "extraction_degraded"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	window := snap.Window.Round(time.Second)

	minJobs := int64(a.cfg.MinJobs)
	if minJobs <= 0 {
		minJobs = 5
	}

	finished := snap.Completed + snap.Failed
	if finished >= minJobs && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertMatchFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Matching failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %s)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100, snap.Failed, finished, window,
			),
			Details: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.Failed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.Dropped > 0 && snap.DropRate > a.cfg.DropRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertQueueDrops,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d listing(s) dropped by a full matching queue in last %s (%.1f%% of submissions)",
				snap.Dropped, window, snap.DropRate*100,
			),
			Details: map[string]any{
				"dropped":   snap.Dropped,
				"drop_rate": snap.DropRate,
				"queued":    snap.Queued,
				"capacity":  snap.Capacity,
			},
			Timestamp: now,
		})
	}

	if snap.Panics > 0 {
		alerts = append(alerts, Alert{
			Type:      AlertWorkerPanics,
			Severity:  "high",
			Message:   fmt.Sprintf("%d matching job(s) panicked in last %s", snap.Panics, window),
			Details:   map[string]any{"panics": snap.Panics},
			Timestamp: now,
		})
	}

	if !snap.StoreHealthy {
		alerts = append(alerts, Alert{
			Type:      AlertStoreUnreachable,
			Severity:  "critical",
			Message:   "Store ping failed: " + snap.StoreError,
			Timestamp: now,
		})
	}

	if snap.BreakerState == resilience.Open.String() {
		alerts = append(alerts, Alert{
			Type:      AlertExtractionDegraded,
			Severity:  "medium",
			Message:   "Preference extraction breaker is open; new preferences use keyword fallback",
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
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
