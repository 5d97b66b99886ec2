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

	"github.com/sells-group/prospector-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate   AlertType = "run_failure_rate"
	AlertLowAvgConfidence AlertType = "low_avg_confidence"
	AlertLowCacheHitRate  AlertType = "low_cache_hit_rate"
)

// minFinishedRuns is how many runs must finish in the window before the
// failure-rate alert can fire.
const minFinishedRuns = 5

// minCacheLookups is how much cache traffic the window needs before the
// hit-rate alert can fire.
const minCacheLookups = 100

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
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
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Run failure rate.
	finished := snap.RunsComplete + snap.RunsFailed + snap.RunsCancelled
	if finished >= minFinishedRuns && snap.RunFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.RunFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"fail_rate": snap.RunFailRate,
				"threshold": a.cfg.FailureRateThreshold,
				"failed":    snap.RunsFailed,
				"finished":  finished,
			},
			Timestamp: now,
		})
	}

	// Extraction quality.
	if a.cfg.MinAvgConfidence > 0 && snap.ContactsExtracted > 0 && snap.AvgConfidence < a.cfg.MinAvgConfidence {
		alerts = append(alerts, Alert{
			Type:     AlertLowAvgConfidence,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average contact confidence %.2f below threshold %.2f across %d records in last %dh",
				snap.AvgConfidence, a.cfg.MinAvgConfidence,
				snap.ContactsExtracted, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_confidence": snap.AvgConfidence,
				"threshold":      a.cfg.MinAvgConfidence,
				"records":        snap.ContactsExtracted,
			},
			Timestamp: now,
		})
	}

	// Cache effectiveness.
	lookups := snap.CacheHits + snap.CacheMisses
	if a.cfg.MinCacheHitRate > 0 && lookups >= minCacheLookups && snap.CacheHitRate < a.cfg.MinCacheHitRate {
		alerts = append(alerts, Alert{
			Type:     AlertLowCacheHitRate,
			Severity: "low",
			Message: fmt.Sprintf(
				"Cache hit rate %.1f%% below threshold %.1f%% (%d lookups)",
				snap.CacheHitRate*100, a.cfg.MinCacheHitRate*100, lookups,
			),
			Details: map[string]any{
				"hit_rate":  snap.CacheHitRate,
				"threshold": a.cfg.MinCacheHitRate,
				"lookups":   lookups,
			},
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
