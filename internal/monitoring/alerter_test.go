package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector-cli/internal/config"
)

func healthyThresholds() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		MinAvgConfidence:     0.30,
		MinCacheHitRate:      0.10,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(healthyThresholds())

	snap := &Snapshot{
		RunsTotal:         100,
		RunsComplete:      95,
		RunsFailed:        5,
		RunFailRate:       0.05,
		ContactsExtracted: 200,
		AvgConfidence:     0.8,
		CacheHits:         900,
		CacheMisses:       100,
		CacheHitRate:      0.9,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_RunFailureRate(t *testing.T) {
	a := NewAlerter(healthyThresholds())

	snap := &Snapshot{
		RunsTotal:     20,
		RunsComplete:  12,
		RunsFailed:    8,
		RunFailRate:   0.4, // 8/20 = 40%
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_LowAvgConfidence(t *testing.T) {
	a := NewAlerter(healthyThresholds())

	snap := &Snapshot{
		ContactsExtracted: 40,
		AvgConfidence:     0.2,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowAvgConfidence, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "0.20")
}

func TestAlerter_Evaluate_LowCacheHitRate(t *testing.T) {
	a := NewAlerter(healthyThresholds())

	snap := &Snapshot{
		CacheHits:     5,
		CacheMisses:   195,
		CacheHitRate:  0.025,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowCacheHitRate, alerts[0].Type)
	assert.Equal(t, "low", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "2.5%")
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(healthyThresholds())

	snap := &Snapshot{
		RunsTotal:         20,
		RunsComplete:      10,
		RunsFailed:        10,
		RunFailRate:       0.5,
		ContactsExtracted: 30,
		AvgConfidence:     0.1,
		CacheHits:         0,
		CacheMisses:       150,
		CacheHitRate:      0.0,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 3)

	types := make(map[AlertType]bool)
	for _, alert := range alerts {
		types[alert.Type] = true
	}
	assert.True(t, types[AlertRunFailureRate])
	assert.True(t, types[AlertLowAvgConfidence])
	assert.True(t, types[AlertLowCacheHitRate])
}

func TestAlerter_Evaluate_MinimumRunsRequired(t *testing.T) {
	a := NewAlerter(healthyThresholds())

	// Only 3 finished runs, below the 5-run minimum for the failure rate alert.
	snap := &Snapshot{
		RunsTotal:     3,
		RunsComplete:  1,
		RunsFailed:    2,
		RunFailRate:   0.666,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_MinimumCacheTraffic(t *testing.T) {
	a := NewAlerter(healthyThresholds())

	// 10 lookups, below the 100-lookup minimum for the hit rate alert.
	snap := &Snapshot{
		CacheHits:     0,
		CacheMisses:   10,
		CacheHitRate:  0.0,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_DisabledThresholds(t *testing.T) {
	// Zero thresholds disable the confidence and cache checks.
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	snap := &Snapshot{
		ContactsExtracted: 50,
		AvgConfidence:     0.01,
		CacheHits:         0,
		CacheMisses:       500,
		CacheHitRate:      0.0,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertRunFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertLowAvgConfidence, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertRunFailureRate, Message: "test"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 0, sent)
}
