package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/model"
	"github.com/sells-group/prospector-cli/internal/resilience"
)

var webhookClient = &http.Client{Timeout: 10 * time.Second}

// WebhookNotifier POSTs finished run reports to a configured URL. Delivery is
// retried on transient failures; callers treat a final error as non-fatal.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  resilience.RetryConfig
}

// NewWebhookNotifier builds a notifier for the given URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: webhookClient,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			OnRetry:        resilience.RetryLogger("webhook", "notify"),
		},
	}
}

// Notify delivers the report as a JSON POST.
func (n *WebhookNotifier) Notify(ctx context.Context, report *model.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "webhook: marshal report")
	}

	if err := resilience.Do(ctx, n.retry, func(ctx context.Context) error {
		return n.post(ctx, payload)
	}); err != nil {
		return eris.Wrapf(err, "webhook: notify %s", n.url)
	}

	zap.L().Info("report webhook delivered",
		zap.String("url", n.url),
		zap.String("run_id", report.RunID),
		zap.Int("records", len(report.Records)),
	)
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "webhook: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "webhook: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &webhookStatusError{code: resp.StatusCode}
	}
	return nil
}

// webhookStatusError carries a non-2xx response status so the retry policy can
// classify it via resilience.StatusCoder.
type webhookStatusError struct {
	code int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("webhook: endpoint returned status %d", e.code)
}

func (e *webhookStatusError) HTTPStatus() int {
	return e.code
}
