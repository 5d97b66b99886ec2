package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector-cli/internal/model"
)

// WebhookApprover posts gated tasks to an external decision endpoint and
// blocks until it answers with `{"approved": bool}`. The generous client
// timeout leaves room for a human reviewer; callers cancel via ctx.
type WebhookApprover struct {
	url    string
	client *http.Client
}

var _ Approver = (*WebhookApprover)(nil)

// NewWebhookApprover builds an approver that consults the given URL.
func NewWebhookApprover(url string) *WebhookApprover {
	return &WebhookApprover{
		url:    url,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Approve implements Approver. Transport failures and non-2xx responses
// deny the task and surface the error.
func (a *WebhookApprover) Approve(ctx context.Context, task model.Task) (bool, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return false, eris.Wrap(err, "approval: marshal task")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return false, eris.Wrap(err, "approval: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "approval: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, eris.Errorf("approval: webhook returned status %d", resp.StatusCode)
	}

	var decision struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return false, eris.Wrap(err, "approval: decode decision")
	}
	return decision.Approved, nil
}
