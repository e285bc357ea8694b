package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fableforge/directorq/internal/domain"
)

// WebhookDirector delivers pending approvals by POSTing to the Director UI's
// webhook endpoint. The base URL is injected from config so tests can point
// to a local mock.
type WebhookDirector struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookDirector(baseURL string, timeout time.Duration) *WebhookDirector {
	return &WebhookDirector{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DeliverPending posts the delivery to the configured webhook URL and
// expects a 202 Accepted response. Anything else counts as a failed push,
// leaving the item for redelivery.
func (d *WebhookDirector) DeliverPending(ctx context.Context, worldID string, delivery domain.PendingDelivery) error {
	body, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	url := fmt.Sprintf("%s/worlds/%s/pending", d.baseURL, worldID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver pending: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected director status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookDirector implements Director
var _ Director = (*WebhookDirector)(nil)
