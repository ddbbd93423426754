package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backoffice/internal/store"
)

// WebhookNotifier delivers domain events to a single HTTP endpoint. The
// request body carries the event envelope; the signature header lets the
// receiver verify origin and reject replays outside its tolerance window.
type WebhookNotifier struct {
	URL    string
	Secret string
	Client *http.Client

	now func() time.Time
}

// NewWebhookNotifier builds a notifier with a traced HTTP client.
func NewWebhookNotifier(url, secret string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Secret: secret,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type webhookEnvelope struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenantId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Notify posts the event to the endpoint. Non-2xx responses are errors so
// the dispatcher keeps the event pending.
func (n *WebhookNotifier) Notify(ctx context.Context, event store.DomainEventRow) error {
	body, err := json.Marshal(webhookEnvelope{
		ID:          event.ID.String(),
		TenantID:    event.TenantID.String(),
		Topic:       event.Topic,
		AggregateID: event.AggregateID.String(),
		Payload:     event.Payload,
		OccurredAt:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	ts := n.clock().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "backoffice-webhooks/1.0")
	req.Header.Set("X-Event-ID", event.ID.String())
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(n.Secret, ts, event.ID.String(), body))

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) clock() time.Time {
	if n.now != nil {
		return n.now()
	}
	return time.Now()
}

// ComputeSignature calculates the webhook signature, HMAC-SHA256 over
// "<ts>.<eventID>.<body>" using the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
