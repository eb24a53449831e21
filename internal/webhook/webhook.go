// Package webhook delivers SecurityEvents to realm-configured HTTP
// endpoints. Delivery never blocks the request that produced the event.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ferriskey/iam/internal/domain"
	"github.com/ferriskey/iam/internal/repository"
)

// Notifier is the pluggable delivery port; the core only ever calls
// Notify, fire-and-forget, from wherever SecurityEvents are recorded.
type Notifier interface {
	Notify(ctx context.Context, event domain.SecurityEvent) error
}

// HTTPNotifier is the default Notifier: it looks up every enabled webhook
// subscribed to the event's type within the event's realm and POSTs a
// signed JSON payload to each.
type HTTPNotifier struct {
	hooks  repository.WebhookRepository
	client *http.Client
}

func NewHTTPNotifier(hooks repository.WebhookRepository) *HTTPNotifier {
	return &HTTPNotifier{hooks: hooks, client: &http.Client{Timeout: 5 * time.Second}}
}

// Notify delivers event to every matching webhook. A delivery failure for
// one subscriber is logged and does not affect the others.
func (n *HTTPNotifier) Notify(ctx context.Context, event domain.SecurityEvent) error {
	hooks, err := n.hooks.ListByRealmAndEvent(ctx, event.RealmID, event.EventType)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, hook := range hooks {
		if !hook.Enabled {
			continue
		}
		if err := n.deliver(ctx, hook, payload); err != nil {
			log.Warn().
				Err(err).
				Str("webhook", hook.Name).
				Str("event_type", event.EventType).
				Msg("webhook delivery failed")
		}
	}
	return nil
}

func (n *HTTPNotifier) deliver(ctx context.Context, hook domain.Webhook, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != "" {
		req.Header.Set("X-IAM-Signature", sign(hook.Secret, payload))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// sign computes an HMAC-SHA256 over payload using secret, hex-encoded, so
// receivers can authenticate delivery came from this server.
func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// NoopNotifier discards every event. Used when no webhooks are configured
// so callers need not nil-check the port.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, event domain.SecurityEvent) error { return nil }
