package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// WebhookStore is the Postgres-backed repository.WebhookRepository.
type WebhookStore struct{}

// NewWebhookStore builds a WebhookStore using the package-level DB pool.
func NewWebhookStore() *WebhookStore { return &WebhookStore{} }

const webhookColumns = `id, realm_id, name, endpoint, subscribed_events, enabled, secret, created_at, updated_at`

func scanWebhook(row pgx.Row) (domain.Webhook, error) {
	var w domain.Webhook
	err := row.Scan(&w.ID, &w.RealmID, &w.Name, &w.Endpoint, &w.SubscribedEvents, &w.Enabled,
		&w.Secret, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Webhook{}, ErrNotFound
	}
	if err != nil {
		return domain.Webhook{}, fmt.Errorf("scan webhook: %w", err)
	}
	return w, nil
}

func (s *WebhookStore) Create(ctx context.Context, w domain.Webhook) (domain.Webhook, error) {
	return scanWebhook(DB.QueryRow(ctx,
		`INSERT INTO webhooks (id, realm_id, name, endpoint, subscribed_events, enabled, secret)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		 RETURNING `+webhookColumns,
		nullableUUID(w.ID), w.RealmID, w.Name, w.Endpoint, w.SubscribedEvents, w.Enabled, w.Secret,
	))
}

func (s *WebhookStore) ListByRealmAndEvent(ctx context.Context, realmID uuid.UUID, eventType string) ([]domain.Webhook, error) {
	rows, err := DB.Query(ctx,
		`SELECT `+webhookColumns+` FROM webhooks
		 WHERE realm_id = $1 AND enabled AND $2 = ANY(subscribed_events)`, realmID, eventType)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func (s *WebhookStore) ListByRealm(ctx context.Context, realmID uuid.UUID) ([]domain.Webhook, error) {
	rows, err := DB.Query(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE realm_id = $1 ORDER BY name`, realmID)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func collectWebhooks(rows pgx.Rows) ([]domain.Webhook, error) {
	var hooks []domain.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

func (s *WebhookStore) Update(ctx context.Context, w domain.Webhook) (domain.Webhook, error) {
	return scanWebhook(DB.QueryRow(ctx,
		`UPDATE webhooks SET name = $2, endpoint = $3, subscribed_events = $4, enabled = $5,
			secret = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+webhookColumns,
		w.ID, w.Name, w.Endpoint, w.SubscribedEvents, w.Enabled, w.Secret,
	))
}

func (s *WebhookStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
