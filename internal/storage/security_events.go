package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ferriskey/iam/internal/domain"
)

// SecurityEventStore is the Postgres-backed repository.SecurityEventRepository.
type SecurityEventStore struct{}

// NewSecurityEventStore builds a SecurityEventStore using the package-level DB pool.
func NewSecurityEventStore() *SecurityEventStore { return &SecurityEventStore{} }

func (s *SecurityEventStore) Record(ctx context.Context, e domain.SecurityEvent) error {
	_, err := DB.Exec(ctx,
		`INSERT INTO security_events (id, realm_id, actor_id, actor_type, event_type, status,
			target_id, target_type, occurred_at, ip, user_agent, details)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		nullableUUID(e.ID), e.RealmID, e.ActorID, e.ActorType, e.EventType, e.Status,
		e.TargetID, e.TargetType, e.Timestamp, e.IP, e.UserAgent, e.Details,
	)
	if err != nil {
		return fmt.Errorf("record security event: %w", err)
	}
	return nil
}

func (s *SecurityEventStore) ListByRealm(ctx context.Context, realmID uuid.UUID, limit int) ([]domain.SecurityEvent, error) {
	rows, err := DB.Query(ctx,
		`SELECT id, realm_id, actor_id, actor_type, event_type, status, target_id, target_type,
			occurred_at, ip, user_agent, details
		 FROM security_events WHERE realm_id = $1 ORDER BY occurred_at DESC LIMIT $2`, realmID, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		var e domain.SecurityEvent
		if err := rows.Scan(&e.ID, &e.RealmID, &e.ActorID, &e.ActorType, &e.EventType, &e.Status,
			&e.TargetID, &e.TargetType, &e.Timestamp, &e.IP, &e.UserAgent, &e.Details); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
