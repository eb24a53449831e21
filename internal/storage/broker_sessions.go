package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// BrokerAuthSessionStore is the Postgres-backed repository.BrokerAuthSessionRepository.
type BrokerAuthSessionStore struct{}

// NewBrokerAuthSessionStore builds a BrokerAuthSessionStore using the package-level DB pool.
func NewBrokerAuthSessionStore() *BrokerAuthSessionStore { return &BrokerAuthSessionStore{} }

const brokerAuthSessionColumns = `id, realm_id, identity_provider_id, client_id, redirect_uri,
	response_type, scope, state, nonce, broker_state, code_verifier, auth_session_id, created_at, expires_at`

func scanBrokerAuthSession(row pgx.Row) (domain.BrokerAuthSession, error) {
	var b domain.BrokerAuthSession
	err := row.Scan(&b.ID, &b.RealmID, &b.IdentityProviderID, &b.ClientID, &b.RedirectURI,
		&b.ResponseType, &b.Scope, &b.State, &b.Nonce, &b.BrokerState, &b.CodeVerifier,
		&b.AuthSessionID, &b.CreatedAt, &b.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BrokerAuthSession{}, ErrNotFound
	}
	if err != nil {
		return domain.BrokerAuthSession{}, fmt.Errorf("scan broker auth session: %w", err)
	}
	return b, nil
}

func (s *BrokerAuthSessionStore) Create(ctx context.Context, session domain.BrokerAuthSession) (domain.BrokerAuthSession, error) {
	return scanBrokerAuthSession(DB.QueryRow(ctx,
		`INSERT INTO broker_auth_sessions (id, realm_id, identity_provider_id, client_id,
			redirect_uri, response_type, scope, state, nonce, broker_state, code_verifier,
			auth_session_id, expires_at)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+brokerAuthSessionColumns,
		nullableUUID(session.ID), session.RealmID, session.IdentityProviderID, session.ClientID,
		session.RedirectURI, session.ResponseType, session.Scope, session.State, session.Nonce,
		session.BrokerState, session.CodeVerifier, session.AuthSessionID, session.ExpiresAt,
	))
}

func (s *BrokerAuthSessionStore) GetByBrokerState(ctx context.Context, state string) (domain.BrokerAuthSession, error) {
	return scanBrokerAuthSession(DB.QueryRow(ctx,
		`SELECT `+brokerAuthSessionColumns+` FROM broker_auth_sessions WHERE broker_state = $1`, state))
}

func (s *BrokerAuthSessionStore) Update(ctx context.Context, session domain.BrokerAuthSession) (domain.BrokerAuthSession, error) {
	return scanBrokerAuthSession(DB.QueryRow(ctx,
		`UPDATE broker_auth_sessions SET auth_session_id = $2 WHERE id = $1
		 RETURNING `+brokerAuthSessionColumns,
		session.ID, session.AuthSessionID,
	))
}

func (s *BrokerAuthSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM broker_auth_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete broker auth session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
