package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// AuthSessionStore is the Postgres-backed repository.AuthSessionRepository.
type AuthSessionStore struct{}

// NewAuthSessionStore builds an AuthSessionStore using the package-level DB pool.
func NewAuthSessionStore() *AuthSessionStore { return &AuthSessionStore{} }

const authSessionColumns = `id, realm_id, client_id, redirect_uri, response_type, scope, state,
	nonce, user_id, code, code_expires_at, magic_token, magic_token_expires_at, created_at`

func scanAuthSession(row pgx.Row) (domain.AuthSession, error) {
	var s domain.AuthSession
	err := row.Scan(&s.ID, &s.RealmID, &s.ClientID, &s.RedirectURI, &s.ResponseType, &s.Scope,
		&s.State, &s.Nonce, &s.UserID, &s.Code, &s.CodeExpiresAt, &s.MagicToken, &s.MagicTokenExpiresAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuthSession{}, ErrNotFound
	}
	if err != nil {
		return domain.AuthSession{}, fmt.Errorf("scan auth session: %w", err)
	}
	return s, nil
}

func (s *AuthSessionStore) Create(ctx context.Context, session domain.AuthSession) (domain.AuthSession, error) {
	return scanAuthSession(DB.QueryRow(ctx,
		`INSERT INTO auth_sessions (id, realm_id, client_id, redirect_uri, response_type, scope,
			state, nonce, user_id, code, code_expires_at)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+authSessionColumns,
		nullableUUID(session.ID), session.RealmID, session.ClientID, session.RedirectURI,
		session.ResponseType, session.Scope, session.State, session.Nonce, session.UserID,
		session.Code, session.CodeExpiresAt,
	))
}

func (s *AuthSessionStore) GetByID(ctx context.Context, id uuid.UUID) (domain.AuthSession, error) {
	return scanAuthSession(DB.QueryRow(ctx, `SELECT `+authSessionColumns+` FROM auth_sessions WHERE id = $1`, id))
}

func (s *AuthSessionStore) GetByCode(ctx context.Context, code string) (domain.AuthSession, error) {
	return scanAuthSession(DB.QueryRow(ctx, `SELECT `+authSessionColumns+` FROM auth_sessions WHERE code = $1`, code))
}

func (s *AuthSessionStore) Update(ctx context.Context, session domain.AuthSession) (domain.AuthSession, error) {
	return scanAuthSession(DB.QueryRow(ctx,
		`UPDATE auth_sessions SET user_id = $2, code = $3, code_expires_at = $4,
			magic_token = $5, magic_token_expires_at = $6
		 WHERE id = $1
		 RETURNING `+authSessionColumns,
		session.ID, session.UserID, session.Code, session.CodeExpiresAt,
		session.MagicToken, session.MagicTokenExpiresAt,
	))
}

// ConsumeCode atomically clears an authorization code so it cannot be
// redeemed twice by concurrent token requests (spec §4.3 single-use code
// invariant). The second caller sees zero rows affected.
func (s *AuthSessionStore) ConsumeCode(ctx context.Context, code string, at time.Time) (domain.AuthSession, bool, error) {
	row := DB.QueryRow(ctx,
		`UPDATE auth_sessions SET code = NULL, code_expires_at = NULL
		 WHERE code = $1 AND code_expires_at IS NOT NULL AND code_expires_at >= $2
		 RETURNING `+authSessionColumns,
		code, at,
	)
	session, err := scanAuthSession(row)
	if errors.Is(err, ErrNotFound) {
		return domain.AuthSession{}, false, nil
	}
	if err != nil {
		return domain.AuthSession{}, false, err
	}
	return session, true, nil
}

// ConsumeMagicToken atomically clears a pending magic-link token, mirroring
// ConsumeCode's single-use guarantee (spec §4.5 magic_link).
func (s *AuthSessionStore) ConsumeMagicToken(ctx context.Context, token string, at time.Time) (domain.AuthSession, bool, error) {
	row := DB.QueryRow(ctx,
		`UPDATE auth_sessions SET magic_token = NULL, magic_token_expires_at = NULL
		 WHERE magic_token = $1 AND magic_token_expires_at IS NOT NULL AND magic_token_expires_at >= $2
		 RETURNING `+authSessionColumns,
		token, at,
	)
	session, err := scanAuthSession(row)
	if errors.Is(err, ErrNotFound) {
		return domain.AuthSession{}, false, nil
	}
	if err != nil {
		return domain.AuthSession{}, false, err
	}
	return session, true, nil
}

func (s *AuthSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete auth session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
