package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ferriskey/iam/internal/domain"
)

// RefreshTokenStore is the Postgres-backed repository.RefreshTokenRepository.
type RefreshTokenStore struct{}

// NewRefreshTokenStore builds a RefreshTokenStore using the package-level DB pool.
func NewRefreshTokenStore() *RefreshTokenStore { return &RefreshTokenStore{} }

func (s *RefreshTokenStore) Create(ctx context.Context, t domain.RefreshToken) (domain.RefreshToken, error) {
	var created domain.RefreshToken
	err := DB.QueryRow(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING jti, user_id, expires_at, revoked, created_at`,
		t.JTI, t.UserID, t.ExpiresAt,
	).Scan(&created.JTI, &created.UserID, &created.ExpiresAt, &created.Revoked, &created.CreatedAt)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return created, nil
}

func (s *RefreshTokenStore) GetByJTI(ctx context.Context, jti uuid.UUID) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := DB.QueryRow(ctx,
		`SELECT jti, user_id, expires_at, revoked, created_at FROM refresh_tokens WHERE jti = $1`, jti,
	).Scan(&t.JTI, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("query refresh token: %w", err)
	}
	return t, nil
}

func (s *RefreshTokenStore) Revoke(ctx context.Context, jti uuid.UUID) error {
	tag, err := DB.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE jti = $1`, jti)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := DB.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func (s *RefreshTokenStore) Delete(ctx context.Context, jti uuid.UUID) error {
	tag, err := DB.Exec(ctx, `DELETE FROM refresh_tokens WHERE jti = $1`, jti)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
